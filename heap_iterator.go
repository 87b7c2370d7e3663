package heapdb

/*
heap_iterator.go walks a HeapFile through a stateful Open/Next/Rewind/Close
sequence rather than a bare closure, so rewinding doesn't require
re-running a query plan, and page fetches go through the buffer pool
rather than direct disk reads, keeping iteration consistent with each
page's in-memory, possibly-dirty state.
*/

// HeapFileIterator walks every tuple of a HeapFile in page order, then
// slot order within a page.
type HeapFileIterator struct {
	file *HeapFile
	tid  TransactionId

	pageNo   int
	pageIter func() (*Tuple, error)
}

// NewHeapFileIterator constructs an iterator over file under tid. Call
// Open before Next.
func NewHeapFileIterator(file *HeapFile, tid TransactionId) *HeapFileIterator {
	return &HeapFileIterator{file: file, tid: tid}
}

// Open positions the iterator at page 0.
func (it *HeapFileIterator) Open() error {
	it.pageNo = 0
	it.pageIter = nil
	return it.loadPage()
}

// loadPage fetches it.pageNo through the buffer pool and installs its
// per-page tuple iterator. It does not consume any tuples; Next does.
func (it *HeapFileIterator) loadPage() error {
	if it.pageNo >= it.file.NumPages() {
		it.pageIter = nil
		return nil
	}
	page, err := it.file.bufPool.GetPage(it.tid, it.file, it.file.pageId(it.pageNo), ReadOnly)
	if err != nil {
		return err
	}
	it.pageIter = page.iterator()
	return nil
}

// Next returns the next tuple in the file, or (nil, nil) at end of file.
func (it *HeapFileIterator) Next() (*Tuple, error) {
	for {
		if it.pageIter == nil {
			return nil, nil
		}
		t, err := it.pageIter()
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}
		it.pageNo++
		if err := it.loadPage(); err != nil {
			return nil, err
		}
		if it.pageIter == nil {
			return nil, nil
		}
	}
}

// Rewind repositions the iterator at the first tuple of the file.
func (it *HeapFileIterator) Rewind() error {
	return it.Open()
}

// Close releases the iterator's reference to its current page. It does
// not release locks: lock lifetime is tied to the transaction, not the
// iterator.
func (it *HeapFileIterator) Close() {
	it.pageIter = nil
}
