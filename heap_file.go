package heapdb

import (
	"fmt"
	"os"
)

/*
heap_file.go is an unordered collection of tuples addressed through the
bit-header HeapPage codec, with every page access routed through the
buffer pool under an explicit read/write permission.
*/

// HeapFile is an unordered collection of tuples backed by one OS file
// whose length is always a multiple of PageSize.
type HeapFile struct {
	td          *TupleDesc
	backingFile string
	tableId     int64
	bufPool     *BufferPool
}

// NewHeapFile opens (creating if necessary) fromFile as the backing store
// for a heap of td-shaped tuples, cached through bp. The table id is a
// deterministic hash of the file's absolute path.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	f, err := os.OpenFile(fromFile, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}
	f.Close()

	tableId, err := tableIdForPath(fromFile)
	if err != nil {
		return nil, err
	}

	return &HeapFile{
		td:          td,
		backingFile: fromFile,
		tableId:     tableId,
		bufPool:     bp,
	}, nil
}

// BackingFile returns the name of the backing OS file.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// ID is the table's deterministic id, used as PageId.TableId.
func (f *HeapFile) ID() int64 {
	return f.tableId
}

// Descriptor returns the TupleDesc supplied to NewHeapFile.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.td
}

// NumPages is ceil(length / PageSize).
func (f *HeapFile) NumPages() int {
	fi, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	size := fi.Size()
	if size == 0 {
		return 0
	}
	return int((size + int64(PageSize) - 1) / int64(PageSize))
}

func (f *HeapFile) pageId(pageNo int) PageId {
	return PageId{TableId: f.tableId, PageNumber: pageNo}
}

// ReadPage reads page pageNo from disk and decodes it.
// The file handle is always closed before returning.
func (f *HeapFile) ReadPage(pageNo int) (*HeapPage, error) {
	file, err := os.OpenFile(f.backingFile, os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, PageSize)
	n, err := file.ReadAt(buf, int64(pageNo)*int64(PageSize))
	if err != nil {
		return nil, fmt.Errorf("readPage: %w", err)
	}
	if n != PageSize {
		return nil, GoDBError{IllegalArgumentError, "not enough bytes read in readPage"}
	}

	return NewHeapPage(f.pageId(pageNo), f.td, f, buf)
}

// WritePage writes page back to its offset in the backing file, growing
// the file implicitly if writing beyond its current length. The file handle is always closed before returning.
func (f *HeapFile) WritePage(page *HeapPage) error {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := page.pageData()
	if err != nil {
		return err
	}
	_, err = file.WriteAt(data, int64(page.pid.PageNumber)*int64(PageSize))
	return err
}

// InsertTuple scans pages 0..NumPages() for the first page with a free
// slot, acquiring each through the buffer pool with write permission. If
// every page is full, it extends the file by one zero page, fetches that
// new page through the buffer pool, and inserts there. Returns the list
// of pages it modified.
func (f *HeapFile) InsertTuple(tid TransactionId, t *Tuple) ([]*HeapPage, error) {
	if !t.Desc.equals(f.td) {
		return nil, GoDBError{SchemaMismatchError, "tuple descriptor does not match heap file"}
	}

	n := f.NumPages()
	for pageNo := 0; pageNo < n; pageNo++ {
		page, err := f.bufPool.GetPage(tid, f, f.pageId(pageNo), ReadWrite)
		if err != nil {
			return nil, err
		}
		if page.getNumEmptySlots() == 0 {
			continue
		}
		if _, err := page.insertTuple(t); err != nil {
			if err == ErrPageFull {
				continue
			}
			return nil, err
		}
		return []*HeapPage{page}, nil
	}

	// No free slot anywhere: extend the file with one zero page.
	if err := f.appendZeroPage(n); err != nil {
		return nil, err
	}
	page, err := f.bufPool.GetPage(tid, f, f.pageId(n), ReadWrite)
	if err != nil {
		return nil, err
	}
	if _, err := page.insertTuple(t); err != nil {
		return nil, err
	}
	return []*HeapPage{page}, nil
}

func (f *HeapFile) appendZeroPage(pageNo int) error {
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteAt(make([]byte, PageSize), int64(pageNo)*int64(PageSize))
	return err
}

// DeleteTuple fetches t.Rid.PID with write permission and deletes it,
// returning the modified page.
func (f *HeapFile) DeleteTuple(tid TransactionId, t *Tuple) (*HeapPage, error) {
	if t.Rid == nil {
		return nil, GoDBError{TupleNotFoundError, "tuple has no record id"}
	}
	page, err := f.bufPool.GetPage(tid, f, t.Rid.PID, ReadWrite)
	if err != nil {
		return nil, err
	}
	if err := page.deleteTuple(t); err != nil {
		return nil, err
	}
	return page, nil
}

// Iterator returns a heap-file iterator over this file's tuples; see heap_iterator.go.
func (f *HeapFile) Iterator(tid TransactionId) (*HeapFileIterator, error) {
	it := NewHeapFileIterator(f, tid)
	if err := it.Open(); err != nil {
		return nil, err
	}
	return it, nil
}
