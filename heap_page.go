package heapdb

import (
	"bytes"
	"io"
	"sync"
)

/*
heap_page.go implements the byte-exact heap page codec: a bit-addressable
slot-occupancy header (LSB-first within each byte) followed by
fixed-width tuple slots, followed by zero padding to PageSize. The
encode/decode shape (a pageData/initFromBuffer pair) and the embedded
sync.Mutex guarding before-image capture follow the same pattern used
throughout this package for page-level state.
*/

// HeapPage is the in-memory image of one disk page of a HeapFile.
type HeapPage struct {
	pid      PageId
	desc     TupleDesc
	numSlots int
	tuples   []*Tuple
	file     *HeapFile

	dirty    bool
	dirtyTid TransactionId

	beforeMu    sync.Mutex
	beforeImage []byte
}

// computeNumSlots applies the slot-count law:
// numSlots = floor((PageSize*8) / (tupleSize*8 + 1)).
func computeNumSlots(pageSize, tupleSize int) int {
	if tupleSize <= 0 {
		return 0
	}
	return (pageSize * 8) / (tupleSize*8 + 1)
}

// computeHeaderBytes is ceil(numSlots/8).
func computeHeaderBytes(numSlots int) int {
	return (numSlots + 7) / 8
}

func headerBitSet(header []byte, i int) bool {
	return header[i/8]&(1<<uint(i%8)) != 0
}

func headerSetBit(header []byte, i int) {
	header[i/8] |= 1 << uint(i%8)
}

// NewHeapPage constructs a HeapPage for pid/desc, either empty (data ==
// nil) or by decoding the supplied PageSize-byte page image.
func NewHeapPage(pid PageId, desc *TupleDesc, file *HeapFile, data []byte) (*HeapPage, error) {
	tupleSize := desc.bytesPerTuple()
	numSlots := computeNumSlots(PageSize, tupleSize)
	p := &HeapPage{
		pid:      pid,
		desc:     *desc,
		numSlots: numSlots,
		tuples:   make([]*Tuple, numSlots),
		file:     file,
	}
	if data == nil {
		return p, nil
	}
	if len(data) != PageSize {
		return nil, GoDBError{MalformedDataError, "page buffer is not PageSize bytes"}
	}
	if err := p.initFromBuffer(bytes.NewBuffer(data)); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *HeapPage) initFromBuffer(buf *bytes.Buffer) error {
	tupleSize := h.desc.bytesPerTuple()
	headerBytes := computeHeaderBytes(h.numSlots)
	header := make([]byte, headerBytes)
	if _, err := io.ReadFull(buf, header); err != nil {
		return GoDBError{MalformedDataError, "short read of page header: " + err.Error()}
	}
	for i := 0; i < h.numSlots; i++ {
		if !headerBitSet(header, i) {
			buf.Next(tupleSize)
			continue
		}
		t, err := readTupleFrom(buf, &h.desc)
		if err != nil {
			return err
		}
		t.Rid = &RecordId{PID: h.pid, Slot: i}
		h.tuples[i] = t
	}
	return nil
}

// pageData is the inverse of NewHeapPage's decode path: it serializes the
// page's header and tuples, padded to PageSize.
func (h *HeapPage) pageData() ([]byte, error) {
	tupleSize := h.desc.bytesPerTuple()
	headerBytes := computeHeaderBytes(h.numSlots)
	header := make([]byte, headerBytes)
	for i, t := range h.tuples {
		if t != nil {
			headerSetBit(header, i)
		}
	}

	buf := new(bytes.Buffer)
	buf.Write(header)
	zeroTuple := make([]byte, tupleSize)
	for _, t := range h.tuples {
		if t == nil {
			buf.Write(zeroTuple)
			continue
		}
		if err := t.writeTo(buf); err != nil {
			return nil, err
		}
	}
	if buf.Len() > PageSize {
		return nil, GoDBError{MalformedDataError, "encoded page exceeds PageSize"}
	}
	buf.Write(make([]byte, PageSize-buf.Len()))
	return buf.Bytes(), nil
}

func (h *HeapPage) getNumEmptySlots() int {
	n := 0
	for _, t := range h.tuples {
		if t == nil {
			n++
		}
	}
	return n
}

func (h *HeapPage) getNumSlots() int {
	return h.numSlots
}

// insertTuple places t into the lowest-indexed empty slot, marks the
// header bit, and stamps t's RecordId.
func (h *HeapPage) insertTuple(t *Tuple) (RecordId, error) {
	if !t.Desc.equals(&h.desc) {
		return RecordId{}, GoDBError{SchemaMismatchError, "tuple descriptor does not match page"}
	}
	for i := 0; i < h.numSlots; i++ {
		if h.tuples[i] == nil {
			rid := RecordId{PID: h.pid, Slot: i}
			t.Rid = &rid
			h.tuples[i] = t
			return rid, nil
		}
	}
	return RecordId{}, ErrPageFull
}

// deleteTuple clears the slot referenced by t.Rid.
func (h *HeapPage) deleteTuple(t *Tuple) error {
	if t.Rid == nil {
		return GoDBError{TupleNotFoundError, "tuple has no record id"}
	}
	slot := t.Rid.Slot
	if slot < 0 || slot >= h.numSlots {
		return GoDBError{SlotEmptyError, "slot index out of range"}
	}
	occupant := h.tuples[slot]
	if occupant == nil {
		return GoDBError{SlotEmptyError, "slot is already empty"}
	}
	if occupant.Rid == nil || *occupant.Rid != *t.Rid {
		return GoDBError{TupleMismatchError, "occupant record id does not match"}
	}
	h.tuples[slot] = nil
	return nil
}

func (h *HeapPage) isDirty() (TransactionId, bool) {
	return h.dirtyTid, h.dirty
}

func (h *HeapPage) markDirty(dirty bool, tid TransactionId) {
	h.dirty = dirty
	if dirty {
		h.dirtyTid = tid
	}
}

func (h *HeapPage) getFile() *HeapFile {
	return h.file
}

// setBeforeImage snapshots the page's current serialized bytes under a
// mutex that guards only this slot, so concurrent readers of the clean
// image remain safe while a writer mutates the page.
func (h *HeapPage) setBeforeImage() error {
	data, err := h.pageData()
	if err != nil {
		return err
	}
	h.beforeMu.Lock()
	defer h.beforeMu.Unlock()
	h.beforeImage = data
	return nil
}

// getBeforeImage decodes the last-captured before-image into its own
// HeapPage, used by the log at flush time.
func (h *HeapPage) getBeforeImage() (*HeapPage, error) {
	h.beforeMu.Lock()
	data := h.beforeImage
	h.beforeMu.Unlock()
	if data == nil {
		data = make([]byte, PageSize)
	}
	return NewHeapPage(h.pid, &h.desc, h.file, data)
}

// iterator returns a finite, single-pass walk over this page's occupied
// tuples in ascending slot order.
func (h *HeapPage) iterator() func() (*Tuple, error) {
	i := 0
	return func() (*Tuple, error) {
		for i < len(h.tuples) {
			t := h.tuples[i]
			i++
			if t != nil {
				return t, nil
			}
		}
		return nil, nil
	}
}
