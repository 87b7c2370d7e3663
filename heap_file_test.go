package heapdb

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestHeapFile(t *testing.T, bp *BufferPool) *HeapFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.dat")
	hf, err := NewHeapFile(path, testTupleDesc(), bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	return hf
}

func testTuple(i int32) *Tuple {
	td := testTupleDesc()
	return &Tuple{
		Desc: *td,
		Fields: []DBValue{
			IntField{Value: i},
			StringField{Value: "row"},
		},
	}
}

func TestHeapFileInsertIterateDelete(t *testing.T) {
	ResetPageSize()
	defer ResetPageSize()

	bp := NewBufferPool(10)
	hf := newTestHeapFile(t, bp)
	tid := NewTransactionId()

	slotsPerPage := computeNumSlots(PageSize, testTupleDesc().bytesPerTuple())
	total := slotsPerPage*2 + 3 // force a spill onto a third page

	for i := 0; i < total; i++ {
		if err := bp.InsertTuple(tid, hf, testTuple(int32(i))); err != nil {
			t.Fatalf("InsertTuple %d: %v", i, err)
		}
	}
	if got, want := hf.NumPages(), 3; got != want {
		t.Fatalf("NumPages() = %d, want %d", got, want)
	}

	it, err := hf.Iterator(tid)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	count := 0
	var first *Tuple
	for {
		tup, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if tup == nil {
			break
		}
		if first == nil {
			first = tup
		}
		count++
	}
	if count != total {
		t.Fatalf("iterated %d tuples, want %d", count, total)
	}

	if err := bp.DeleteTuple(tid, hf, first); err != nil {
		t.Fatalf("DeleteTuple: %v", err)
	}

	if err := it.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	count = 0
	for {
		tup, err := it.Next()
		if err != nil {
			t.Fatalf("Next after delete: %v", err)
		}
		if tup == nil {
			break
		}
		count++
	}
	if count != total-1 {
		t.Fatalf("after delete, iterated %d tuples, want %d", count, total-1)
	}

	if err := bp.Commit(tid); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestHeapFileWriteReadPersistsAcrossFiles(t *testing.T) {
	ResetPageSize()
	defer ResetPageSize()

	path := filepath.Join(t.TempDir(), "persist.dat")
	bp1 := NewBufferPool(10)
	hf1, err := NewHeapFile(path, testTupleDesc(), bp1)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	tid := NewTransactionId()
	if err := bp1.InsertTuple(tid, hf1, testTuple(42)); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	if err := bp1.Commit(tid); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("backing file missing after commit: %v", err)
	}

	bp2 := NewBufferPool(10)
	hf2, err := NewHeapFile(path, testTupleDesc(), bp2)
	if err != nil {
		t.Fatalf("NewHeapFile (reopen): %v", err)
	}
	tid2 := NewTransactionId()
	it, err := hf2.Iterator(tid2)
	if err != nil {
		t.Fatalf("Iterator (reopen): %v", err)
	}
	tup, err := it.Next()
	if err != nil {
		t.Fatalf("Next (reopen): %v", err)
	}
	if tup == nil {
		t.Fatalf("expected one persisted tuple, found none")
	}
	if got := tup.Fields[0].(IntField).Value; got != 42 {
		t.Fatalf("persisted tuple field = %d, want 42", got)
	}
}
