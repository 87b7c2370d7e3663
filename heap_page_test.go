package heapdb

import (
	"testing"

	"github.com/d4l3k/messagediff"
)

func testTupleDesc() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType, Len: 16},
	}}
}

func TestHeapPageSlotCount(t *testing.T) {
	ResetPageSize()
	defer ResetPageSize()

	td := testTupleDesc()
	tupleSize := td.bytesPerTuple()
	numSlots := computeNumSlots(PageSize, tupleSize)
	if numSlots <= 0 {
		t.Fatalf("expected a positive slot count, got %d", numSlots)
	}
	headerBytes := computeHeaderBytes(numSlots)
	if headerBytes*8 < numSlots {
		t.Fatalf("header of %d bytes cannot address %d slots", headerBytes, numSlots)
	}
}

func TestHeapPageInsertDeleteRoundTrip(t *testing.T) {
	ResetPageSize()
	defer ResetPageSize()

	td := testTupleDesc()
	pid := PageId{TableId: 1, PageNumber: 0}

	page, err := NewHeapPage(pid, td, nil, nil)
	if err != nil {
		t.Fatalf("NewHeapPage: %v", err)
	}

	full := page.getNumSlots()
	for i := 0; i < 3; i++ {
		tup := &Tuple{
			Desc: *td,
			Fields: []DBValue{
				IntField{Value: int32(i)},
				StringField{Value: "tuple"},
			},
		}
		if _, err := page.insertTuple(tup); err != nil {
			t.Fatalf("insertTuple %d: %v", i, err)
		}
	}
	if got, want := page.getNumEmptySlots(), full-3; got != want {
		t.Fatalf("getNumEmptySlots() = %d, want %d", got, want)
	}

	it := page.iterator()
	var seen []*Tuple
	for {
		tup, err := it()
		if err != nil {
			t.Fatalf("iterator: %v", err)
		}
		if tup == nil {
			break
		}
		seen = append(seen, tup)
	}
	if len(seen) != 3 {
		t.Fatalf("iterator returned %d tuples, want 3", len(seen))
	}

	if err := page.deleteTuple(seen[1]); err != nil {
		t.Fatalf("deleteTuple: %v", err)
	}
	if got, want := page.getNumEmptySlots(), full-2; got != want {
		t.Fatalf("after delete, getNumEmptySlots() = %d, want %d", got, want)
	}

	// Deleting the same tuple again must fail: the slot is now empty.
	if err := page.deleteTuple(seen[1]); err == nil {
		t.Fatalf("expected error re-deleting an already-empty slot")
	}
}

// TestHeapPageEncodeDecodeRoundTrip checks that for every HeapPage p,
// decode(encode(p)) produces an equivalent page.
func TestHeapPageEncodeDecodeRoundTrip(t *testing.T) {
	ResetPageSize()
	defer ResetPageSize()

	td := testTupleDesc()
	pid := PageId{TableId: 7, PageNumber: 2}

	page, err := NewHeapPage(pid, td, nil, nil)
	if err != nil {
		t.Fatalf("NewHeapPage: %v", err)
	}
	for i := 0; i < 5; i++ {
		tup := &Tuple{
			Desc: *td,
			Fields: []DBValue{
				IntField{Value: int32(i * 10)},
				StringField{Value: "row"},
			},
		}
		if _, err := page.insertTuple(tup); err != nil {
			t.Fatalf("insertTuple %d: %v", i, err)
		}
	}

	data, err := page.pageData()
	if err != nil {
		t.Fatalf("pageData: %v", err)
	}
	if len(data) != PageSize {
		t.Fatalf("encoded page is %d bytes, want %d", len(data), PageSize)
	}

	decoded, err := NewHeapPage(pid, td, nil, data)
	if err != nil {
		t.Fatalf("NewHeapPage(decode): %v", err)
	}

	if diff, equal := messagediff.PrettyDiff(page.tuples, decoded.tuples); !equal {
		t.Fatalf("round-trip mismatch:\n%s", diff)
	}
}
