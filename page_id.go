package heapdb

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
)

// PageId addresses exactly one page in the system: a table id paired with
// a zero-based page number.
type PageId struct {
	TableId    int64
	PageNumber int
}

func (p PageId) String() string {
	return fmt.Sprintf("table=%d/page=%d", p.TableId, p.PageNumber)
}

// Hash returns a stable hash of the PageId, suitable for use as a map key
// fingerprint or log message; PageId itself is already comparable and can
// be used directly as a Go map key.
func (p PageId) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d", p.TableId, p.PageNumber)
	return h.Sum64()
}

// RecordId identifies a tuple's location: the page it lives on and its
// slot index within that page.
type RecordId struct {
	PID  PageId
	Slot int
}

func (r RecordId) String() string {
	return fmt.Sprintf("%s/slot=%d", r.PID, r.Slot)
}

// tableIdForPath deterministically derives a table id from a heap file's
// absolute backing path.
func tableIdForPath(path string) (int64, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	h.Write([]byte(abs))
	return int64(h.Sum64()), nil
}
