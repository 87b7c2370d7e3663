package heapdb

import "testing"

func TestLockManagerSharedSharedGranted(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableId: 1, PageNumber: 0}
	t1, t2 := NewTransactionId(), NewTransactionId()

	if !lm.AcquireLock(t1, pid, Shared) {
		t.Fatalf("first shared acquisition should be granted")
	}
	if !lm.AcquireLock(t2, pid, Shared) {
		t.Fatalf("second, distinct-transaction shared acquisition should be granted")
	}
	if !lm.HoldsLock(t1, pid) || !lm.HoldsLock(t2, pid) {
		t.Fatalf("both transactions should hold the shared lock")
	}
}

func TestLockManagerExclusiveExcludesOthers(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableId: 1, PageNumber: 0}
	t1, t2 := NewTransactionId(), NewTransactionId()

	if !lm.AcquireLock(t1, pid, Exclusive) {
		t.Fatalf("exclusive acquisition on a free page should be granted")
	}
	if lm.AcquireLock(t2, pid, Shared) {
		t.Fatalf("a different transaction must not acquire shared while X is held")
	}
	if lm.AcquireLock(t2, pid, Exclusive) {
		t.Fatalf("a different transaction must not acquire exclusive while X is held")
	}
}

func TestLockManagerUpgradeSoleHolder(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableId: 1, PageNumber: 0}
	tid := NewTransactionId()

	if !lm.AcquireLock(tid, pid, Shared) {
		t.Fatalf("initial shared acquisition should be granted")
	}
	if !lm.AcquireLock(tid, pid, Exclusive) {
		t.Fatalf("sole S holder should be able to upgrade to X")
	}
}

func TestLockManagerUpgradeDeniedWithOtherReaders(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableId: 1, PageNumber: 0}
	t1, t2 := NewTransactionId(), NewTransactionId()

	if !lm.AcquireLock(t1, pid, Shared) {
		t.Fatalf("t1 shared acquisition should be granted")
	}
	if !lm.AcquireLock(t2, pid, Shared) {
		t.Fatalf("t2 shared acquisition should be granted")
	}
	if lm.AcquireLock(t1, pid, Exclusive) {
		t.Fatalf("upgrade must be denied while another transaction holds S")
	}
}

func TestLockManagerIdempotentRequests(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableId: 1, PageNumber: 0}
	tid := NewTransactionId()

	if !lm.AcquireLock(tid, pid, Shared) {
		t.Fatalf("initial shared acquisition should be granted")
	}
	if !lm.AcquireLock(tid, pid, Shared) {
		t.Fatalf("re-requesting S while already holding S should be granted")
	}
	if !lm.AcquireLock(tid, pid, Exclusive) {
		t.Fatalf("upgrade should be granted")
	}
	if !lm.AcquireLock(tid, pid, Shared) {
		t.Fatalf("requesting S while holding X should be granted idempotently")
	}
}

func TestLockManagerReleaseFreesPage(t *testing.T) {
	lm := NewLockManager()
	pid := PageId{TableId: 1, PageNumber: 0}
	t1, t2 := NewTransactionId(), NewTransactionId()

	if !lm.AcquireLock(t1, pid, Exclusive) {
		t.Fatalf("exclusive acquisition should be granted")
	}
	lm.ReleaseLock(t1, pid)
	if lm.HoldsLock(t1, pid) {
		t.Fatalf("t1 should no longer hold the lock after release")
	}
	if !lm.AcquireLock(t2, pid, Exclusive) {
		t.Fatalf("t2 should be able to acquire X after t1 released")
	}
}

func TestLockManagerReleaseAll(t *testing.T) {
	lm := NewLockManager()
	p1 := PageId{TableId: 1, PageNumber: 0}
	p2 := PageId{TableId: 1, PageNumber: 1}
	tid := NewTransactionId()

	lm.AcquireLock(tid, p1, Shared)
	lm.AcquireLock(tid, p2, Exclusive)
	lm.ReleaseAll(tid)

	if lm.HoldsLock(tid, p1) || lm.HoldsLock(tid, p2) {
		t.Fatalf("ReleaseAll should drop every lock tid held")
	}
}
