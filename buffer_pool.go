package heapdb

import (
	"log"
	"math/rand"
	"sync"
	"time"
)

/*
buffer_pool.go is the bounded page cache: page-level locking via
LockManager, NO-STEAL eviction, and WAL-cooperating commit/abort.
*/

// Permission is the access mode requested when fetching a page, used to
// pick the lock mode acquired on it.
type Permission int

const (
	ReadOnly Permission = iota
	ReadWrite
)

func (p Permission) lockMode() LockMode {
	if p == ReadWrite {
		return Exclusive
	}
	return Shared
}

// BufferPool is the bounded page cache fronting every HeapFile, fronted
// in turn by a LockManager.
type BufferPool struct {
	mu       sync.Mutex
	pages    map[PageId]*HeapPage
	maxPages int

	lockMgr *LockManager
	log     LogWriter
}

// NewBufferPool constructs a BufferPool with the given page capacity.
func NewBufferPool(numPages int) *BufferPool {
	if numPages <= 0 {
		numPages = DefaultBufferPoolPages
	}
	return &BufferPool{
		pages:    make(map[PageId]*HeapPage),
		maxPages: numPages,
		lockMgr:  NewLockManager(),
	}
}

// SetLogWriter wires the log-file collaborator used by flushPage. A BufferPool with no log writer flushes directly to disk
// without a WAL record, which is adequate for tests that do not exercise
// the WAL-before-write invariant.
func (bp *BufferPool) SetLogWriter(w LogWriter) {
	bp.log = w
}

// randomLockTimeout returns a timeout in [0, 2000) ms.
func randomLockTimeout() time.Duration {
	return time.Duration(rand.Intn(lockTimeoutMaxMillis)) * time.Millisecond
}

// GetPage resolves pid's page lock, retries acquisition until granted or
// timed out, then serves the page from cache or disk.
//
// The first acquisition attempt always happens before the clock is
// consulted, so a lock that is free on arrival is granted without ever
// sleeping.
func (bp *BufferPool) GetPage(tid TransactionId, file *HeapFile, pid PageId, perm Permission) (*HeapPage, error) {
	mode := perm.lockMode()
	var start time.Time
	timeout := randomLockTimeout()
	attempt := 0
	for {
		if bp.lockMgr.AcquireLock(tid, pid, mode) {
			break
		}
		if attempt == 0 {
			start = time.Now()
		}
		attempt++
		if time.Since(start) > timeout {
			return nil, &TransactionAbortedError{Tid: tid, Pid: pid}
		}
		time.Sleep(time.Millisecond)
	}

	bp.mu.Lock()
	if page, ok := bp.pages[pid]; ok {
		bp.mu.Unlock()
		return page, nil
	}
	bp.mu.Unlock()

	// Miss: evict if necessary, then read from disk. Disk I/O must not
	// happen under bp.mu, but the page lock acquired above already
	// serializes concurrent fetches of this same page.
	bp.mu.Lock()
	if len(bp.pages) >= bp.maxPages {
		if err := bp.evictPageLocked(); err != nil {
			bp.mu.Unlock()
			return nil, err
		}
	}
	bp.mu.Unlock()

	page, err := file.ReadPage(pid.PageNumber)
	if err != nil {
		return nil, err
	}
	page.setBeforeImage()

	bp.mu.Lock()
	if existing, ok := bp.pages[pid]; ok {
		bp.mu.Unlock()
		return existing, nil
	}
	bp.pages[pid] = page
	bp.mu.Unlock()
	return page, nil
}

// evictPageLocked implements NO-STEAL eviction: the
// first clean resident page found is flushed (a no-op for a clean page)
// and discarded. Caller holds bp.mu.
func (bp *BufferPool) evictPageLocked() error {
	for pid, page := range bp.pages {
		if _, dirty := page.isDirty(); !dirty {
			delete(bp.pages, pid)
			return nil
		}
	}
	return GoDBError{BufferPoolFullError, "all pages in buffer pool are dirty"}
}

// insertPage installs a page into the cache, evicting if necessary, used
// after HeapFile.InsertTuple/DeleteTuple return the pages they modified.
func (bp *BufferPool) insertPage(tid TransactionId, page *HeapPage) error {
	page.markDirty(true, tid)
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, ok := bp.pages[page.pid]; !ok {
		if len(bp.pages) >= bp.maxPages {
			if err := bp.evictPageLocked(); err != nil {
				return err
			}
		}
	}
	bp.pages[page.pid] = page
	return nil
}

// InsertTuple delegates to the heap file and installs every page it
// returns as dirty-by-tid.
func (bp *BufferPool) InsertTuple(tid TransactionId, file *HeapFile, t *Tuple) error {
	pages, err := file.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	for _, p := range pages {
		if err := bp.insertPage(tid, p); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTuple delegates to the heap file and installs the page it
// returns as dirty-by-tid.
func (bp *BufferPool) DeleteTuple(tid TransactionId, file *HeapFile, t *Tuple) error {
	page, err := file.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.insertPage(tid, page)
}

// flushPage writes a dirty page following WAL-before-write ordering: log
// the before/after images, force the log, then write the page, in that
// order, before clearing the dirty flag.
func (bp *BufferPool) flushPage(pid PageId) error {
	bp.mu.Lock()
	page, ok := bp.pages[pid]
	bp.mu.Unlock()
	if !ok {
		return nil
	}
	dirtyTid, dirty := page.isDirty()
	if !dirty {
		return nil
	}

	if bp.log != nil {
		before, err := page.getBeforeImage()
		if err != nil {
			return err
		}
		if err := bp.log.LogUpdate(dirtyTid, before, page); err != nil {
			return err
		}
		if err := bp.log.Force(); err != nil {
			return err
		}
	}

	if err := page.getFile().WritePage(page); err != nil {
		return err
	}
	page.markDirty(false, dirtyTid)
	return nil
}

// transactionComplete ends tid's transaction: on commit, flush every
// page dirtied by tid and checkpoint every resident page's before-image;
// on abort, discard tid's dirty pages and re-read them from disk. Locks
// held by tid are released in both cases.
func (bp *BufferPool) transactionComplete(tid TransactionId, commit bool) error {
	bp.mu.Lock()
	dirtied := make([]PageId, 0)
	for pid, page := range bp.pages {
		if dtid, dirty := page.isDirty(); dirty && dtid.Equals(tid) {
			dirtied = append(dirtied, pid)
		}
	}
	bp.mu.Unlock()

	if commit {
		for _, pid := range dirtied {
			if err := bp.flushPage(pid); err != nil {
				bp.lockMgr.ReleaseAll(tid)
				return err
			}
		}
		bp.mu.Lock()
		for _, page := range bp.pages {
			page.setBeforeImage()
		}
		bp.mu.Unlock()
	} else {
		for _, pid := range dirtied {
			bp.mu.Lock()
			page := bp.pages[pid]
			bp.mu.Unlock()
			fresh, err := page.getFile().ReadPage(pid.PageNumber)
			if err != nil {
				bp.lockMgr.ReleaseAll(tid)
				return err
			}
			bp.mu.Lock()
			bp.pages[pid] = fresh
			bp.mu.Unlock()
		}
	}

	bp.lockMgr.ReleaseAll(tid)
	return nil
}

// Commit and Abort are the public names for transactionComplete's two
// outcomes.
func (bp *BufferPool) Commit(tid TransactionId) error {
	return bp.transactionComplete(tid, true)
}

func (bp *BufferPool) Abort(tid TransactionId) error {
	return bp.transactionComplete(tid, false)
}

// discard drops pid from the cache without flushing it, so the next
// GetPage re-reads it from disk.
func (bp *BufferPool) discard(pid PageId) {
	bp.mu.Lock()
	delete(bp.pages, pid)
	bp.mu.Unlock()
}

// FlushAllPages flushes every resident page regardless of owning
// transaction. Testing-only; not used by transactionComplete.
func (bp *BufferPool) FlushAllPages() {
	bp.mu.Lock()
	pages := make([]PageId, 0, len(bp.pages))
	for pid := range bp.pages {
		pages = append(pages, pid)
	}
	bp.mu.Unlock()

	for _, pid := range pages {
		if err := bp.flushPage(pid); err != nil {
			log.Printf("FlushAllPages: flush of %v failed: %v", pid, err)
		}
	}
}
