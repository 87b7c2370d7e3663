package heapdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
)

/*
log_file.go is the write-ahead log: a forward-appended sequence of
records (type byte, transaction id, body, trailing offset footer) backed
by a uuid.UUID-keyed TransactionId and self-describing PageId (which
already carries a table id, so no separate file-number table is needed).
It implements LogWriter (catalog.go), the ambient WAL collaborator the
buffer pool drives through that interface.
*/

type LogFile struct {
	file    *os.File
	buf     bytes.Buffer
	offset  int64
	catalog Catalog
}

type LogRecordType int8

const (
	AbortRecord LogRecordType = iota
	CommitRecord
	UpdateRecord
	BeginRecord
)

func (t LogRecordType) String() string {
	switch t {
	case AbortRecord:
		return "abort"
	case CommitRecord:
		return "commit"
	case UpdateRecord:
		return "update"
	case BeginRecord:
		return "begin"
	default:
		return "unknown"
	}
}

// NewLogFile opens (creating if necessary) fileName as a write-ahead log.
// catalog may be nil for callers that only ever write records and never
// replay them.
func NewLogFile(fileName string, catalog Catalog) (*LogFile, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &LogFile{file: file, catalog: catalog}, nil
}

func (w *LogFile) write(data any) {
	binary.Write(&w.buf, binary.BigEndian, data)
	w.offset += int64(binary.Size(data))
}

// Force implements LogWriter.Force: flush the buffered records to disk
// and fsync.
func (w *LogFile) Force() error {
	if w.buf.Len() == 0 {
		return nil
	}
	if _, err := w.file.Write(w.buf.Bytes()); err != nil {
		return err
	}
	off, _ := w.file.Seek(0, io.SeekCurrent)
	if off != w.offset {
		log.Printf("log file offset mismatch: %d != %d", off, w.offset)
	}
	w.buf.Reset()
	return w.file.Sync()
}

func (f *LogFile) seek(offset int64, whence int) error {
	if err := f.Force(); err != nil {
		return err
	}
	newOffset, err := f.file.Seek(offset, whence)
	if err != nil {
		return fmt.Errorf("invalid seek (%d, %d): %w", offset, whence, err)
	}
	f.offset = newOffset
	return nil
}

func (f *LogFile) read(data any) error {
	if err := f.Force(); err != nil {
		return err
	}
	if err := binary.Read(f.file, binary.BigEndian, data); err != nil {
		return err
	}
	f.offset += int64(binary.Size(data))
	return nil
}

func (w *LogFile) writeTransactionId(tid TransactionId) {
	id := tid.id
	w.write(id[:])
}

func (w *LogFile) readTransactionId() (TransactionId, error) {
	var raw [16]byte
	if err := w.read(raw[:]); err != nil {
		return TransactionId{}, err
	}
	id, err := uuid.FromBytes(raw[:])
	if err != nil {
		return TransactionId{}, err
	}
	return TransactionId{id: id}, nil
}

func (w *LogFile) writeHeader(typ LogRecordType, tid TransactionId) {
	w.write(int8(typ))
	w.writeTransactionId(tid)
}

func (w *LogFile) writeFooter(offset int64) {
	w.write(offset)
}

func (w *LogFile) writePageId(pid PageId) {
	w.write(pid.TableId)
	w.write(int32(pid.PageNumber))
}

func (w *LogFile) readPageId() (PageId, error) {
	var tableId int64
	if err := w.read(&tableId); err != nil {
		return PageId{}, err
	}
	var pageNo int32
	if err := w.read(&pageNo); err != nil {
		return PageId{}, err
	}
	return PageId{TableId: tableId, PageNumber: int(pageNo)}, nil
}

func (w *LogFile) writePage(page *HeapPage) error {
	w.writePageId(page.pid)
	data, err := page.pageData()
	if err != nil {
		return err
	}
	w.write(data)
	return nil
}

// readPage decodes a page image written by writePage, using the catalog
// to resolve the owning table's schema and backing file. Only used by
// the forward replay iterator.
func (w *LogFile) readPage() (*HeapPage, error) {
	pid, err := w.readPageId()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, PageSize)
	if err := w.read(buf); err != nil {
		return nil, err
	}
	if w.catalog == nil {
		return nil, fmt.Errorf("log replay requires a catalog")
	}
	td, err := w.catalog.GetTupleDesc(pid.TableId)
	if err != nil {
		return nil, err
	}
	dbFile, err := w.catalog.GetDatabaseFile(pid.TableId)
	if err != nil {
		return nil, err
	}
	hf, _ := dbFile.(*HeapFile)
	return NewHeapPage(pid, td, hf, buf)
}

// LogAbort records that tid aborted.
func (w *LogFile) LogAbort(tid TransactionId) {
	offset := w.offset
	w.writeHeader(AbortRecord, tid)
	w.writeFooter(offset)
}

// LogCommit records that tid committed.
func (w *LogFile) LogCommit(tid TransactionId) {
	offset := w.offset
	w.writeHeader(CommitRecord, tid)
	w.writeFooter(offset)
}

// LogUpdate implements LogWriter.LogUpdate: record tid's before/after
// images of a page. Does not force the log; callers (BufferPool.flushPage)
// call Force() explicitly.
func (w *LogFile) LogUpdate(tid TransactionId, before, after *HeapPage) error {
	if before == nil || after == nil {
		return fmt.Errorf("before and after images must be non-nil")
	}
	offset := w.offset
	w.writeHeader(UpdateRecord, tid)
	if err := w.writePage(before); err != nil {
		return err
	}
	if err := w.writePage(after); err != nil {
		return err
	}
	w.writeFooter(offset)
	return nil
}

// LogBegin records the start of transaction tid.
func (w *LogFile) LogBegin(tid TransactionId) {
	offset := w.offset
	w.writeHeader(BeginRecord, tid)
	w.writeFooter(offset)
}

type LogRecord interface {
	Offset() int64
	Type() LogRecordType
	Tid() TransactionId
}

type GenericLogRecord struct {
	offset int64
	typ    LogRecordType
	tid    TransactionId
}

func (r GenericLogRecord) Offset() int64       { return r.offset }
func (r GenericLogRecord) Type() LogRecordType { return r.typ }
func (r GenericLogRecord) Tid() TransactionId  { return r.tid }

type UpdateLogRecord struct {
	GenericLogRecord
	Before *HeapPage
	After  *HeapPage
}

// ForwardIterator returns a closure that replays records from the
// current file offset forward, returning (nil, nil) at a clean
// end-of-file and an error on a truncated trailing record.
func (f *LogFile) ForwardIterator() func() (LogRecord, error) {
	partial := func(msg string, err error) (LogRecord, error) {
		return nil, fmt.Errorf("failed to read %s: partial record at offset %d: %v", msg, f.offset, err)
	}

	return func() (LogRecord, error) {
		var record GenericLogRecord
		var ret LogRecord = &record
		record.offset = f.offset

		var typ int8
		err := f.read(&typ)
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return partial("record type", err)
		}
		record.typ = LogRecordType(typ)

		tid, err := f.readTransactionId()
		if err != nil {
			return partial("transaction id", err)
		}
		record.tid = tid

		if record.Type() == UpdateRecord {
			var update UpdateLogRecord
			update.GenericLogRecord = record
			if update.Before, err = f.readPage(); err != nil {
				return partial("before page", err)
			}
			if update.After, err = f.readPage(); err != nil {
				return partial("after page", err)
			}
			ret = &update
		}

		var recordOffset int64
		if err := f.read(&recordOffset); err != nil || recordOffset != record.offset {
			return partial("offset footer", err)
		}
		return ret, nil
	}
}
