package heapdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DBType is the type of a tuple field: the closed set {INT, STRING(len)}.
type DBType int

const (
	IntType DBType = iota
	StringType
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	default:
		return "unknown"
	}
}

// FieldType names one column of a TupleDesc. Len is the on-disk byte
// width of a STRING field (meaningless for INT, which is always 4 bytes).
type FieldType struct {
	Fname string
	Ftype DBType
	Len   int
}

// fieldSize returns the number of bytes this field occupies on disk.
func (f FieldType) fieldSize() int {
	switch f.Ftype {
	case IntType:
		return 4
	case StringType:
		return 4 + f.Len // 4-byte length prefix + payload
	default:
		return 0
	}
}

// TupleDesc is the ordered schema of a Tuple: field types and optional names.
type TupleDesc struct {
	Fields []FieldType
}

// bytesPerTuple is the fixed on-disk width of a tuple matching this
// descriptor.
func (td *TupleDesc) bytesPerTuple() int {
	size := 0
	for _, f := range td.Fields {
		size += f.fieldSize()
	}
	return size
}

// getSize is an alias for bytesPerTuple.
func (td *TupleDesc) getSize() int {
	return td.bytesPerTuple()
}

func (td *TupleDesc) equals(other *TupleDesc) bool {
	if len(td.Fields) != len(other.Fields) {
		return false
	}
	for i := range td.Fields {
		if td.Fields[i].Fname != other.Fields[i].Fname ||
			td.Fields[i].Ftype != other.Fields[i].Ftype ||
			td.Fields[i].Len != other.Fields[i].Len {
			return false
		}
	}
	return true
}

func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// DBValue is the interface implemented by field values (IntField,
// StringField). EvalPred compares two values of the same type under a
// BoolOp and returns false for mismatched types.
type DBValue interface {
	EvalPred(v DBValue, op BoolOp) bool
	String() string
}

// BoolOp is a comparison operator, used by DBValue.EvalPred and by
// histogram selectivity estimation.
type BoolOp int

const (
	OpEq BoolOp = iota
	OpNeq
	OpGt
	OpGeq
	OpLt
	OpLeq
)

// IntField is an INT field value.
type IntField struct {
	Value int32
}

func (f IntField) String() string {
	return strconv.FormatInt(int64(f.Value), 10)
}

func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(IntField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == other.Value
	case OpNeq:
		return f.Value != other.Value
	case OpGt:
		return f.Value > other.Value
	case OpGeq:
		return f.Value >= other.Value
	case OpLt:
		return f.Value < other.Value
	case OpLeq:
		return f.Value <= other.Value
	default:
		return false
	}
}

// StringField is a STRING field value.
type StringField struct {
	Value string
}

func (f StringField) String() string {
	return f.Value
}

func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(StringField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == other.Value
	case OpNeq:
		return f.Value != other.Value
	case OpGt:
		return f.Value > other.Value
	case OpGeq:
		return f.Value >= other.Value
	case OpLt:
		return f.Value < other.Value
	case OpLeq:
		return f.Value <= other.Value
	default:
		return false
	}
}

// Tuple is an array of field values matching a TupleDesc, carrying an
// optional RecordId once placed on a page.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    *RecordId
}

// writeTo serializes the tuple's fields, in order:
// INT as 4 big-endian bytes, STRING(len) as a 4-byte big-endian length
// prefix followed by len total bytes, zero padded.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for i, field := range t.Fields {
		ft := t.Desc.Fields[i]
		switch v := field.(type) {
		case IntField:
			if err := binary.Write(b, binary.BigEndian, v.Value); err != nil {
				return err
			}
		case StringField:
			if err := writeStringField(b, v, ft.Len); err != nil {
				return err
			}
		default:
			return GoDBError{TypeMismatchError, fmt.Sprintf("unsupported field type: %T", field)}
		}
	}
	return nil
}

func writeStringField(b *bytes.Buffer, f StringField, length int) error {
	payload := []byte(f.Value)
	if len(payload) > length {
		payload = payload[:length]
	}
	if err := binary.Write(b, binary.BigEndian, int32(len(payload))); err != nil {
		return err
	}
	padded := make([]byte, length)
	copy(padded, payload)
	_, err := b.Write(padded)
	return err
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int32
	if err := binary.Read(b, binary.BigEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: v}, nil
}

func readStringField(b *bytes.Buffer, length int) (StringField, error) {
	var n int32
	if err := binary.Read(b, binary.BigEndian, &n); err != nil {
		return StringField{}, err
	}
	buf := make([]byte, length)
	if err := binary.Read(b, binary.BigEndian, buf); err != nil {
		return StringField{}, err
	}
	if int(n) > length || n < 0 {
		return StringField{}, GoDBError{MalformedDataError, "string length prefix exceeds field width"}
	}
	return StringField{Value: string(buf[:n])}, nil
}

func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc, Fields: make([]DBValue, len(desc.Fields))}
	for i, ft := range desc.Fields {
		switch ft.Ftype {
		case IntType:
			v, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			t.Fields[i] = v
		case StringType:
			v, err := readStringField(b, ft.Len)
			if err != nil {
				return nil, err
			}
			t.Fields[i] = v
		default:
			return nil, GoDBError{SchemaMismatchError, "unknown field type"}
		}
	}
	return t, nil
}

// equals compares two tuples field-by-field and by descriptor; RecordId
// is not part of value equality.
func (t *Tuple) equals(other *Tuple) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !t.Desc.equals(&other.Desc) || len(t.Fields) != len(other.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

func (t *Tuple) String() string {
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, ", ")
}
