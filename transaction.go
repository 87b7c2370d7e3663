package heapdb

import "github.com/google/uuid"

// TransactionId is an opaque, globally unique transaction identifier.
// Backed by a UUID rather than an incrementing counter so that
// identifiers are unique without any shared coordination state.
type TransactionId struct {
	id uuid.UUID
}

// NewTransactionId mints a fresh TransactionId.
func NewTransactionId() TransactionId {
	return TransactionId{id: uuid.New()}
}

func (t TransactionId) Equals(other TransactionId) bool {
	return t.id == other.id
}

func (t TransactionId) String() string {
	return t.id.String()
}
