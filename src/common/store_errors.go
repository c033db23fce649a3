package common

import "fmt"

// StoreErrType enumerates the error conditions reported by journal stores.
type StoreErrType uint32

const (
	// KeyNotFound is returned when a record is absent from the store.
	KeyNotFound StoreErrType = iota
	// SkippedIndex is returned when a sequence number leaves a gap.
	SkippedIndex
	// PassedIndex is returned when a sequence number was already assigned.
	PassedIndex
	// Empty is returned when reading from a store with no records.
	Empty
	// Corrupt is returned when persisted records cannot be decoded or do not
	// form a gapless sequence.
	Corrupt
)

// StoreErr qualifies a store error with the record type and key involved.
type StoreErr struct {
	dataType string
	errType  StoreErrType
	key      string
}

// NewStoreErr constructs a StoreErr.
func NewStoreErr(dataType string, errType StoreErrType, key string) StoreErr {
	return StoreErr{
		dataType: dataType,
		errType:  errType,
		key:      key,
	}
}

// Error implements the error interface.
func (e StoreErr) Error() string {
	m := ""
	switch e.errType {
	case KeyNotFound:
		m = "Not Found"
	case SkippedIndex:
		m = "Skipped Index"
	case PassedIndex:
		m = "Passed Index"
	case Empty:
		m = "Empty"
	case Corrupt:
		m = "Corrupt"
	}

	return fmt.Sprintf("%s, %s, %s", e.dataType, e.key, m)
}

// IsStore checks that an error is of type StoreErr and that its code matches
// the provided StoreErrType.
func IsStore(err error, t StoreErrType) bool {
	storeErr, ok := err.(StoreErr)
	return ok && storeErr.errType == t
}
