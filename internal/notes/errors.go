package notes

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound indicates that nothing has been stored under the collection key yet.
	ErrCollectionNotFound = errors.New("notes: collection not found")
	// ErrDecode indicates stored or imported data that is not a JSON array of records.
	ErrDecode = errors.New("notes: decode failed")
	// ErrPersist indicates that the collection could not be written to storage.
	ErrPersist = errors.New("notes: persist failed")
	// ErrInvalidRecord indicates an imported record that does not have a note shape.
	ErrInvalidRecord = errors.New("notes: invalid record")

	errMissingRepository = errors.New("repository is required")
	errMissingIDProvider = errors.New("id provider is required")
	errIDCollision       = errors.New("id provider kept issuing identifiers already in use")
)

// DecodeError reports data that could not be decoded into a note collection.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("notes: decode %s", e.Source)
	}
	return fmt.Sprintf("notes: decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// PersistError reports a failed write of the collection.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("notes: persist %q: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrPersist, e.Err}
}

// ServiceError carries a dotted "<operation>.<reason>" code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStoreNew   = "notes.store.new"
	opInitialize = "notes.initialize"
	opCreate     = "notes.create"
	opUpdate     = "notes.update"
	opDelete     = "notes.delete"
	opImport     = "notes.import"
	opExport     = "notes.export"
)

const (
	reasonMissingRepository = "missing_repository"
	reasonMissingIDProvider = "missing_id_provider"
	reasonLoadFailed        = "load_failed"
	reasonPersistFailed     = "persist_failed"
	reasonIDGeneration      = "id_generation_failed"
	reasonEncodeFailed      = "encode_failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
