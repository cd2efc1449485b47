package types

import (
	"errors"
	"fmt"
	"strings"
)

// Entity and lookup errors.
var (
	ErrNotFound    = errors.New("entity not found")
	ErrInvalidID   = errors.New("invalid entity ID")
	ErrInvalidName = errors.New("invalid name")
	ErrInvalidKind = errors.New("invalid column kind")
)

// Dataset and cell errors.
var (
	ErrInvalidValue    = errors.New("invalid value")
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrColumnInUse     = errors.New("column is bound as a layer geometry")
	ErrDatasetInUse    = errors.New("dataset is referenced by a layer")
)

// Authoring errors. Operations that return them leave stored state unchanged.
var (
	ErrInvalidLayerType        = errors.New("invalid layer type")
	ErrRoleTypeMismatch        = errors.New("column kind incompatible with layer role")
	ErrLayerTypeImmutable      = errors.New("layer type cannot be changed")
	ErrLayerAttached           = errors.New("layer already attached to page")
	ErrIncompleteOrder         = errors.New("order does not match the attached layer set")
	ErrStaleDataTrackReference = errors.New("data track would target a different layer")
	ErrInvalidStepRange        = errors.New("invalid step range")
	ErrNoSubmissionTarget      = errors.New("page has no submission dataset")
)

// Collaborator and storage errors.
var (
	ErrUnauthorized = errors.New("not authorized")
	ErrUnavailable  = errors.New("storage unavailable")
)

// ValidationError describes one value that failed its column's grammar.
type ValidationError struct {
	ColumnID string // Target column, when known.
	Key      string // Payload key the value arrived under, when different from ColumnID.
	Kind     Kind
	Reason   string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid ")
	if e.Kind != "" {
		b.WriteString(string(e.Kind) + " ")
	}
	b.WriteString("value")
	switch {
	case e.ColumnID != "":
		b.WriteString(" for column " + e.ColumnID)
	case e.Key != "":
		b.WriteString(" for key " + e.Key)
	}
	b.WriteString(": " + e.Reason)
	return b.String()
}

// Is lets errors.Is match ErrInvalidValue.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidValue
}

// ValidationErrors collects every failed entry of a batch. A batch that
// returns it has written nothing.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d invalid values: %s", len(es), strings.Join(msgs, "; "))
}

func (es ValidationErrors) Is(target error) bool {
	return target == ErrInvalidValue
}

// ForColumn returns the error recorded for a column, or nil.
func (es ValidationErrors) ForColumn(columnID string) *ValidationError {
	for _, e := range es {
		if e.ColumnID == columnID {
			return e
		}
	}
	return nil
}

// StaleTrackError names the data track that blocked a reorder or detach.
type StaleTrackError struct {
	TrackID    string
	LayerIndex int
}

func (e *StaleTrackError) Error() string {
	return fmt.Sprintf("data track %s at layer index %d: %v", e.TrackID, e.LayerIndex, ErrStaleDataTrackReference)
}

func (e *StaleTrackError) Unwrap() error {
	return ErrStaleDataTrackReference
}

// StorageError wraps a driver failure. It matches both ErrUnavailable and the
// underlying error.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}
