package failure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindDuplicate     Kind = "duplicate"
	KindEmbedding     Kind = "embedding"
	KindTimeout       Kind = "timeout"
	KindConfiguration Kind = "configuration"
	KindExplanation   Kind = "explanation"
	KindSource        Kind = "source"
)

// Error is a classified failure bound to an item (job uid, candidate hash) when one is known.
type Error struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, id string, err error) *Error {
	if err == nil {
		err = errors.New(string(kind))
	}
	return &Error{Kind: kind, ID: id, Err: err}
}

func Validation(id string, err error) error { return newError(KindValidation, id, err) }

// Validationf builds a validation failure from a format string.
func Validationf(id, format string, args ...any) error {
	return newError(KindValidation, id, fmt.Errorf(format, args...))
}

func Duplicate(id string) error {
	return newError(KindDuplicate, id, errors.New("already present"))
}

func Embedding(id string, err error) error { return newError(KindEmbedding, id, err) }

func Timeout(id string, err error) error { return newError(KindTimeout, id, err) }

func Explanation(id string, err error) error { return newError(KindExplanation, id, err) }

// Source marks a failed fetch from an external job source.
func Source(id string, err error) error { return newError(KindSource, id, err) }

// Configuration marks err as fatal misconfiguration.
func Configuration(err error) error { return newError(KindConfiguration, "", err) }

// Configurationf builds a configuration failure from a format string.
func Configurationf(format string, args ...any) error {
	return newError(KindConfiguration, "", fmt.Errorf(format, args...))
}

// FromCall classifies an error returned by an external call. Deadline errors become timeouts,
// everything else is tagged with fallback.
func FromCall(fallback Kind, id string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, id, err)
	}
	return newError(fallback, id, err)
}

// KindOf returns the failure kind carried by err, or an empty Kind.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ""
}

func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// Record is a serializable per-item failure.
type Record struct {
	Kind    Kind   `json:"kind"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Summary collects per-item failures of a single run.
type Summary struct {
	mu      sync.Mutex
	records []Record
}

// Add records err. Unclassified errors are stored with an empty kind.
func (s *Summary) Add(err error) {
	if err == nil {
		return
	}

	record := Record{Message: err.Error()}
	var classified *Error
	if errors.As(err, &classified) {
		record.Kind = classified.Kind
		record.ID = classified.ID
		record.Message = classified.Err.Error()
	}

	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
}

// Records returns a copy of collected records ordered by kind and id.
func (s *Summary) Records() []Record {
	s.mu.Lock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Count returns the number of records of the given kind.
func (s *Summary) Count(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.records {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func (s *Summary) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
