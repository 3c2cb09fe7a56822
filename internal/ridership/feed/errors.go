package feed

import (
	"errors"
	"fmt"
)

// Source names one of the two documents of a load cycle.
type Source string

// Document sources.
const (
	SourceAnalysis Source = "analysis"
	SourceStations Source = "stations"
)

// ErrorKind classifies a load failure.
type ErrorKind int

// Load failure kinds.
const (
	// KindNetwork covers unreachable hosts, open circuits and non-2xx responses.
	KindNetwork ErrorKind = iota + 1

	// KindParse covers bodies that are not valid JSON or fail snapshot validation.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by LoadError.Is.
var (
	ErrNetwork = errors.New("network error")
	ErrParse   = errors.New("parse error")
)

// LoadError reports why one document of a load cycle could not be used.
type LoadError struct {
	Kind   ErrorKind
	Source Source

	// StatusCode is set for non-2xx responses.
	StatusCode int

	Err error
}

func (e *LoadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error: status %d", e.Source, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s %s error: %v", e.Source, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrNetwork and ErrParse by kind.
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

// NewParseError wraps err as a parse failure of src.
func NewParseError(src Source, err error) *LoadError {
	return &LoadError{Kind: KindParse, Source: src, Err: err}
}
