package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. A StageError unwraps to one of these and to its cause.
var (
	ErrConnection      = errors.New("connection error")
	ErrFileRead        = errors.New("file read error")
	ErrInsert          = errors.New("insert error")
	ErrCollectionSetup = errors.New("collection setup error")
	ErrMalformedRow    = errors.New("malformed row")
	ErrDuplicateID     = errors.New("duplicate record id")
	ErrWorkload        = errors.New("workload error")
	ErrOutput          = errors.New("output error")
)

// Stage names a step of a benchmark run.
type Stage string

const (
	StageConnect    Stage = "connect"
	StageCollection Stage = "collection"
	StageIngest     Stage = "ingest"
	StageExpand     Stage = "expand"
	StageDump       Stage = "dump"
	StageInsert     Stage = "insert"
	StageReport     Stage = "report"
)

// StageError is a fault raised by a benchmark stage.
type StageError struct {
	Stage   Stage
	Kind    error
	Details map[string]string
	Err     error
}

// NewStageError builds a StageError. details are key/value pairs.
func NewStageError(stage Stage, kind, err error, details ...string) *StageError {
	se := &StageError{Stage: stage, Kind: kind, Err: err}
	if len(details) > 0 {
		se.Details = make(map[string]string, len(details)/2)
		for i := 0; i+1 < len(details); i += 2 {
			se.Details[details[i]] = details[i+1]
		}
	}
	return se
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Stage))
	b.WriteString(": ")
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// StageOf returns the stage of the first StageError in err's chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
