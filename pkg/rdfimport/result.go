package rdfimport

import (
	"fmt"
	"time"
)

// Status is the terminal status of an import call.
type Status string

const (
	StatusOK Status = "OK"
	StatusKO Status = "KO"
)

// Result summarizes one import, preview, validate or stream call. It is
// returned even when the call fails, carrying the counts reached so far.
type Result struct {
	RunID  string
	Status Status

	TriplesParsed int64
	TriplesMapped int64
	// TriplesLoaded counts mapped triples whose batch was durably committed.
	TriplesLoaded int64

	// Namespaces holds prefix -> namespace for the bindings in use when the
	// call ended. Only SHORTEN modes fill it.
	Namespaces map[string]string

	Warnings  []string
	ExtraInfo string
	Error     error
	Duration  time.Duration
}

// OK reports whether the call terminated successfully.
func (r *Result) OK() bool {
	return r.Status == StatusOK
}

func (r *Result) String() string {
	s := fmt.Sprintf("%s parsed=%d mapped=%d loaded=%d namespaces=%d warnings=%d in %s",
		r.Status, r.TriplesParsed, r.TriplesMapped, r.TriplesLoaded,
		len(r.Namespaces), len(r.Warnings), r.Duration.Round(time.Millisecond))
	if r.Error != nil {
		s += ": " + r.Error.Error()
	}
	return s
}

// fail marks r as KO with err.
func (r *Result) fail(err error) *Result {
	r.Status = StatusKO
	r.Error = err
	if r.ExtraInfo == "" && err != nil {
		r.ExtraInfo = err.Error()
	}
	return r
}
