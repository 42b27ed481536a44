package client

import (
	"github.com/sessmux/sessmux/lib/transact"
)

// Target is one logical destination of a request: an address on a
// specific server. Value carries the write input or method argument and
// is unused for reads.
type Target struct {
	ServerURI string
	Address   string
	Value     []byte
}

// Outcome is the per-target slot of a Result. Processed is false for
// targets that were excluded by the mask or whose invocation never ran.
type Outcome struct {
	Processed bool
	Value     []byte
	Err       error
}

// Request is a multi-target request. The same request value can be
// dispatched again with a partial mask to retry a subset of its targets.
type Request struct {
	handle  transact.RequestHandle
	Targets []Target
}

// RequestHandle returns the client-assigned correlation handle
func (r *Request) RequestHandle() transact.RequestHandle {
	return r.handle
}

// TargetCount returns the number of logical targets
func (r *Request) TargetCount() int {
	return len(r.Targets)
}

// Result aggregates the per-target outcomes of one request
type Result struct {
	Outcomes []Outcome
}

// Prepare allocates one default outcome slot per target. Existing slots
// of the right size are kept, so a masked retry preserves the outcomes
// of targets outside the mask.
func (r *Result) Prepare(targetCount int) {
	if len(r.Outcomes) != targetCount {
		r.Outcomes = make([]Outcome, targetCount)
	}
}
