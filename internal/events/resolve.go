package events

import "time"

// ResolveStart is emitted before identifier batch resolution of a query.
type ResolveStart struct {
	ExecutionID string
	Cube        string
	Candidates  int
}

// ResolveFinish is emitted after resolution, including canceled or failed runs.
type ResolveFinish struct {
	ExecutionID string
	Cube        string
	Rounds      int
	Lookups     int
	Resolved    int
	Unresolved  int
	Known       int
	Err         error
	Duration    time.Duration
}

// LookupStart is emitted before one bulk children-by-name lookup.
type LookupStart struct {
	ExecutionID string
	Hierarchy   string
	Parent      string
	Depth       int
	Names       int
}

// LookupFinish is emitted after a bulk lookup returns.
type LookupFinish struct {
	ExecutionID string
	Hierarchy   string
	Parent      string
	Depth       int
	Names       int
	Found       int
	Err         error
	Duration    time.Duration
}
