package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the admin handler receives a request.
// Route is the matched pattern, e.g. "POST /statements/{id}/cancel".
type HTTPStart struct {
	Request *http.Request
	Route   string
}

// HTTPFinish is emitted after the admin handler completes.
type HTTPFinish struct {
	Request  *http.Request
	Route    string
	Status   int
	Duration time.Duration
}
