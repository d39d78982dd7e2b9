package lifecycle

import (
	"errors"
	"fmt"

	"github.com/lisan-ai/lisan/pkg/models"
)

// ErrInvalidRequest is returned for requests that fail validation. Nothing is
// recorded for them.
var ErrInvalidRequest = errors.New("lifecycle: invalid request")

// Messages recorded in the ledger when a request cannot reach a background retry.
const (
	msgQueueFull    = "retry queue full"
	msgShuttingDown = "service shutting down"
	msgInternal     = "internal error"
)

// Outcome is what the caller of Translate or Summarize gets back.
// Result is set only when Status is completed.
type Outcome[R any] struct {
	ID       string
	Status   models.Status
	Result   *R
	CacheHit bool
	Error    string
}

// Response renders the outcome as the HTTP envelope. cache_hit is only
// reported for completed requests.
func (o Outcome[R]) Response() models.TransformResponse {
	resp := models.TransformResponse{ID: o.ID, Status: o.Status, Error: o.Error}
	if o.Result != nil {
		resp.Result = o.Result
	}
	if o.Status == models.StatusCompleted {
		hit := o.CacheHit
		resp.CacheHit = &hit
	}
	return resp
}

// InternalError reports a recovered panic. Only the request id is meant to
// reach the client.
type InternalError struct {
	RequestID string
	Panic     any
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("lifecycle: internal error (request %s)", e.RequestID)
}
