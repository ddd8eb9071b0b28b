package engine

import (
	"context"
	"fmt"

	enhance "github.com/goliatone/go-enhance"
)

// Controller is the engine-control collaborator: it hands rendered
// configurations to the running engine and reports its health.
type Controller interface {
	// Push asks the engine to reload its configuration from path.
	Push(ctx context.Context, path string) error
	// Patch applies a partial configuration to the running engine without
	// a reload.
	Patch(ctx context.Context, patch enhance.Document) error
	// Healthcheck reports whether the engine's control API is reachable.
	Healthcheck(ctx context.Context) error
}

// APIError reports a control API response outside the success range.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Body == "" {
		return fmt.Sprintf("engine: api status %d", e.Status)
	}
	return fmt.Sprintf("engine: api status %d: %s", e.Status, e.Body)
}
