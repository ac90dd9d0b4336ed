package lifecycle

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// requestIDFrom pulls the request id injected by the HTTP middleware,
// empty for non-HTTP callers
func requestIDFrom(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}
