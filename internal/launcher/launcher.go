// Package launcher defines the narrow interface the lifecycle service uses
// to start and abort executions on the external platform.
package launcher

import (
	"context"

	"github.com/wesman-labs/wesman-go/internal/domain"
)

// Launcher starts and aborts platform executions. Launch returns an opaque
// reference to the asynchronous launch operation, not the platform's own
// analysis id; Abort is fire-and-forget from the caller's point of view.
type Launcher interface {
	Launch(ctx context.Context, analysis domain.Analysis) (string, error)
	Abort(ctx context.Context, analysis domain.Analysis) error
}
