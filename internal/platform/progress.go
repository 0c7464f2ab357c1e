package platform

import (
	"context"
	"fmt"

	"github.com/lukman83/dealscout/internal/models"
)

// ProgressFunc receives human-readable progress lines.
type ProgressFunc func(msg string)

type progressKey struct{}

// WithProgress returns a context carrying the given progress callback.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey{}, fn)
}

// ReportProgress formats and forwards a progress line for brand. It is a
// no-op when ctx carries no callback (MCP and HTTP modes).
func ReportProgress(ctx context.Context, brand models.BrandID, format string, args ...any) {
	fn, ok := ctx.Value(progressKey{}).(ProgressFunc)
	if !ok || fn == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if brand != "" {
		msg = string(brand) + ": " + msg
	}
	fn(msg)
}
