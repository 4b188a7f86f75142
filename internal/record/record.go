// Package record persists prediction log records: one structured line per
// served request, append-only.
package record

import (
	"context"

	"github.com/crimson-sun/newscat/internal/model"
)

// Sink is a destination for prediction log records.
type Sink interface {
	Write(ctx context.Context, rec model.LogRecord) error
	Close() error
}
