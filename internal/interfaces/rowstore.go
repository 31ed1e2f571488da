package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/mitto/internal/models"
)

// ErrQueueNotFound is returned when a named queue does not exist in the store.
var ErrQueueNotFound = errors.New("queue not found")

// RowStore is the persistent queue backing a run. It is the only durable
// record of progress, so every mutation must be idempotent at the cell level:
// re-running a write with the same value leaves the queue unchanged.
type RowStore interface {
	// ListRows returns all rows of a queue in index order, header included.
	ListRows(ctx context.Context, queue string) ([]models.Row, error)

	// UpdateCell writes a single cell. row is 1-based, col is 0-based.
	UpdateCell(ctx context.Context, queue string, row, col int, value string) error

	// AppendRow appends a new row after the current last row.
	AppendRow(ctx context.Context, queue string, values []string) error
}
