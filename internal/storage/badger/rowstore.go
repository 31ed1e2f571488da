package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// RowStore implements interfaces.RowStore on badgerhold. Rows are stored one
// record per row keyed "<queue>:<index>" so a cell update touches exactly one
// record. An empty queue is bootstrapped with its header row on first access,
// mirroring how the original worksheets are created.
type RowStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// rowRecord is the stored form of one queue row.
type rowRecord struct {
	Key       string `badgerhold:"key"` // "<queue>:<index>"
	Queue     string `badgerhold:"index"`
	Index     int
	Cells     []string
	UpdatedAt time.Time
}

// NewRowStore creates a badger-backed row store.
func NewRowStore(db *BadgerDB, logger arbor.ILogger) interfaces.RowStore {
	return &RowStore{db: db, logger: logger}
}

func rowKey(queue string, index int) string {
	return fmt.Sprintf("%s:%08d", queue, index)
}

// ListRows returns all rows of a queue in index order, creating the queue
// with its header row when it does not exist yet.
func (s *RowStore) ListRows(ctx context.Context, queue string) ([]models.Row, error) {
	records, err := s.list(queue)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		s.logger.Warn().Str("queue", queue).Msg("Queue not found, creating with headers")
		header := rowRecord{
			Key:       rowKey(queue, 1),
			Queue:     queue,
			Index:     1,
			Cells:     models.QueueHeaders(queue),
			UpdatedAt: time.Now(),
		}
		if err := s.db.Store().Upsert(header.Key, header); err != nil {
			return nil, fmt.Errorf("failed to create queue %s: %w", queue, err)
		}
		records = []rowRecord{header}
	}

	rows := make([]models.Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.Row{Index: rec.Index, Cells: rec.Cells})
	}

	s.logger.Debug().Str("queue", queue).Int("rows", len(rows)).Msg("Listed queue rows")
	return rows, nil
}

// UpdateCell writes a single cell, widening the row when col is beyond its
// current width.
func (s *RowStore) UpdateCell(ctx context.Context, queue string, row, col int, value string) error {
	if row < 1 || col < 0 {
		return fmt.Errorf("invalid cell (%d,%d) in queue %s", row, col, queue)
	}

	key := rowKey(queue, row)
	var rec rowRecord
	err := s.db.Store().Get(key, &rec)
	if err == badgerhold.ErrNotFound {
		rec = rowRecord{Key: key, Queue: queue, Index: row}
	} else if err != nil {
		return fmt.Errorf("failed to read row %d in queue %s: %w", row, queue, err)
	}

	for len(rec.Cells) <= col {
		rec.Cells = append(rec.Cells, "")
	}
	rec.Cells[col] = value
	rec.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(key, rec); err != nil {
		return fmt.Errorf("failed to update cell (%d,%d) in queue %s: %w", row, col, queue, err)
	}
	return nil
}

// AppendRow appends a new row after the current last row.
func (s *RowStore) AppendRow(ctx context.Context, queue string, values []string) error {
	records, err := s.list(queue)
	if err != nil {
		return err
	}

	next := 1
	for _, rec := range records {
		if rec.Index >= next {
			next = rec.Index + 1
		}
	}

	rec := rowRecord{
		Key:       rowKey(queue, next),
		Queue:     queue,
		Index:     next,
		Cells:     append([]string{}, values...),
		UpdatedAt: time.Now(),
	}
	if err := s.db.Store().Insert(rec.Key, rec); err != nil {
		return fmt.Errorf("failed to append row to queue %s: %w", queue, err)
	}

	s.logger.Debug().Str("queue", queue).Int("row", next).Msg("Appended queue row")
	return nil
}

func (s *RowStore) list(queue string) ([]rowRecord, error) {
	var records []rowRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Queue").Eq(queue).Index("Queue")); err != nil {
		return nil, fmt.Errorf("failed to list queue %s: %w", queue, err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })
	return records, nil
}
