// Package memory provides an in-memory RowStore used by tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/ternarybob/mitto/internal/interfaces"
	"github.com/ternarybob/mitto/internal/models"
)

// RowStore is an in-memory queue store. It mirrors the badger implementation's
// observable behaviour, including header bootstrapping, and additionally
// records mutations and supports injected failures so the retry decorator can
// be exercised.
type RowStore struct {
	mu     sync.Mutex
	queues map[string][][]string

	// FailUpdates makes the next N UpdateCell calls fail.
	FailUpdates int
	// FailAppends makes the next N AppendRow calls fail.
	FailAppends int

	// Updates records every successful UpdateCell call.
	Updates []CellUpdate
}

// CellUpdate is one recorded UpdateCell call.
type CellUpdate struct {
	Queue string
	Row   int
	Col   int
	Value string
}

var _ interfaces.RowStore = (*RowStore)(nil)

// NewRowStore creates an empty in-memory store.
func NewRowStore() *RowStore {
	return &RowStore{queues: make(map[string][][]string)}
}

// Seed replaces the contents of a queue. The header row is prepended
// automatically.
func (s *RowStore) Seed(queue string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := [][]string{models.QueueHeaders(queue)}
	for _, r := range rows {
		data = append(data, append([]string{}, r...))
	}
	s.queues[queue] = data
}

func (s *RowStore) ListRows(ctx context.Context, queue string) ([]models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.queues[queue]
	if !ok {
		data = [][]string{models.QueueHeaders(queue)}
		s.queues[queue] = data
	}

	rows := make([]models.Row, 0, len(data))
	for i, cells := range data {
		rows = append(rows, models.Row{Index: i + 1, Cells: append([]string{}, cells...)})
	}
	return rows, nil
}

func (s *RowStore) UpdateCell(ctx context.Context, queue string, row, col int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpdates > 0 {
		s.FailUpdates--
		return errInjected
	}

	data, ok := s.queues[queue]
	if !ok {
		return interfaces.ErrQueueNotFound
	}
	for len(data) < row {
		data = append(data, []string{})
	}
	cells := data[row-1]
	for len(cells) <= col {
		cells = append(cells, "")
	}
	cells[col] = value
	data[row-1] = cells
	s.queues[queue] = data

	s.Updates = append(s.Updates, CellUpdate{Queue: queue, Row: row, Col: col, Value: value})
	return nil
}

func (s *RowStore) AppendRow(ctx context.Context, queue string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAppends > 0 {
		s.FailAppends--
		return errInjected
	}

	data, ok := s.queues[queue]
	if !ok {
		data = [][]string{models.QueueHeaders(queue)}
	}
	s.queues[queue] = append(data, append([]string{}, values...))
	return nil
}

// Cell returns the current value of a cell for assertions.
func (s *RowStore) Cell(queue string, row, col int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.queues[queue]
	if row < 1 || row > len(data) {
		return ""
	}
	cells := data[row-1]
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}

// RowCount returns the number of rows in a queue, header included.
func (s *RowStore) RowCount(queue string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[queue])
}

type injectedError struct{}

func (injectedError) Error() string { return "injected store failure" }

var errInjected = injectedError{}
