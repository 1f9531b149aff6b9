package table

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process workbook. It is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	sheets map[string]*memorySheet
	closed bool
}

// NewMemory creates an empty in-memory workbook
func NewMemory() *Memory {
	return &Memory{sheets: make(map[string]*memorySheet)}
}

// Sheet implements Workbook.Sheet
func (m *Memory) Sheet(ctx context.Context, title string) (Sheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sheets[title]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, title)
	}
	return s, nil
}

// AddSheet implements Workbook.AddSheet
func (m *Memory) AddSheet(ctx context.Context, title string, header []string) (Sheet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sheets[title]; ok {
		return nil, fmt.Errorf("sheet %q already exists", title)
	}
	s := &memorySheet{title: title, header: copyRow(header)}
	m.sheets[title] = s
	return s, nil
}

// Close implements Workbook.Close
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type memorySheet struct {
	mu     sync.Mutex
	title  string
	header []string
	rows   [][]string
}

func (s *memorySheet) Title() string { return s.title }

func (s *memorySheet) Header(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRow(s.header), nil
}

func (s *memorySheet) Rows(ctx context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = copyRow(r)
	}
	return out, nil
}

func (s *memorySheet) AppendRow(ctx context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, copyRow(values))
	return nil
}

func (s *memorySheet) UpdateRow(ctx context.Context, index int, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, index)
	}
	s.rows[index] = copyRow(values)
	return nil
}

func (s *memorySheet) DeleteRow(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, index)
	}
	s.rows = append(s.rows[:index], s.rows[index+1:]...)
	return nil
}

func (s *memorySheet) Reset(ctx context.Context, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = copyRow(header)
	s.rows = nil
	return nil
}

func copyRow(r []string) []string {
	if r == nil {
		return []string{}
	}
	return append([]string(nil), r...)
}
