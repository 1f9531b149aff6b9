// Package gateway translates between in-memory projects and tasks and the
// rows of the remote workbook. Every remote call made by this process goes
// through one Gateway and is serialized by its lock; nothing protects against
// other processes writing the same workbook concurrently.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/existflow/cowork/internal/config"
	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/model"
	"github.com/existflow/cowork/internal/table"
)

// Sheet titles and their fixed headers. Column order is part of the contract.
const (
	ProjectsSheet = "Projects"
	TasksSheet    = "Tasks"
)

var (
	ProjectColumns = []string{"project_id", "name", "color", "deadline", "last_update"}
	TaskColumns    = []string{"task_id", "project_id", "name", "goal", "description",
		"attention", "assignee", "checklist_json", "last_update"}
)

var (
	ErrMissingCredentials = errors.New("credentials file not found, set credentials_file in the settings")
	ErrMissingResource    = errors.New("sheet id missing, set sheet_id in the settings")
	ErrNotConnected       = errors.New("gateway not connected")
)

// IsConfigError returns true for errors that a retry cannot fix without a
// settings change
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrMissingResource)
}

// OpenFunc opens the workbook named by cfg
type OpenFunc func(ctx context.Context, cfg *config.Config) (table.Workbook, error)

// Gateway owns all fetch, upsert and delete calls against the workbook
type Gateway struct {
	cfg   *config.Config
	open  OpenFunc
	clock *model.Clock

	mu       sync.Mutex
	wb       table.Workbook
	projects table.Sheet
	tasks    table.Sheet
}

// New creates a gateway. Call Connect before any other method.
func New(cfg *config.Config, open OpenFunc, clock *model.Clock) *Gateway {
	if clock == nil {
		clock = model.NewClock(nil)
	}
	return &Gateway{cfg: cfg, open: open, clock: clock}
}

// Connect validates the settings, opens the workbook and makes sure both
// sheets exist with the expected header. Reconnecting replaces the previous
// session.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	path := strings.TrimSpace(g.cfg.CredentialsFile)
	if path == "" {
		return ErrMissingCredentials
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, path)
	}
	if strings.TrimSpace(g.cfg.SheetID) == "" {
		return ErrMissingResource
	}

	logger.Info("Connecting to workbook", logger.F("backend", g.cfg.Backend), logger.F("sheet", g.cfg.SheetID))
	wb, err := g.open(ctx, g.cfg)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}

	projects, err := ensureSheet(ctx, wb, ProjectsSheet, ProjectColumns)
	if err != nil {
		_ = wb.Close()
		return err
	}
	tasks, err := ensureSheet(ctx, wb, TasksSheet, TaskColumns)
	if err != nil {
		_ = wb.Close()
		return err
	}

	if g.wb != nil {
		_ = g.wb.Close()
	}
	g.wb, g.projects, g.tasks = wb, projects, tasks
	logger.Info("Connected to workbook", logger.F("sheet", g.cfg.SheetID))
	return nil
}

// Connected returns true once Connect has succeeded
func (g *Gateway) Connected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.wb != nil
}

// Reconfigure swaps the settings. When the connection settings changed the
// current workbook is dropped and the next call must Connect again.
func (g *Gateway) Reconfigure(cfg *config.Config) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	same := g.cfg.SameConnection(cfg)
	g.cfg = cfg
	if same || g.wb == nil {
		return false
	}
	_ = g.wb.Close()
	g.wb, g.projects, g.tasks = nil, nil, nil
	logger.Info("Connection settings changed", logger.F("backend", cfg.Backend), logger.F("sheet", cfg.SheetID))
	return true
}

// Close releases the workbook
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.wb == nil {
		return nil
	}
	err := g.wb.Close()
	g.wb, g.projects, g.tasks = nil, nil, nil
	return err
}

// ensureSheet returns the titled sheet, creating it or fixing its header.
// A mismatched header is replaced and existing rows are carried over by
// column name; columns the new header lacks are lost.
func ensureSheet(ctx context.Context, wb table.Workbook, title string, header []string) (table.Sheet, error) {
	sheet, err := wb.Sheet(ctx, title)
	if errors.Is(err, table.ErrSheetNotFound) {
		logger.Info("Creating sheet", logger.F("sheet", title))
		sheet, err = wb.AddSheet(ctx, title, header)
		if err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", title, err)
		}
		return sheet, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet %s: %w", title, err)
	}

	current, err := sheet.Header(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s header: %w", title, err)
	}
	if table.SameHeader(current, header) {
		return sheet, nil
	}

	rows, err := sheet.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", title, err)
	}
	records := table.Records(current, rows)

	if err := sheet.Reset(ctx, header); err != nil {
		return nil, fmt.Errorf("failed to reset %s header: %w", title, err)
	}

	kept := 0
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		if err := sheet.AppendRow(ctx, rec.Row(header)); err != nil {
			return nil, fmt.Errorf("failed to migrate %s row: %w", title, err)
		}
		kept++
	}

	logger.Warn("Sheet header did not match, rewrote header and migrated rows",
		logger.F("sheet", title),
		logger.F("old_header", strings.Join(current, ",")),
		logger.F("dropped_columns", strings.Join(droppedColumns(current, header), ",")),
		logger.F("rows", kept))
	return sheet, nil
}

func droppedColumns(old, header []string) []string {
	want := make(map[string]bool, len(header))
	for _, c := range header {
		want[c] = true
	}
	var out []string
	for _, c := range old {
		if c != "" && !want[c] {
			out = append(out, c)
		}
	}
	return out
}

func isBlank(rec table.Record) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// sheets returns the connected sheets; callers hold g.mu
func (g *Gateway) sheets() (table.Sheet, table.Sheet, error) {
	if g.wb == nil {
		return nil, nil, ErrNotConnected
	}
	return g.projects, g.tasks, nil
}
