package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/existflow/cowork/internal/config"
	"github.com/existflow/cowork/internal/gateway"
	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/model"
	"github.com/existflow/cowork/internal/store"
	"github.com/existflow/cowork/internal/sync"
	"github.com/existflow/cowork/internal/table"
	"github.com/existflow/cowork/internal/table/gsheets"
	"github.com/existflow/cowork/internal/table/httptable"
)

// openWorkbook opens the table backend named by cfg.Backend
var openWorkbook gateway.OpenFunc = func(ctx context.Context, cfg *config.Config) (table.Workbook, error) {
	switch cfg.Backend {
	case config.BackendHTTP:
		c, err := httptable.Open(cfg.CredentialsFile, cfg.SheetID, cfg.RequestTimeout())
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendSheets:
		wb, err := gsheets.Open(ctx, cfg.CredentialsFile, cfg.SheetID)
		if err != nil {
			return nil, err
		}
		return wb, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// session ties one gateway to one store for the life of a command
type session struct {
	cfg   *config.Config
	gw    *gateway.Gateway
	store *store.Store

	// reload is set until the board has been loaded from the current
	// workbook. Records of another workbook must never be merged in.
	reload atomic.Bool
}

func newSession(cfg *config.Config) *session {
	clock := model.NewClock(nil)
	gw := gateway.New(cfg, openWorkbook, clock)
	s := &session{cfg: cfg, gw: gw, store: store.New(gw, clock)}
	s.reload.Store(true)
	return s
}

// connect opens the workbook and loads the whole board
func (s *session) connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout())
	defer cancel()

	if err := s.gw.Connect(ctx); err != nil {
		return describeConnectError(err)
	}
	s.reload.Store(false)
	if err := s.store.LoadAll(ctx); err != nil {
		s.reload.Store(true)
		return fmt.Errorf("failed to load board: %w", err)
	}
	return nil
}

// MergeRemote lets the synchronizer drive the session. A gateway that lost
// its connection, or never had one, is connected again first. After a change
// of workbook, or before the first successful load, the board is replaced by
// a full load rather than merged.
func (s *session) MergeRemote(ctx context.Context) (store.MergeResult, error) {
	if !s.gw.Connected() {
		if err := s.gw.Connect(ctx); err != nil {
			return store.MergeResult{}, describeConnectError(err)
		}
	}
	if s.reload.Swap(false) {
		if err := s.store.LoadAll(ctx); err != nil {
			s.reload.Store(true)
			return store.MergeResult{}, fmt.Errorf("failed to load board: %w", err)
		}
		return store.MergeResult{
			ProjectsUpdated: len(s.store.Projects()),
			TasksUpdated:    len(s.store.Tasks()),
			Reloaded:        true,
		}, nil
	}
	return s.store.MergeRemote(ctx)
}

// watchConfig follows the config file: the poll interval changes in place
// and new connection settings reconnect on the next merge
func (s *session) watchConfig(ctx context.Context, syncer *sync.Synchronizer) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	return config.Watch(ctx, path, func(cfg *config.Config) {
		if err := cfg.Validate(); err != nil {
			logger.Warn("Ignoring invalid config", logger.F("error", err))
			return
		}
		syncer.SetInterval(cfg.PollInterval())
		s.reconfigure(cfg, syncer.Trigger)
	})
}

// reconfigure applies new settings; a different workbook means the next
// merge reloads the board from it
func (s *session) reconfigure(cfg *config.Config, changed func()) {
	if !s.gw.Reconfigure(cfg) {
		return
	}
	s.reload.Store(true)
	if changed != nil {
		changed()
	}
}

func (s *session) close() {
	if err := s.gw.Close(); err != nil {
		logger.Warn("Failed to close workbook", logger.F("error", err))
	}
}

// openOnline connects a session for the one-shot commands, which cannot do
// anything without the remote
func openOnline(ctx context.Context) (*session, error) {
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := newSession(appConfig)
	if err := s.connect(ctx); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func describeConnectError(err error) error {
	switch {
	case errors.Is(err, gateway.ErrMissingCredentials):
		return fmt.Errorf("%w (set it with: cowork config set credentials_file <path>)", err)
	case errors.Is(err, gateway.ErrMissingResource):
		return fmt.Errorf("%w (set it with: cowork config set sheet_id <id>)", err)
	}
	return err
}

// resolveProject finds a project by ID, unique ID prefix, or name
func resolveProject(st *store.Store, ref string) (model.Project, error) {
	ref = strings.TrimSpace(ref)
	if p, ok := st.Project(ref); ok {
		return p, nil
	}

	var matches []model.Project
	for _, p := range st.Projects() {
		if strings.HasPrefix(p.ID, ref) || strings.EqualFold(p.Name, ref) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return model.Project{}, fmt.Errorf("%w: %s", store.ErrProjectNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return model.Project{}, fmt.Errorf("project %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// resolveTask finds a task by ID or unique ID prefix
func resolveTask(st *store.Store, ref string) (model.Task, error) {
	ref = strings.TrimSpace(ref)
	if t, ok := st.Task(ref); ok {
		return t, nil
	}

	var matches []model.Task
	if ref != "" {
		for _, t := range st.Tasks() {
			if strings.HasPrefix(t.ID, ref) {
				matches = append(matches, t)
			}
		}
	}
	switch len(matches) {
	case 0:
		return model.Task{}, fmt.Errorf("%w: %s", store.ErrTaskNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return model.Task{}, fmt.Errorf("task %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// shortID is what the listings print; any unique prefix resolves
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
