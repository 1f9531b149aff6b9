package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestLoadFrom_MissingFileGivesDefaults(t *testing.T) {
	is := is.New(t)

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	is.NoErr(err)
	is.Equal(cfg.PollInterval(), DefaultPollSeconds*time.Second)
	is.True(len(cfg.Users) > 0)
}

func TestSaveTo_LoadFrom(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "cowork", "config.yaml")

	cfg := DefaultConfig()
	cfg.Backend = BackendHTTP
	cfg.SheetID = "team-board"
	cfg.CredentialsFile = "/etc/cowork/creds.json"
	cfg.CurrentUser = "Moe"
	cfg.PollSeconds = 12
	is.NoErr(cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	is.NoErr(err)
	is.Equal(loaded.Backend, BackendHTTP)
	is.Equal(loaded.SheetID, "team-board")
	is.Equal(loaded.CurrentUser, "Moe")
	is.Equal(loaded.PollInterval(), 12*time.Second)
	is.True(loaded.SameConnection(cfg))
}

func TestLoadFrom_Invalid(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	is.NoErr(os.WriteFile(path, []byte("poll_seconds: [nope"), 0644))

	_, err := LoadFrom(path)
	is.True(err != nil)
}

func TestPollInterval_Floor(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{0, DefaultPollSeconds * time.Second},
		{-3, DefaultPollSeconds * time.Second},
		{1, MinPollSeconds * time.Second},
		{60, time.Minute},
	}
	for _, tt := range tests {
		is := is.New(t)
		cfg := &Config{PollSeconds: tt.seconds}
		is.Equal(cfg.PollInterval(), tt.want)
	}
}

func TestValidate(t *testing.T) {
	is := is.New(t)

	cfg := DefaultConfig()
	cfg.Backend = BackendSheets
	is.NoErr(cfg.Validate())

	cfg.Backend = "carrier-pigeon"
	is.True(cfg.Validate() != nil)
}

func TestSet(t *testing.T) {
	is := is.New(t)
	cfg := DefaultConfig()

	is.NoErr(cfg.Set("poll_seconds", "9"))
	is.Equal(cfg.PollSeconds, 9)
	is.NoErr(cfg.Set("log_console", "true"))
	is.True(cfg.LogConsole)
	is.NoErr(cfg.Set("sheet_id", "abc"))
	is.Equal(cfg.SheetID, "abc")

	is.True(cfg.Set("poll_seconds", "soon") != nil)
	is.True(cfg.Set("colour", "red") != nil)
}

func TestProjectColor(t *testing.T) {
	is := is.New(t)
	cfg := &Config{DefaultColor: "#101010"}
	is.Equal(cfg.ProjectColor(""), "#101010")
	is.Equal(cfg.ProjectColor("#ff0000"), "#ff0000")
}

func TestWatch_DeliversReloadedConfig(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.PollSeconds = 5
	is.NoErr(cfg.SaveTo(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	is.NoErr(Watch(ctx, path, func(c *Config) { changes <- c }))

	cfg.PollSeconds = 30
	is.NoErr(cfg.SaveTo(path))

	select {
	case got := <-changes:
		is.Equal(got.PollSeconds, 30)
	case <-time.After(5 * time.Second):
		t.Fatal("no config change delivered")
	}
}
