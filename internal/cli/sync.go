package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/store"
	"github.com/existflow/cowork/internal/sync"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge remote changes once",
	Long: `Fetch the spreadsheet and merge it into the board. Records with a newer
last_update win; nothing is ever removed by a merge.

Commands:
  cowork sync          # Merge once and report what changed
  cowork sync watch    # Keep merging every poll_seconds until interrupted`,
	RunE: runSync,
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Merge in the background until interrupted",
	RunE:  runSyncWatch,
}

var syncInterval time.Duration

func init() {
	syncWatchCmd.Flags().DurationVar(&syncInterval, "interval", 0, "Override poll_seconds (minimum 2s)")

	syncCmd.AddCommand(syncWatchCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	s, err := openOnline(cmd.Context())
	if err != nil {
		return err
	}
	defer s.close()

	// openOnline already loaded the board, so this reports what changed
	// between the two reads
	ctx, cancel := context.WithTimeout(cmd.Context(), s.cfg.RequestTimeout())
	defer cancel()
	result, err := s.MergeRemote(ctx)
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Loaded %d projects, %d tasks\n", len(s.store.Projects()), len(s.store.Tasks()))
	printMerge(out, time.Now(), result)
	return nil
}

func runSyncWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openOnline(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	interval := s.cfg.PollInterval()
	if cmd.Flags().Changed("interval") {
		interval = syncInterval
	}

	syncer := sync.New(s, interval, s.cfg.RequestTimeout())
	if err := s.watchConfig(ctx, syncer); err != nil {
		logger.Warn("Config changes will not be picked up", logger.F("error", err))
	}
	syncer.Start()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🔄 Merging every %s, Ctrl+C to stop\n", syncer.Interval())
	watchEvents(ctx, out, syncer.Events())

	fmt.Fprintln(out, "Stopping...")
	if !syncer.Stop(stopGrace) {
		return fmt.Errorf("merge still running after %s", stopGrace)
	}
	return nil
}

// watchEvents prints merge results until ctx is done
func watchEvents(ctx context.Context, out io.Writer, events <-chan sync.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev.Err != nil {
				fmt.Fprintf(out, "%s  ⚠️  %v\n", ev.At.Format(time.TimeOnly), ev.Err)
				continue
			}
			if ev.Result.Changed() {
				printMerge(out, ev.At, ev.Result)
			}
		}
	}
}

func printMerge(out io.Writer, at time.Time, r store.MergeResult) {
	if !r.Changed() {
		fmt.Fprintf(out, "%s  ✓ Already up to date\n", at.Format(time.TimeOnly))
		return
	}
	if r.Reloaded {
		fmt.Fprintf(out, "%s  ✓ Reloaded %d projects, %d tasks\n", at.Format(time.TimeOnly), r.ProjectsUpdated, r.TasksUpdated)
		return
	}
	fmt.Fprintf(out, "%s  ✓ Merged %d projects, %d tasks\n", at.Format(time.TimeOnly), r.ProjectsUpdated, r.TasksUpdated)
}
