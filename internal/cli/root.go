package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/existflow/cowork/internal/config"
	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/sync"
	"github.com/existflow/cowork/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// stopGrace bounds how long exiting waits for an in-flight merge
const stopGrace = 5 * time.Second

var (
	logLevel   string
	logFile    string
	logConsole bool

	// appConfig is loaded once per invocation in PersistentPreRunE
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cowork",
	Short: "Cowork - shared project board on a spreadsheet",
	Long: `Cowork keeps a team's projects and tasks in a shared spreadsheet and
shows them as a board that refreshes in the background.

Run 'cowork' without arguments to open the board.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  %v, using defaults\n", err)
			cfg = config.DefaultConfig()
		}

		// Flags only apply to this run
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
		}

		logConfig := logger.DefaultConfig()
		logConfig.Level = logger.ParseLevel(cfg.LogLevel)
		logConfig.FilePath = cfg.LogFile
		logConfig.Console = cfg.LogConsole

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		appConfig = cfg
		logger.Info("Cowork started", logger.F("command", cmd.CommandPath()))
		return nil
	},
	RunE: runBoard,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("Cowork exiting", logger.F("command", cmd.CommandPath()))
		logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(configCmd)
}

// runBoard opens the interactive board. A failed connect still shows the
// board, marked offline; the synchronizer keeps retrying in the background.
func runBoard(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("the board needs a terminal, try 'cowork task list'")
	}
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s := newSession(appConfig)
	defer s.close()

	online := true
	if err := s.connect(ctx); err != nil {
		online = false
		logger.Warn("Starting board offline", logger.F("error", err))
	}

	syncer := sync.New(s, appConfig.PollInterval(), appConfig.RequestTimeout())
	syncer.Start()
	defer func() {
		if !syncer.Stop(stopGrace) {
			logger.Warn("Merge still running at exit", logger.F("grace", stopGrace.String()))
		}
	}()

	if err := s.watchConfig(ctx, syncer); err != nil {
		logger.Warn("Config changes will not be picked up", logger.F("error", err))
	}

	logger.Info("Launching board", logger.F("online", online))
	return tui.Run(tui.Options{
		Board:       s.store,
		Syncer:      syncer,
		CurrentUser: appConfig.CurrentUser,
		Online:      online,
	})
}
