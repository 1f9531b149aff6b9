package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/table/httptable"
	"github.com/existflow/cowork/internal/table/sqltable"
	"github.com/existflow/cowork/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	driver    string
	dsn       string
	addr      string
	serverURL string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:          "cowork-tables",
	Short:        "Table server for cowork boards",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logConfig := logger.DefaultConfig()
		logConfig.Level = logger.ParseLevel(logLevel)
		logConfig.FilePath = ""
		logConfig.Console = true
		return logger.Init(logConfig)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve workbooks over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var tokenCmd = &cobra.Command{
	Use:   "token [name]",
	Short: "Issue a token and print a credentials file for it",
	Long: `Issue an API token. The printed JSON is a complete credentials file:
save it and point credentials_file at it with backend set to http.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokenCreate,
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued tokens",
	Args:  cobra.NoArgs,
	RunE:  runTokenList,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke [id]",
	Short: "Revoke a token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenRevoke,
}

func init() {
	defaultDSN := os.Getenv("DATABASE_URL")
	defaultDriver := sqltable.DriverPostgres
	if defaultDSN == "" {
		defaultDSN, _ = sqltable.DefaultPath()
		defaultDriver = sqltable.DriverSQLite
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	rootCmd.PersistentFlags().StringVar(&driver, "driver", defaultDriver, "Database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", defaultDSN, "Database file or connection URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	serveCmd.Flags().StringVar(&addr, "addr", ":"+port, "Listen address")
	tokenCmd.Flags().StringVar(&serverURL, "server-url", "http://localhost:"+port, "URL clients use to reach this server")

	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openServer() (*server.Server, error) {
	db, err := sqltable.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	srv, err := server.New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return srv, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := openServer()
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("Error closing database", logger.F("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	srv, err := openServer()
	if err != nil {
		return err
	}
	defer srv.Close()

	token, err := srv.CreateToken(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(httptable.Credentials{
		ServerURL: strings.TrimRight(serverURL, "/"),
		Token:     token,
	})
}

func runTokenList(cmd *cobra.Command, args []string) error {
	srv, err := openServer()
	if err != nil {
		return err
	}
	defer srv.Close()

	tokens, err := srv.ListTokens(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(tokens) == 0 {
		fmt.Fprintln(out, "No tokens issued.")
		return nil
	}
	fmt.Fprintf(out, "  %-36s  %-20s  %s\n", "ID", "Name", "Created")
	fmt.Fprintln(out, strings.Repeat("─", 86))
	for _, t := range tokens {
		fmt.Fprintf(out, "  %-36s  %-20s  %s\n", t.ID, t.Name, t.CreatedAt)
	}
	return nil
}

func runTokenRevoke(cmd *cobra.Command, args []string) error {
	srv, err := openServer()
	if err != nil {
		return err
	}
	defer srv.Close()

	if err := srv.RevokeToken(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Revoked token %s\n", args[0])
	return nil
}
