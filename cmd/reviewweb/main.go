// Command reviewweb serves the review session over HTTP so a question set
// can be assigned from a browser.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"triviareview"
)

var (
	configPath string
	verbose    bool
	addr       string
	outDir     string
	resume     bool
)

var rootCmd = &cobra.Command{
	Use:   "reviewweb [file]",
	Short: "Serve the trivia reviewer in a browser",
	Long: `Loads a questions file (or the last file used, or with --resume the
progress file of the output folder) and serves the reviewer on --addr.
Set SESSION_KEY to keep flash messages valid across restarts.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		logger, err := triviareview.NewLogger(verbose)
		if err != nil {
			return err
		}
		defer logger.Sync()

		cfg, err := triviareview.LoadConfig(configPath, logger)
		if err != nil {
			return err
		}
		rv := triviareview.NewReviewer(cfg, logger)
		if outDir != "" {
			rv.SetOutputFolder(outDir)
		}
		switch {
		case resume:
			_, err = rv.OpenResume()
		case len(args) == 1:
			_, err = rv.Open(args[0])
		case cfg.LastFile() != "":
			_, err = rv.Open(cfg.LastFile())
		default:
			err = errors.New("no file given and no last file in the config")
		}
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		rv.Start(ctx, func() { logger.Info("code labels reloaded") })

		srv, err := NewServer(rv, sessionKey(logger), logger)
		if err != nil {
			return errors.Join(err, rv.Close())
		}
		httpSrv := &http.Server{
			Addr:              addr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("starting server", zap.String("addr", addr), zap.String("file", rv.Path()))
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err = <-errCh:
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = httpSrv.Shutdown(shutdownCtx)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return errors.Join(err, srv.Close())
	},
}

// sessionKey reads SESSION_KEY, or makes a key that lasts until exit.
func sessionKey(logger *zap.Logger) []byte {
	if k := os.Getenv("SESSION_KEY"); k != "" {
		return []byte(k)
	}
	logger.Debug("SESSION_KEY not set, using a random key")
	return securecookie.GenerateRandomKey(32)
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", triviareview.DefaultConfigFile, "Settings file")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().StringVar(&addr, "addr", ":8180", "Listen address")
	rootCmd.Flags().StringVar(&outDir, "out", "", "Output folder for this run (default: the file's folder)")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "Continue from the progress file in the output folder")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
