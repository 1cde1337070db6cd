package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	orderfeed "github.com/goliatone/go-orderfeed"
	"github.com/goliatone/go-orderfeed/core"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "orderfeed",
		Short:         "Marketplace order event ingestion service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", envOr("ORDERFEED_LOG_LEVEL", "info"), "trace, debug, info, warn or error")
	root.PersistentFlags().String("log-format", envOr("ORDERFEED_LOG_FORMAT", "json"), "json, console or pretty")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook and control routes and run the event processor",
		RunE:  runServe,
	}
	serve.Flags().String("addr", "", "listen address, overrides http.addr")
	serve.Flags().Bool("poll", false, "start polling on boot, overrides polling.start_on_boot")
	root.AddCommand(serve)

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Marketplace.ClientSecret = mask(cfg.Marketplace.ClientSecret)
			cfg.Webhook.Secret = mask(cfg.Webhook.Secret)
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(cfg)
		},
	})
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); strings.TrimSpace(addr) != "" {
		cfg.HTTP.Addr = strings.TrimSpace(addr)
	}
	if poll, _ := cmd.Flags().GetBool("poll"); poll {
		cfg.Polling.StartOnBoot = true
	}

	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	logger := newProcessLogger(level, format, cmd.OutOrStdout())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := orderfeed.Setup(ctx, cfg, orderfeed.WithLoggerProvider(logger))
	if err != nil {
		return err
	}
	if err := rt.Start(ctx); err != nil {
		_ = rt.Close(context.Background())
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("orderfeed: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("orderfeed: shutdown signal received")
	case err = <-serveErr:
		if err != nil {
			logger.Error("orderfeed: http server failed", "error", err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("orderfeed: http shutdown", "error", shutdownErr.Error())
	}
	if closeErr := rt.Close(shutdownCtx); closeErr != nil {
		logger.Warn("orderfeed: runtime close", "error", closeErr.Error())
	}
	return err
}

// loadConfig layers defaults, the YAML file and ORDERFEED_* environment
// variables, later sources winning. Without --config the file named by
// ORDERFEED_CONFIG, or orderfeed.yaml, is read when present.
func loadConfig(cmd *cobra.Command) (core.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	file := core.FileLoader{Path: strings.TrimSpace(path)}
	if file.Path == "" {
		file = core.FileLoader{Path: envOr("ORDERFEED_CONFIG", "orderfeed.yaml"), Optional: true}
	}
	loader := core.ChainLoader{file, core.EnvLoader{}}
	return core.LoadConfig(cmd.Context(), core.NewCfgxConfigProvider(loader), core.GoOptionsResolver{}, core.Config{})
}

// newProcessLogger builds the root logger. Components get named children
// through GetLogger.
func newProcessLogger(level string, format string, out io.Writer) *glog.BaseLogger {
	opts := []glog.Option{
		glog.WithLevel(strings.TrimSpace(level)),
		glog.WithName("orderfeed"),
		glog.WithWriter(out),
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		opts = append(opts, glog.WithLoggerTypeConsole())
	case "pretty":
		opts = append(opts, glog.WithLoggerTypePretty())
	default:
		opts = append(opts, glog.WithLoggerTypeJSON())
	}
	return glog.NewLogger(opts...)
}

func envOr(key string, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
