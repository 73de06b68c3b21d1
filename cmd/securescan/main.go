package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raysh454/securescan/internal/cli"
	"github.com/raysh454/securescan/internal/config"
	"github.com/raysh454/securescan/internal/logging"
	"github.com/raysh454/securescan/internal/server"
)

func main() {
	logger := logging.NewStdoutLogger("securescan")

	args, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		logger.Error("parsing arguments", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		logger.Error("loading configuration", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	if args.Listen != "" {
		cfg.Listen = args.Listen
	}
	if args.DBPath != "" {
		cfg.DBPath = args.DBPath
	}
	if args.Backend != "" {
		cfg.Analyzer.Backend = args.Backend
	}

	srvCfg := cfg.ServerConfig()
	srvCfg.Logger = logger

	srv, err := server.NewServer(srvCfg)
	if err != nil {
		logger.Error("creating server", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	defer srv.Close()

	httpSrv := srv.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.Field{Key: "addr", Value: cfg.Listen})
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutting down", logging.Field{Key: "signal", Value: sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Warn("graceful shutdown", logging.Field{Key: "error", Value: err.Error()})
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", logging.Field{Key: "error", Value: err.Error()})
			os.Exit(1)
		}
	}
}
