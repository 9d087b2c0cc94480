package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"dpiproxy/internal/blacklist"
	"dpiproxy/internal/config"
	"dpiproxy/internal/logging"
	"dpiproxy/internal/metrics"
	"dpiproxy/internal/proxy"
	"dpiproxy/internal/registry"
	"dpiproxy/internal/stats"
	"dpiproxy/internal/ui"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		ui.LogStatus("error", err.Error())
		os.Exit(1)
	}

	if !cfg.Quiet {
		ui.PrintBanner()
	}

	bl, err := blacklist.Load(cfg.BlacklistFile)
	if err != nil {
		ui.LogStatus("error", err.Error())
		os.Exit(1)
	}
	ui.LogStatus("info", fmt.Sprintf("loaded %d blacklist patterns", bl.Len()))

	logs, err := logging.New(cfg.AccessLogFile, cfg.ErrorLogFile)
	if err != nil {
		ui.LogStatus("error", err.Error())
		os.Exit(1)
	}

	reg := registry.New()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metricsSrv := metrics.NewServer(cfg.MetricsListen)
	metricsSrv.Start()
	go func() {
		<-ctx.Done()
		metricsSrv.Shutdown(context.Background())
	}()

	reporter := stats.New(reg, cfg.Quiet)
	statsDone := make(chan struct{})
	go reporter.Start(statsDone)
	go func() {
		<-ctx.Done()
		close(statsDone)
	}()

	srv := proxy.NewServer(cfg, bl, reg, logs)
	if err := srv.Start(ctx); err != nil {
		ui.LogStatus("error", "server failed: "+err.Error())
		os.Exit(1)
	}
}
