package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/mdm-forwarder/cmd/agent/collector"
	"github.com/and161185/mdm-forwarder/internal/buildinfo"
	"github.com/and161185/mdm-forwarder/internal/client"
	"github.com/and161185/mdm-forwarder/internal/config"
	"go.uber.org/zap"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildinfo.PrintBuildInfo(buildVersion, buildDate, buildCommit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.NewAgentConfig()
	logger, err := config.NewLogger(cfg.LogLevel, "")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.AgentConfig, logger *zap.SugaredLogger) error {
	logger.Infof("Agent config: ServerAddr=%s, PollInterval=%d, ReportInterval=%d, BatchSize=%d, Host=%q, Key set=%t",
		cfg.ServerAddr, cfg.PollInterval, cfg.ReportInterval, cfg.BatchSize, cfg.Host, cfg.Key != "")

	c := collector.New(cfg.Host)
	clnt := client.NewClient(cfg, c.Collect, logger)

	err := clnt.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("agent stopped")
		return nil
	}
	return err
}
