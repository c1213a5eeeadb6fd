package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/and161185/mdm-forwarder/internal/buildinfo"
	"github.com/and161185/mdm-forwarder/internal/client"
	"github.com/and161185/mdm-forwarder/internal/config"
	"github.com/and161185/mdm-forwarder/internal/forwarder"
	"github.com/and161185/mdm-forwarder/internal/mdm"
	"github.com/and161185/mdm-forwarder/internal/server"
	"github.com/and161185/mdm-forwarder/storage/inmemory"
	"github.com/and161185/mdm-forwarder/storage/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
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

	config := config.NewForwarderConfig()
	defer func() { _ = config.Logger.Sync() }()

	if err := config.Validate(); err != nil {
		config.Logger.Fatal(err)
	}

	var (
		backend mdm.Backend
		pinger  func(ctx context.Context) error
	)
	switch {
	case config.DatabaseDsn != "":
		pg, err := postgres.NewPostgresBackend(ctx, config.DatabaseDsn, config.BackendLogger)
		if err != nil {
			config.Logger.Fatal(err)
		}
		defer pg.Close()
		backend, pinger = pg, pg.Ping
	case config.MdmAddr != "":
		t := client.NewTransport(config.MdmAddr, "", time.Duration(config.ClientTimeout)*time.Second)
		backend = mdm.NewHTTPBackend(t, config.BackendLogger)
	default:
		backend = mdm.NewLogBackend(config.BackendLogger)
	}

	config.Logger.Infof("Forwarder config: Addr=%s, Account=%s, MdmAddr=%q, DatabaseDSN set=%t, Key set=%t, TrustedSubnet=%q, MaxBodyBytes=%d",
		config.Addr,
		config.Account,
		config.MdmAddr,
		config.DatabaseDsn != "",
		config.Key != "",
		config.TrustedSubnet,
		config.MaxBodyBytes,
	)

	cache := inmemory.NewHandleCache(backend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	stats := forwarder.NewStats(reg, cache.Len)

	srv := server.NewServer(forwarder.New(config.Account, cache, config.Logger, stats), cache, config)
	srv.Gatherer = reg
	srv.Pinger = pinger

	if err := srv.Run(ctx); err != nil {
		config.Logger.Fatal(err)
	}
	config.Logger.Info("forwarder stopped")
}
