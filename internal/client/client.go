// Package client provides the agent that ships performance records to the
// forwarder, and the HTTP transport shared with the MDM sink.
package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/and161185/mdm-forwarder/internal/config"
	"github.com/and161185/mdm-forwarder/model"
	"go.uber.org/zap"
)

// RecordsPath is the forwarder ingest endpoint.
const RecordsPath = "/records"

// CollectFunc produces one performance record per call.
type CollectFunc func(ctx context.Context) (model.PerfRecord, error)

// Client polls a collector and reports the gathered records in batches.
type Client struct {
	transport *Transport
	config    *config.AgentConfig
	collect   CollectFunc
	logger    *zap.SugaredLogger

	mu      sync.Mutex
	pending []model.PerfRecord
}

// NewClient creates a new client instance with the given collector and configuration.
func NewClient(cfg *config.AgentConfig, collect CollectFunc, logger *zap.SugaredLogger) *Client {
	t := NewTransport(cfg.ServerAddr, cfg.Key, time.Duration(cfg.ClientTimeout)*time.Second)
	return &Client{transport: t, config: cfg, collect: collect, logger: logger}
}

// Run collects and reports until ctx is done, then makes one last attempt
// to deliver what is still pending.
func (clnt *Client) Run(ctx context.Context) error {
	poll := time.NewTicker(seconds(clnt.config.PollInterval))
	defer poll.Stop()
	report := time.NewTicker(seconds(clnt.config.ReportInterval))
	defer report.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), seconds(clnt.config.ClientTimeout))
			if err := clnt.flush(flushCtx); err != nil {
				clnt.logger.Errorf("final flush failed: %v", err)
			}
			cancel()
			return context.Canceled
		case <-poll.C:
			clnt.poll(ctx)
		case <-report.C:
			if err := clnt.flush(ctx); err != nil {
				clnt.logger.Errorf("report failed: %v", err)
			}
		}
	}
}

func (clnt *Client) poll(ctx context.Context) {
	rec, err := clnt.collect(ctx)
	if err != nil {
		clnt.logger.Errorf("collect failed: %v", err)
		return
	}
	if len(rec.DataItems) == 0 {
		return
	}

	clnt.mu.Lock()
	defer clnt.mu.Unlock()
	clnt.pending = append(clnt.pending, rec)
	clnt.trim()
}

// trim drops the oldest records beyond BatchSize. Callers hold mu.
func (clnt *Client) trim() {
	if over := len(clnt.pending) - clnt.config.BatchSize; clnt.config.BatchSize > 0 && over > 0 {
		clnt.logger.Warnf("dropping %d oldest records, forwarder unreachable", over)
		clnt.pending = clnt.pending[over:]
	}
}

// flush sends everything pending as one batch. When the forwarder fails
// the verdict the batch is put back in front so it is retried whole.
func (clnt *Client) flush(ctx context.Context) error {
	clnt.mu.Lock()
	batch := clnt.pending
	clnt.pending = nil
	clnt.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	code, body, err := clnt.transport.PostGzipJSON(ctx, RecordsPath, batch)
	if err != nil {
		clnt.requeue(batch)
		return err
	}

	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusBadRequest:
		return fmt.Errorf("batch of %d records rejected: %s", len(batch), body)
	case code >= http.StatusInternalServerError:
		clnt.requeue(batch)
		return fmt.Errorf("batch failed, will retry: status %d: %s", code, body)
	}
	clnt.requeue(batch)
	return fmt.Errorf("unexpected status: %d", code)
}

func (clnt *Client) requeue(batch []model.PerfRecord) {
	clnt.mu.Lock()
	defer clnt.mu.Unlock()
	clnt.pending = append(batch, clnt.pending...)
	clnt.trim()
}

// Pending returns the number of records not yet delivered.
func (clnt *Client) Pending() int {
	clnt.mu.Lock()
	defer clnt.mu.Unlock()
	return len(clnt.pending)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		n = 1
	}
	return time.Duration(n) * time.Second
}
