// Package postgres stores MDM points in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/mdm-forwarder/internal/errs"
	"github.com/and161185/mdm-forwarder/internal/mdm"
	"github.com/and161185/mdm-forwarder/internal/utils"
	"github.com/and161185/mdm-forwarder/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS mdm_metrics (
		id        BIGSERIAL PRIMARY KEY,
		account   TEXT NOT NULL,
		namespace TEXT NOT NULL,
		metric    TEXT NOT NULL,
		dim1_name TEXT NOT NULL,
		dim2_name TEXT NOT NULL,
		UNIQUE (account, namespace, metric, dim1_name, dim2_name)
	)`,
	`CREATE TABLE IF NOT EXISTS mdm_points (
		metric_id  BIGINT NOT NULL REFERENCES mdm_metrics (id),
		ticks      BIGINT NOT NULL,
		value      BIGINT NOT NULL,
		dim1_value TEXT NOT NULL,
		dim2_value TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS mdm_points_metric_ticks ON mdm_points (metric_id, ticks)`,
}

const upsertMetric = `
	INSERT INTO mdm_metrics (account, namespace, metric, dim1_name, dim2_name)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (account, namespace, metric, dim1_name, dim2_name)
	DO UPDATE SET account = EXCLUDED.account
	RETURNING id`

const insertPoint = `
	INSERT INTO mdm_points (metric_id, ticks, value, dim1_value, dim2_value)
	VALUES ($1, $2, $3, $4, $5)`

// PostgresBackend is an mdm.Backend whose handles are rows of mdm_metrics.
type PostgresBackend struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewPostgresBackend connects to dsn and creates the tables if needed.
func NewPostgresBackend(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*PostgresBackend, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	b := &PostgresBackend{db: db, logger: logger}
	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

func (b *PostgresBackend) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		err := utils.WithRetry(ctx, func() error {
			_, err := b.db.Exec(ctx, stmt)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// NewMetric registers id for account and returns a handle bound to its row.
func (b *PostgresBackend) NewMetric(ctx context.Context, account string, id model.MetricIdentity) (mdm.Handle, error) {
	var metricID int64
	err := utils.WithRetry(ctx, func() error {
		return b.db.QueryRow(ctx, upsertMetric,
			account, id.Namespace, id.Metric, id.Dim1Name, id.Dim2Name,
		).Scan(&metricID)
	})
	if err != nil {
		return nil, fmt.Errorf("register metric: %w", err)
	}

	b.logger.Debugf("registered metric id=%d namespace=%s metric=%s", metricID, id.Namespace, id.Metric)
	return &pgHandle{backend: b, metricID: metricID}, nil
}

func (b *PostgresBackend) Ping(ctx context.Context) error {
	return b.db.Ping(ctx)
}

func (b *PostgresBackend) Close() {
	b.db.Close()
}

type pgHandle struct {
	backend  *PostgresBackend
	metricID int64
}

func (h *pgHandle) LogValueAtTime(ctx context.Context, ticks, value int64, dim1Value, dim2Value string) error {
	err := utils.WithRetry(ctx, func() error {
		_, err := h.backend.db.Exec(ctx, insertPoint, h.metricID, ticks, value, dim1Value, dim2Value)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: insert point: %v", errs.ErrEmissionFailure, err)
	}
	return nil
}
