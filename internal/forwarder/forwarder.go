// Package forwarder turns batches of raw records into MDM points.
package forwarder

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/mdm-forwarder/internal/errs"
	"github.com/and161185/mdm-forwarder/internal/record"
	"github.com/and161185/mdm-forwarder/model"
	"github.com/and161185/mdm-forwarder/storage/inmemory"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Verdict summarizes one batch. OK is false as soon as any record or sample
// failed; the supplier is expected to retry the whole batch then.
type Verdict struct {
	BatchID  string `json:"batch_id"`
	OK       bool   `json:"ok"`
	Records  int    `json:"records"`
	Rejected int    `json:"rejected"`
	Samples  int    `json:"samples"`
	Emitted  int    `json:"emitted"`
	Failed   int    `json:"failed"`
	Err      error  `json:"-"`
}

func (v *Verdict) fail(err error) {
	v.OK = false
	v.Err = multierr.Append(v.Err, err)
}

// Processor emits every counter sample of a batch through the handle cache.
// It is safe for concurrent use; the cache is the only shared state.
type Processor struct {
	account string
	cache   *inmemory.HandleCache
	logger  *zap.SugaredLogger
	stats   *Stats
}

// New creates a Processor emitting under account. stats may be nil.
func New(account string, cache *inmemory.HandleCache, logger *zap.SugaredLogger, stats *Stats) *Processor {
	return &Processor{
		account: account,
		cache:   cache,
		logger:  logger,
		stats:   stats,
	}
}

// Process handles the records of batch in order. Every record and sample is
// attempted regardless of earlier failures. Panics are recovered here and
// reported as ErrUnexpectedFault.
func (p *Processor) Process(ctx context.Context, batch []model.RawRecord) (v Verdict) {
	v = Verdict{BatchID: uuid.NewString(), OK: true}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("batch %s: unexpected fault: %v", v.BatchID, r)
			v.fail(fmt.Errorf("%w: %v", errs.ErrUnexpectedFault, r))
		}
		p.stats.observe(v)

		if v.OK {
			p.logger.Debugf("batch %s: records=%d emitted=%d", v.BatchID, v.Records, v.Emitted)
		} else {
			p.logger.Warnf("batch %s failed: records=%d rejected=%d samples=%d emitted=%d failed=%d",
				v.BatchID, v.Records, v.Rejected, v.Samples, v.Emitted, v.Failed)
		}
	}()

	for i, raw := range batch {
		if err := ctx.Err(); err != nil {
			p.logger.Errorf("batch %s: stopped at record %d: %v", v.BatchID, i, err)
			v.fail(err)
			return v
		}

		v.Records++
		perf, err := record.Classify(raw)
		if err != nil {
			p.logger.Errorf("batch %s: record %d: %v, ignoring data", v.BatchID, i, err)
			v.Rejected++
			v.fail(fmt.Errorf("record %d: %w", i, err))
			continue
		}

		if !p.processRecord(ctx, &v, i, perf) {
			return v
		}
	}
	return v
}

// processRecord emits the samples of one record. It returns false when ctx
// was cancelled before all of them were attempted.
func (p *Processor) processRecord(ctx context.Context, v *Verdict, idx int, perf record.Perf) bool {
	for s, err := range record.Decode(perf) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			p.logger.Errorf("batch %s: stopped in record %d: %v", v.BatchID, idx, ctxErr)
			v.fail(ctxErr)
			return false
		}
		if err != nil {
			p.logger.Errorf("batch %s: record %d: %v", v.BatchID, idx, err)
			v.Failed++
			v.fail(fmt.Errorf("record %d: %w", idx, err))
			continue
		}

		v.Samples++
		if err := p.emit(ctx, s); err != nil {
			v.Failed++
			v.fail(fmt.Errorf("record %d: %w", idx, err))
			continue
		}
		v.Emitted++
	}
	return true
}

func (p *Processor) emit(ctx context.Context, s model.Sample) error {
	id := s.Identity()
	trace := fmt.Sprintf("namespace=%s, metric=%s, d1=%s, d1val=%s; d2=%s, d2val=%s, value=%d",
		id.Namespace, id.Metric, id.Dim1Name, s.Host, id.Dim2Name, s.Instance, s.Value)
	p.logger.Debugf("sending to mdm: %s", trace)

	h, err := p.cache.Resolve(ctx, p.account, id)
	if err != nil {
		p.logger.Errorf("sending to mdm failed: %s: %v", trace, err)
		return fmt.Errorf("%w: %w", errs.ErrEmissionFailure, err)
	}

	if err := h.LogValueAtTime(ctx, s.Ticks, s.Value, s.Host, s.Instance); err != nil {
		p.logger.Errorf("sending to mdm failed: %s: %v", trace, err)
		if !errors.Is(err, errs.ErrEmissionFailure) {
			err = fmt.Errorf("%w: %w", errs.ErrEmissionFailure, err)
		}
		return err
	}
	return nil
}
