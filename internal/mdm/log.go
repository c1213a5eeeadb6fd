package mdm

import (
	"context"

	"github.com/and161185/mdm-forwarder/model"
	"go.uber.org/zap"
)

// LogBackend writes points to a logger instead of a real sink.
type LogBackend struct {
	logger *zap.SugaredLogger
}

func NewLogBackend(logger *zap.SugaredLogger) *LogBackend {
	return &LogBackend{logger: logger}
}

func (b *LogBackend) NewMetric(_ context.Context, account string, id model.MetricIdentity) (Handle, error) {
	b.logger.Debugf("new metric account=%s namespace=%s metric=%s d1=%s d2=%s",
		account, id.Namespace, id.Metric, id.Dim1Name, id.Dim2Name)
	return &logHandle{logger: b.logger, account: account, id: id}, nil
}

type logHandle struct {
	logger  *zap.SugaredLogger
	account string
	id      model.MetricIdentity
}

func (h *logHandle) LogValueAtTime(_ context.Context, ticks, value int64, dim1Value, dim2Value string) error {
	h.logger.Infow("point",
		"account", h.account,
		"namespace", h.id.Namespace,
		"metric", h.id.Metric,
		h.id.Dim1Name, dim1Value,
		h.id.Dim2Name, dim2Value,
		"value", value,
		"ticks", ticks,
	)
	return nil
}
