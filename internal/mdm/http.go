package mdm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/and161185/mdm-forwarder/internal/client"
	"github.com/and161185/mdm-forwarder/internal/errs"
	"github.com/and161185/mdm-forwarder/model"
	"go.uber.org/zap"
)

// PointsPath is the MDM agent endpoint points are posted to.
const PointsPath = "/points"

// Point is the JSON body of one submitted point.
type Point struct {
	Account    string            `json:"account"`
	Namespace  string            `json:"namespace"`
	Metric     string            `json:"metric"`
	Dimensions map[string]string `json:"dimensions"`
	Value      int64             `json:"value"`
	Ticks      int64             `json:"ticks"`
}

// HTTPBackend posts points to an MDM agent over HTTP.
type HTTPBackend struct {
	transport *client.Transport
	logger    *zap.SugaredLogger
}

func NewHTTPBackend(t *client.Transport, logger *zap.SugaredLogger) *HTTPBackend {
	return &HTTPBackend{transport: t, logger: logger}
}

// NewMetric binds a handle locally; nothing is sent until the first point.
func (b *HTTPBackend) NewMetric(_ context.Context, account string, id model.MetricIdentity) (Handle, error) {
	return &httpHandle{backend: b, account: account, id: id}, nil
}

type httpHandle struct {
	backend *HTTPBackend
	account string
	id      model.MetricIdentity
}

func (h *httpHandle) LogValueAtTime(ctx context.Context, ticks, value int64, dim1Value, dim2Value string) error {
	p := Point{
		Account:   h.account,
		Namespace: h.id.Namespace,
		Metric:    h.id.Metric,
		Dimensions: map[string]string{
			h.id.Dim1Name: dim1Value,
			h.id.Dim2Name: dim2Value,
		},
		Value: value,
		Ticks: ticks,
	}

	code, _, err := h.backend.transport.PostGzipJSON(ctx, PointsPath, p)
	if err != nil {
		h.backend.logger.Debugf("post point failed: %v", err)
		return fmt.Errorf("%w: %v", errs.ErrEmissionFailure, err)
	}
	if code != http.StatusOK && code != http.StatusAccepted {
		return fmt.Errorf("%w: unexpected status %d", errs.ErrEmissionFailure, code)
	}
	return nil
}
