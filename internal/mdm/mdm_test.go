package mdm

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/and161185/mdm-forwarder/internal/client"
	"github.com/and161185/mdm-forwarder/internal/errs"
	"github.com/and161185/mdm-forwarder/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var usedMemory = model.MetricIdentity{
	Namespace: "Memory",
	Metric:    "Used MBytes",
	Dim1Name:  model.RegionDim,
	Dim2Name:  model.InstanceDim,
}

func TestHTTPBackend_PostsPoint(t *testing.T) {
	got := make(chan Point, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PointsPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gr, err := gzip.NewReader(r.Body)
		if err != nil {
			t.Errorf("gzip: %v", err)
			return
		}
		var p Point
		if err := json.NewDecoder(gr).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		got <- p
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	b := NewHTTPBackend(client.NewTransport(ts.URL, "", time.Second), zap.NewNop().Sugar())
	h, err := b.NewMetric(context.Background(), "acc", usedMemory)
	require.NoError(t, err)

	require.NoError(t, h.LogValueAtTime(context.Background(), 131116247046770000, 300, "web-1", "_Total"))
	require.Equal(t, Point{
		Account:    "acc",
		Namespace:  "Memory",
		Metric:     "Used MBytes",
		Dimensions: map[string]string{"Region": "web-1", "InstanceName": "_Total"},
		Value:      300,
		Ticks:      131116247046770000,
	}, <-got)
}

func TestHTTPBackend_RejectedPoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	b := NewHTTPBackend(client.NewTransport(ts.URL, "", time.Second), zap.NewNop().Sugar())
	h, err := b.NewMetric(context.Background(), "acc", usedMemory)
	require.NoError(t, err)

	err = h.LogValueAtTime(context.Background(), 1, 1, "web-1", "_Total")
	require.ErrorIs(t, err, errs.ErrEmissionFailure)
	require.ErrorContains(t, err, "500")
}

func TestLogBackend(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	b := NewLogBackend(zap.New(core).Sugar())

	h, err := b.NewMetric(context.Background(), "acc", usedMemory)
	require.NoError(t, err)
	require.NoError(t, h.LogValueAtTime(context.Background(), 42, 300, "web-1", "_Total"))

	points := logs.FilterMessage("point").All()
	require.Len(t, points, 1)
	fields := points[0].ContextMap()
	require.Equal(t, "Used MBytes", fields["metric"])
	require.Equal(t, "web-1", fields["Region"])
	require.Equal(t, "_Total", fields["InstanceName"])
	require.EqualValues(t, 300, fields["value"])
}
