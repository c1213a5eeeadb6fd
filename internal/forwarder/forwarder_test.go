package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/and161185/mdm-forwarder/internal/errs"
	"github.com/and161185/mdm-forwarder/internal/mdm"
	"github.com/and161185/mdm-forwarder/internal/mdm/mocks"
	"github.com/and161185/mdm-forwarder/model"
	"github.com/and161185/mdm-forwarder/storage/inmemory"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sampleTicks = 131116247046770000

func parseBatch(t *testing.T, s string) []model.RawRecord {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var batch []model.RawRecord
	require.NoError(t, dec.Decode(&batch))
	return batch
}

func memoryID(counter string) model.MetricIdentity {
	return model.MetricIdentity{Namespace: "Memory", Metric: counter, Dim1Name: "Region", Dim2Name: "InstanceName"}
}

func newProcessor(backend mdm.Backend) (*Processor, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return New("acc", inmemory.NewHandleCache(backend), zap.New(core).Sugar(), nil), logs
}

const goodRecord = `{"DataType":"LINUX_PERF_BLOB","DataItems":[
	{"Timestamp":"2016-06-28T21:58:24.677Z","Host":"web-1","ObjectName":"Memory","InstanceName":"_Total",
	 "Collections":[{"CounterName":"Used MBytes","Value":"300"},{"CounterName":"Free MBytes","Value":700}]}]}`

func TestProcess_AllEmitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := mocks.NewMockBackend(ctrl)
	used := mocks.NewMockHandle(ctrl)
	free := mocks.NewMockHandle(ctrl)

	backend.EXPECT().NewMetric(gomock.Any(), "acc", memoryID("Used MBytes")).Return(used, nil).Times(1)
	backend.EXPECT().NewMetric(gomock.Any(), "acc", memoryID("Free MBytes")).Return(free, nil).Times(1)
	used.EXPECT().LogValueAtTime(gomock.Any(), int64(sampleTicks), int64(300), "web-1", "_Total").Return(nil).Times(2)
	free.EXPECT().LogValueAtTime(gomock.Any(), int64(sampleTicks), int64(700), "web-1", "_Total").Return(nil).Times(2)

	p, _ := newProcessor(backend)
	v := p.Process(context.Background(), parseBatch(t, "["+goodRecord+","+goodRecord+"]"))

	require.True(t, v.OK)
	require.NoError(t, v.Err)
	require.NotEmpty(t, v.BatchID)
	require.Equal(t, 2, v.Records)
	require.Equal(t, 4, v.Samples)
	require.Equal(t, 4, v.Emitted)
	require.Equal(t, 0, v.Failed)
}

func TestProcess_UnrecognizedRecordFailsBatchButOthersEmitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := mocks.NewMockBackend(ctrl)
	handle := mocks.NewMockHandle(ctrl)
	backend.EXPECT().NewMetric(gomock.Any(), "acc", gomock.Any()).Return(handle, nil).Times(2)
	handle.EXPECT().LogValueAtTime(gomock.Any(), gomock.Any(), gomock.Any(), "web-1", "_Total").Return(nil).Times(2)

	p, logs := newProcessor(backend)
	batch := parseBatch(t, `[{"DataType":"HEALTH_BLOB","DataItems":[]},`+goodRecord+`,{"DataType":"LINUX_PERF_BLOB"}]`)
	v := p.Process(context.Background(), batch)

	require.False(t, v.OK)
	require.Equal(t, 3, v.Records)
	require.Equal(t, 2, v.Rejected)
	require.Equal(t, 2, v.Emitted)
	require.ErrorIs(t, v.Err, errs.ErrUnrecognizedRecord)
	require.Len(t, multierr.Errors(v.Err), 2)
	require.Equal(t, 2, logs.FilterMessageSnippet("ignoring data").FilterLevelExact(zap.ErrorLevel).Len())
}

func TestProcess_MalformedTimestampDoesNotStopSiblings(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := mocks.NewMockBackend(ctrl)
	handle := mocks.NewMockHandle(ctrl)
	backend.EXPECT().NewMetric(gomock.Any(), "acc", memoryID("Used MBytes")).Return(handle, nil)
	handle.EXPECT().LogValueAtTime(gomock.Any(), int64(sampleTicks), int64(5), "web-2", "_Total").Return(nil)

	p, _ := newProcessor(backend)
	v := p.Process(context.Background(), parseBatch(t, `[{"DataType":"LINUX_PERF_BLOB","DataItems":[
		{"Timestamp":"28/06/2016","Host":"web-1","ObjectName":"Memory","InstanceName":"_Total",
		 "Collections":[{"CounterName":"Used MBytes","Value":1}]},
		{"Timestamp":"2016-06-28T21:58:24.677Z","Host":"web-2","ObjectName":"Memory","InstanceName":"_Total",
		 "Collections":[{"CounterName":"Used MBytes","Value":5}]}]}]`))

	require.False(t, v.OK)
	require.Equal(t, 1, v.Emitted)
	require.Equal(t, 1, v.Failed)
	require.ErrorIs(t, v.Err, errs.ErrMalformedTimestamp)
}

func TestProcess_EmissionFailureLoggedWithContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := mocks.NewMockBackend(ctrl)
	used := mocks.NewMockHandle(ctrl)
	free := mocks.NewMockHandle(ctrl)
	backend.EXPECT().NewMetric(gomock.Any(), "acc", memoryID("Used MBytes")).Return(used, nil)
	backend.EXPECT().NewMetric(gomock.Any(), "acc", memoryID("Free MBytes")).Return(free, nil)
	used.EXPECT().LogValueAtTime(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("agent rejected"))
	free.EXPECT().LogValueAtTime(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	p, logs := newProcessor(backend)
	v := p.Process(context.Background(), parseBatch(t, "["+goodRecord+"]"))

	require.False(t, v.OK)
	require.Equal(t, 2, v.Samples)
	require.Equal(t, 1, v.Emitted)
	require.Equal(t, 1, v.Failed)
	require.ErrorIs(t, v.Err, errs.ErrEmissionFailure)

	failed := logs.FilterMessageSnippet("sending to mdm failed").All()
	require.Len(t, failed, 1)
	require.Contains(t, failed[0].Message, "namespace=Memory, metric=Used MBytes, d1=Region, d1val=web-1; d2=InstanceName, d2val=_Total, value=300")
}

func TestProcess_HandleCreationFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().NewMetric(gomock.Any(), "acc", gomock.Any()).Return(nil, errors.New("no db")).Times(2)

	p, _ := newProcessor(backend)
	v := p.Process(context.Background(), parseBatch(t, "["+goodRecord+"]"))

	require.False(t, v.OK)
	require.Equal(t, 2, v.Failed)
	require.ErrorIs(t, v.Err, errs.ErrEmissionFailure)
}

type panickingBackend struct{}

func (panickingBackend) NewMetric(context.Context, string, model.MetricIdentity) (mdm.Handle, error) {
	panic("backend exploded")
}

func TestProcess_PanicBecomesFailedVerdict(t *testing.T) {
	p, logs := newProcessor(panickingBackend{})

	var v Verdict
	require.NotPanics(t, func() {
		v = p.Process(context.Background(), parseBatch(t, "["+goodRecord+"]"))
	})

	require.False(t, v.OK)
	require.ErrorIs(t, v.Err, errs.ErrUnexpectedFault)
	require.Equal(t, 1, logs.FilterMessageSnippet("unexpected fault").Len())
}

func TestProcess_CanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := newProcessor(mocks.NewMockBackend(ctrl))
	v := p.Process(ctx, parseBatch(t, "["+goodRecord+"]"))

	require.False(t, v.OK)
	require.Equal(t, 0, v.Records)
	require.ErrorIs(t, v.Err, context.Canceled)
}

func TestProcess_CancelledMidRecordStopsEmitting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := mocks.NewMockBackend(ctrl)
	used := mocks.NewMockHandle(ctrl)
	backend.EXPECT().NewMetric(gomock.Any(), "acc", memoryID("Used MBytes")).Return(used, nil)
	used.EXPECT().LogValueAtTime(gomock.Any(), gomock.Any(), int64(300), "web-1", "_Total").
		DoAndReturn(func(context.Context, int64, int64, string, string) error {
			cancel()
			return nil
		})

	p, _ := newProcessor(backend)
	v := p.Process(ctx, parseBatch(t, "["+goodRecord+","+goodRecord+"]"))

	require.False(t, v.OK)
	require.Equal(t, 1, v.Records)
	require.Equal(t, 1, v.Emitted)
	require.Equal(t, 1, v.Samples)
	require.ErrorIs(t, v.Err, context.Canceled)
	require.Len(t, multierr.Errors(v.Err), 1)
}

func TestProcess_EmptyBatch(t *testing.T) {
	p, _ := newProcessor(nil)
	v := p.Process(context.Background(), nil)
	require.True(t, v.OK)
	require.Equal(t, 0, v.Records)
}

func TestStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	cache := inmemory.NewHandleCache(mdm.NewLogBackend(zap.NewNop().Sugar()))
	stats := NewStats(reg, cache.Len)
	p := New("acc", cache, zap.NewNop().Sugar(), stats)

	p.Process(context.Background(), parseBatch(t, "["+goodRecord+`,{"DataType":"X"}]`))

	require.InDelta(t, 1, testutil.ToFloat64(stats.batches.WithLabelValues("failed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(stats.records.WithLabelValues("rejected")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(stats.samples.WithLabelValues("emitted")), 0)

	n, err := testutil.GatherAndCount(reg, "mdm_forwarder_metric_handles")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
