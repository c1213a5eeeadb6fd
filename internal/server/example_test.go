package server

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/and161185/mdm-forwarder/internal/config"
	"github.com/and161185/mdm-forwarder/internal/forwarder"
	"github.com/and161185/mdm-forwarder/internal/mdm"
	"github.com/and161185/mdm-forwarder/storage/inmemory"
	"go.uber.org/zap"
)

func ExampleServer_RecordsHandler() {
	logger := zap.NewNop().Sugar()
	cache := inmemory.NewHandleCache(mdm.NewLogBackend(logger))
	srv := Server{
		Processor: forwarder.New("acc", cache, logger, nil),
		Cache:     cache,
		Config:    &config.ForwarderConfig{Logger: logger},
	}

	body := `[{"DataType":"LINUX_PERF_BLOB","DataItems":[{"Timestamp":"2016-06-28T21:58:24.677Z",
		"Host":"web-1","ObjectName":"Memory","InstanceName":"_Total",
		"Collections":[{"CounterName":"Used MBytes","Value":300}]}]}]`
	req := httptest.NewRequest(http.MethodPost, "/records", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	srv.RecordsHandler(w, req)

	fmt.Println(w.Code)
	// Output: 200
}

func ExampleServer_PingHandler() {
	srv := Server{Config: &config.ForwarderConfig{Logger: zap.NewNop().Sugar()}}
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()

	srv.PingHandler(w, req)

	fmt.Println(w.Code)
	// Output: 200
}
