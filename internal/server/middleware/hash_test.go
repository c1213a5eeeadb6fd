package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/and161185/mdm-forwarder/internal/utils"
	"github.com/stretchr/testify/require"
)

func gzipBody(data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write(data)
	_ = zw.Close()
	return buf.Bytes()
}

func makeRequest(t *testing.T, body []byte, key, hash string) *httptest.ResponseRecorder {
	t.Helper()
	handler := VerifyHashMiddleware(key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, body, got)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("response"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Content-Type", "application/json")
	if hash != "" {
		req.Header.Set(utils.HashHeader, hash)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestVerifyHashMiddleware(t *testing.T) {
	raw := []byte(`[{"DataType":"LINUX_PERF_BLOB","DataItems":[]}]`)
	compressed := gzipBody(raw)
	key := "supersecret"

	t.Run("valid hash", func(t *testing.T) {
		hash := utils.CalculateHash(compressed, key)
		rr := makeRequest(t, compressed, key, hash)
		require.Equal(t, http.StatusAccepted, rr.Code)
		require.Equal(t, "response", rr.Body.String())
		require.Equal(t, utils.CalculateHash([]byte("response"), key), rr.Header().Get(utils.HashHeader))
	})

	t.Run("invalid hash", func(t *testing.T) {
		rr := makeRequest(t, compressed, key, "invalidhash")
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("no hash header", func(t *testing.T) {
		rr := makeRequest(t, compressed, key, "")
		require.Equal(t, http.StatusAccepted, rr.Code)
	})

	t.Run("no key", func(t *testing.T) {
		rr := makeRequest(t, compressed, "", "whatever")
		require.Equal(t, http.StatusAccepted, rr.Code)
		require.Empty(t, rr.Header().Get(utils.HashHeader))
	})
}
