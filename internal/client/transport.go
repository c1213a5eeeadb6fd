package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/and161185/mdm-forwarder/internal/utils"
)

// Transport posts gzip-compressed JSON to a base URL, signing bodies when a
// key is set and retrying network failures.
type Transport struct {
	BaseURL    string
	Key        string
	HTTPClient *http.Client
}

// NewTransport returns a Transport with its own http.Client.
func NewTransport(baseURL, key string, timeout time.Duration) *Transport {
	return &Transport{
		BaseURL:    baseURL,
		Key:        key,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// PostGzipJSON sends payload to path and returns the status code and body.
func (t *Transport) PostGzipJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal: %w", err)
	}

	var body bytes.Buffer
	zw := gzip.NewWriter(&body)
	if _, err = zw.Write(raw); err != nil {
		return 0, nil, fmt.Errorf("gzip write: %w", err)
	}
	if err = zw.Close(); err != nil {
		return 0, nil, fmt.Errorf("gzip close: %w", err)
	}
	compressed := body.Bytes()

	var (
		code     int
		respBody []byte
	)
	err = utils.WithRetry(ctx, func() error {
		req, e := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+path, bytes.NewReader(compressed))
		if e != nil {
			return e
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Content-Encoding", "gzip")
		if t.Key != "" {
			req.Header.Set(utils.HashHeader, utils.CalculateHash(compressed, t.Key))
		}

		resp, e := t.HTTPClient.Do(req)
		if e != nil {
			return e
		}
		defer resp.Body.Close()
		respBody, e = io.ReadAll(resp.Body)
		code = resp.StatusCode
		return e
	})
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	return code, respBody, nil
}
