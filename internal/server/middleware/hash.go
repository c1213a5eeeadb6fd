package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/and161185/mdm-forwarder/internal/utils"
)

// VerifyHashMiddleware rejects requests whose HashSHA256 header does not
// match the body signed with key, and signs the response body. Requests
// without the header pass. An empty key disables both.
func VerifyHashMiddleware(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if got := r.Header.Get(utils.HashHeader); got != "" {
				bodyBytes, err := io.ReadAll(r.Body)
				if err != nil {
					http.Error(w, "bad body", http.StatusBadRequest)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

				if got != utils.CalculateHash(bodyBytes, key) {
					http.Error(w, "invalid hash", http.StatusBadRequest)
					return
				}
			}

			hrw := &hashResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(hrw, r)

			body := hrw.buf.Bytes()
			w.Header().Set(utils.HashHeader, utils.CalculateHash(body, key))
			w.WriteHeader(hrw.statusCode)
			_, _ = w.Write(body)
		})
	}
}

type hashResponseWriter struct {
	http.ResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func (w *hashResponseWriter) WriteHeader(code int) {
	w.statusCode = code
}

func (w *hashResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}
