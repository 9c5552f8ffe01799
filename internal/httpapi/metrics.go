package httpapi

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
)

// MetricsAdapter builds the handler passed to Server.SetMetricsHandler: it
// drives promhttp's net/http.Handler against an httptest.ResponseRecorder
// (this package's transport is a raw net.Conn, not net/http) and replays
// the recorded status, Content-Type and body onto the connection; other
// recorded headers are not copied.
func MetricsAdapter(handler http.Handler) func(conn net.Conn, req *ParsedRequest) {
	return func(conn net.Conn, req *ParsedRequest) {
		httpReq, err := http.NewRequest("GET", req.Path, nil)
		if err != nil {
			writeError(conn, "500 Internal Server Error", "internal error")
			return
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httpReq)
		result := rec.Result()
		defer result.Body.Close()

		body := rec.Body.Bytes()
		contentType := result.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		statusLine := fmt.Sprintf("%d %s", result.StatusCode, http.StatusText(result.StatusCode))
		writeBytesStatus(conn, statusLine, body, contentType)
	}
}
