package httpapi

import (
	"net"
	"strconv"
	"testing"
	"time"
)

func pipeWithRequest(t *testing.T, raw string) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		_, _ = client.Write([]byte(raw))
	}()
	t.Cleanup(func() { client.Close(); server.Close() })
	return server
}

func TestParseRequestGETNoBody(t *testing.T) {
	raw := "GET /api/health?x=1 HTTP/1.1\r\nHost: localhost\r\n\r\n"
	conn := pipeWithRequest(t, raw)

	req, err := ParseRequest(conn, time.Second)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if req.Method != "GET" {
		t.Errorf("Method = %q, want GET", req.Method)
	}
	if req.Path != "/api/health" {
		t.Errorf("Path = %q, want /api/health (query string stripped)", req.Path)
	}
	if req.Header("Host") != "localhost" {
		t.Errorf("Header(Host) = %q, want localhost", req.Header("Host"))
	}
}

func TestParseRequestWithBody(t *testing.T) {
	body := `{"agentId":"lead"}`
	raw := "POST /api/events HTTP/1.1\r\nContent-Length: " +
		strconv.Itoa(len(body)) + "\r\n\r\n" + body
	conn := pipeWithRequest(t, raw)

	req, err := ParseRequest(conn, time.Second)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if string(req.Body) != body {
		t.Errorf("Body = %q, want %q", req.Body, body)
	}
}

func TestParseRequestRejectsChunkedEncoding(t *testing.T) {
	raw := "POST /api/events HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n"
	conn := pipeWithRequest(t, raw)

	if _, err := ParseRequest(conn, time.Second); err != ErrInvalidRequest {
		t.Errorf("ParseRequest() error = %v, want ErrInvalidRequest", err)
	}
}

func TestParseRequestRejectsOversizeBody(t *testing.T) {
	raw := "POST /api/events HTTP/1.1\r\nContent-Length: " + strconv.Itoa(maxBodyBytes+1) + "\r\n\r\n"
	conn := pipeWithRequest(t, raw)

	if _, err := ParseRequest(conn, time.Second); err != ErrInvalidRequest {
		t.Errorf("ParseRequest() error = %v, want ErrInvalidRequest", err)
	}
}

func TestParseRequestHeaderLookupIsCaseInsensitive(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nX-Api-Key: secret\r\n\r\n"
	conn := pipeWithRequest(t, raw)

	req, err := ParseRequest(conn, time.Second)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if req.Header("x-api-key") != "secret" {
		t.Errorf("Header(x-api-key) = %q, want secret", req.Header("x-api-key"))
	}
}
