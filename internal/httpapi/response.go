package httpapi

import (
	"encoding/json"
	"fmt"
	"net"
)

func writeJSONStatus(conn net.Conn, statusLine string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	writeJSONBytes(conn, statusLine, payload)
}

func writeJSONBytes(conn net.Conn, statusLine string, payload []byte) {
	header := fmt.Sprintf(
		"HTTP/1.1 %s\r\nContent-Type: application/json; charset=utf-8\r\nContent-Length: %d\r\nCache-Control: no-cache\r\nConnection: close\r\n\r\n",
		statusLine, len(payload),
	)
	_, _ = conn.Write([]byte(header))
	_, _ = conn.Write(payload)
}

func writeBytesStatus(conn net.Conn, statusLine string, body []byte, contentType string) {
	header := fmt.Sprintf(
		"HTTP/1.1 %s\r\nContent-Type: %s\r\nContent-Length: %d\r\nCache-Control: no-cache\r\nConnection: close\r\n\r\n",
		statusLine, contentType, len(body),
	)
	_, _ = conn.Write([]byte(header))
	_, _ = conn.Write(body)
}

func writeError(conn net.Conn, statusLine, message string) {
	writeJSONStatus(conn, statusLine, map[string]string{"error": message})
}
