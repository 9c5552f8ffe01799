package httpapi

import (
	"encoding/json"
	"net"
	"time"

	"github.com/adred-codev/fleetmon/internal/snapshot"
	"github.com/adred-codev/fleetmon/internal/sse"
)

type snapshotFrame struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// handleStream upgrades the connection to a long-lived SSE stream, per
// spec.md §4.2: write SSE headers, one initial snapshot frame, then relay
// broadcast frames until a write fails, sending a keepalive comment frame
// whenever the subscriber goes idle for sse.IdleTimeout.
func (s *Server) handleStream(conn net.Conn) {
	defer conn.Close()

	// SSE connections are long-lived; the request read deadline set by
	// ParseRequest does not apply to the remainder of this connection.
	_ = conn.SetDeadline(time.Time{})

	header := "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream; charset=utf-8\r\nCache-Control: no-cache, no-transform\r\nConnection: keep-alive\r\n\r\n"
	if _, err := conn.Write([]byte(header)); err != nil {
		return
	}

	snap := snapshot.Build(s.store.Snapshot())
	payload, err := json.Marshal(snapshotFrame{Type: "snapshot", Payload: snap})
	if err == nil {
		if _, err := conn.Write(sse.Frame(payload)); err != nil {
			return
		}
	}

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	timer := time.NewTimer(sse.IdleTimeout)
	defer timer.Stop()

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if _, err := conn.Write(msg); err != nil {
				return
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(sse.IdleTimeout)
		case <-timer.C:
			if _, err := conn.Write(sse.KeepaliveFrame); err != nil {
				return
			}
			timer.Reset(sse.IdleTimeout)
		}
	}
}
