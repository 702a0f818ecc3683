package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 30 * time.Second
	closeGracePeriod        = time.Second
	// maxBatchBytes caps the buffered batch; Append flushes once it is reached.
	maxBatchBytes = 512 * 1024
)

// WebSocketSink ships records to a remote collector. Appended records are
// buffered and sent as one newline-joined text frame per Flush.
type WebSocketSink struct {
	url     string
	conn    *websocket.Conn
	buf     bytes.Buffer
	frames  int64
	records int64
}

// DialWebSocket connects to url.
func DialWebSocket(ctx context.Context, url string, headers http.Header) (*WebSocketSink, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: defaultHandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("sink: websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("sink: websocket dial failed: %w", err)
	}
	return &WebSocketSink{url: url, conn: conn}, nil
}

// Frames returns the number of frames written.
func (s *WebSocketSink) Frames() int64 { return s.frames }

func (s *WebSocketSink) Append(line string) error {
	if s.conn == nil {
		return errors.New("sink: websocket not connected")
	}
	s.buf.WriteString(line)
	s.buf.WriteByte('\n')
	s.records++
	if s.buf.Len() >= maxBatchBytes {
		return s.Flush()
	}
	return nil
}

func (s *WebSocketSink) Flush() error {
	if s.conn == nil || s.buf.Len() == 0 {
		return nil
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, s.buf.Bytes()); err != nil {
		return fmt.Errorf("sink: websocket write %s: %w", s.url, err)
	}
	s.buf.Reset()
	s.frames++
	return nil
}

// Close flushes pending records and performs the closing handshake.
func (s *WebSocketSink) Close() error {
	if s.conn == nil {
		return nil
	}
	flushErr := s.Flush()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	ctrlErr := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	if errors.Is(ctrlErr, websocket.ErrCloseSent) {
		ctrlErr = nil
	}
	closeErr := s.conn.Close()
	s.conn = nil
	return errors.Join(flushErr, ctrlErr, closeErr)
}
