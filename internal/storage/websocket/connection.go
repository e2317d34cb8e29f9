package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/OCAP2/roverwatch/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	ackBuffer   = 16
	maxRedials  = 5
	maxBackoff  = 10 * time.Second
	writeWait   = 10 * time.Second
	ackTimeout  = 10 * time.Second
	dialTimeout = 15 * time.Second
)

var (
	errClosed       = errors.New("websocket stream closed")
	errNotConnected = errors.New("websocket not connected")
)

// stream is the link to the ingest server for one backend. Writes are
// synchronous and serialized. A reader goroutine per connection routes acks.
// A failed write redials, replays the start_run of the run in progress and
// retries the write once.
type stream struct {
	target  *url.URL
	dialer  *ws.Dialer
	backoff time.Duration
	logger  *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	conn    *ws.Conn
	openRun []byte
	closed  bool

	acks chan streaming.AckMessage
	done chan struct{}
}

func newStream(logger *slog.Logger) *stream {
	return &stream{
		dialer:  &ws.Dialer{HandshakeTimeout: dialTimeout},
		backoff: 500 * time.Millisecond,
		logger:  logger,
		acks:    make(chan streaming.AckMessage, ackBuffer),
		done:    make(chan struct{}),
	}
}

// open resolves the server URL, adding the secret as a query parameter, and
// dials it.
func (s *stream) open(ctx context.Context, rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	s.target = u

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	s.attach(conn)
	return nil
}

func (s *stream) dial(ctx context.Context) (*ws.Conn, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (s *stream) attach(conn *ws.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	go s.readAcks(conn)
}

// readAcks forwards ack messages from conn until it fails.
func (s *stream) readAcks(conn *ws.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			current := s.conn == conn && !s.closed
			s.mu.Unlock()
			if current {
				s.logger.Debug("WebSocket read stopped", "error", err)
			}
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(msg, &ack); err != nil || ack.Type != streaming.TypeAck {
			s.logger.Debug("Ignoring non-ack message", "raw", string(msg))
			continue
		}
		select {
		case s.acks <- ack:
		default:
			s.logger.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

// beginRun remembers start_run for replay after a redial. endRun forgets it.
func (s *stream) beginRun(start []byte) {
	s.mu.Lock()
	s.openRun = start
	s.mu.Unlock()
}

func (s *stream) endRun() {
	s.mu.Lock()
	s.openRun = nil
	s.mu.Unlock()
}

func (s *stream) write(ctx context.Context, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.writeConn(data)
	if err == nil {
		return nil
	}
	if s.isClosed() {
		return errClosed
	}
	s.logger.Warn("WebSocket write failed, redialing", "error", err)
	if err := s.redial(ctx); err != nil {
		return err
	}
	return s.writeConn(data)
}

func (s *stream) writeConn(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// redial replaces the connection with exponential backoff and replays the
// open run's start_run on the new one.
func (s *stream) redial(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	replay := s.openRun
	s.mu.Unlock()

	backoff := s.backoff
	var lastErr error
	for attempt := 1; attempt <= maxRedials; attempt++ {
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.done:
			timer.Stop()
			return errClosed
		case <-timer.C:
		}

		conn, err := s.dial(ctx)
		if err == nil && replay != nil {
			if err = conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				err = conn.WriteMessage(ws.TextMessage, replay)
			}
			if err != nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			lastErr = err
			s.logger.Warn("WebSocket redial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		s.attach(conn)
		s.logger.Info("WebSocket reconnected", "attempt", attempt, "replayedStart", replay != nil)
		return nil
	}
	return fmt.Errorf("websocket redial gave up after %d attempts: %w", maxRedials, lastErr)
}

// request writes data and waits for the server to ack ackFor.
func (s *stream) request(ctx context.Context, data []byte, ackFor string, timeout time.Duration) error {
	if err := s.write(ctx, data); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-s.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-ctx.Done():
			return fmt.Errorf("waiting for ack of %q: %w", ackFor, ctx.Err())
		case <-s.done:
			return fmt.Errorf("waiting for ack of %q: %w", ackFor, errClosed)
		}
	}
}

func (s *stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close says goodbye to the server and stops the reader.
func (s *stream) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return conn.Close()
}
