package test

import (
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/celestiaorg/jobscheduler/internal/db/models"
	"github.com/celestiaorg/jobscheduler/internal/events"
)

// StreamConn is a test connection to the job update stream
type StreamConn struct {
	suite *Suite
	conn  *websocket.Conn
}

// DialStream opens a websocket connection to the job update stream and
// waits until the server has registered it as a subscriber.
func (s *Suite) DialStream() *StreamConn {
	s.t.Helper()

	before := s.Broadcaster.Stats().Subscribers
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.APIClient.StreamURL(), nil)
	s.Require().NoError(err, "Failed to dial job stream")
	s.t.Cleanup(func() { _ = conn.Close() })

	s.Require().Eventually(func() bool {
		return s.Broadcaster.Stats().Subscribers > before
	}, 5*time.Second, 5*time.Millisecond, "stream subscriber never registered")

	return &StreamConn{suite: s, conn: conn}
}

// Next reads the next message, failing the test after timeout
func (c *StreamConn) Next(timeout time.Duration) events.Message {
	c.suite.t.Helper()

	msg, err := c.read(timeout)
	c.suite.Require().NoError(err, "Failed to read stream message")
	return msg
}

// NextUpdate skips heartbeats and returns the next job update
func (c *StreamConn) NextUpdate(timeout time.Duration) models.Job {
	c.suite.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		msg, err := c.read(time.Until(deadline))
		c.suite.Require().NoError(err, "Failed to read job update")
		if update, ok := msg.(events.JobStatusUpdate); ok {
			return update.Job
		}
	}
}

// RequireClosed fails the test unless the server ends the connection
// within timeout. Messages still in flight are skipped.
func (c *StreamConn) RequireClosed(timeout time.Duration) {
	c.suite.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := c.read(time.Until(deadline)); err != nil {
			var netErr net.Error
			c.suite.Require().False(errors.As(err, &netErr) && netErr.Timeout(), "stream still open after %s", timeout)
			return
		}
	}
	c.suite.t.Fatalf("stream still open after %s", timeout)
}

// Close closes the client side of the connection
func (c *StreamConn) Close() error {
	return c.conn.Close()
}

func (c *StreamConn) read(timeout time.Duration) (events.Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return events.Decode(data)
}
