package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"wallp/internal/logging"
)

// State is a progress token.
type State string

const (
	Changing State = "CHANGING"
	Ready    State = "READY"
	Error    State = "ERROR"
)

// Valid reports whether s is a known token.
func (s State) Valid() bool {
	switch s {
	case Changing, Ready, Error:
		return true
	default:
		return false
	}
}

// ErrDetached is returned by Send once the peer has been dropped.
var ErrDetached = errors.New("progress peer detached")

// Reporter receives progress events for one change run. path is only used
// with Ready.
type Reporter interface {
	Send(ctx context.Context, state State, path string) error
}

type discard struct{}

func (discard) Send(context.Context, State, string) error { return nil }

// Discard is the reporter used when nobody is waiting.
var Discard Reporter = discard{}

// Conn is the sending end of a progress channel.
type Conn struct {
	conn    net.Conn
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	detached bool
}

// NewConn wraps an established connection. timeout bounds every frame write
// together with its ack; zero leaves waits bounded only by the context.
func NewConn(conn net.Conn, timeout time.Duration, logger *slog.Logger) *Conn {
	return &Conn{
		conn:    conn,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "progress"),
	}
}

// Dial connects to a peer listening on the unix socket at path.
func Dial(ctx context.Context, path string, timeout time.Duration, logger *slog.Logger) (*Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial progress socket %s: %w", path, err)
	}
	return NewConn(conn, timeout, logger), nil
}

// Send delivers state, and for Ready the path frame, waiting for the peer to
// acknowledge each frame. The first failure detaches the connection; later
// calls return ErrDetached without touching the wire.
func (c *Conn) Send(ctx context.Context, state State, path string) error {
	if !state.Valid() {
		return fmt.Errorf("invalid progress state %q", state)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return ErrDetached
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	err := c.exchange(ctx, []byte(state))
	if err == nil && state == Ready {
		err = c.exchange(ctx, []byte(path))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		c.detach(state, err)
		return fmt.Errorf("%w: %w", ErrDetached, err)
	}
	return nil
}

func (c *Conn) exchange(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}
	if err := writeFrame(c.conn, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if err := readAck(c.conn); err != nil {
		return fmt.Errorf("await ack: %w", err)
	}
	return nil
}

func (c *Conn) detach(state State, err error) {
	c.detached = true
	_ = c.conn.Close()
	c.logger.Warn("progress peer lost; remaining reports dropped",
		logging.String("state", string(state)),
		logging.Error(err),
		logging.String(logging.FieldEventType, "progress_detached"),
		logging.String(logging.FieldImpact, "waiting client will not see the outcome"),
	)
}

// Detached reports whether the peer has been dropped.
func (c *Conn) Detached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detached
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return nil
	}
	c.detached = true
	return c.conn.Close()
}

// Pipe returns an in-process sender and the raw receiving end, for callers
// that run the change flow in the same process.
func Pipe(timeout time.Duration, logger *slog.Logger) (*Conn, net.Conn) {
	local, remote := net.Pipe()
	return NewConn(local, timeout, logger), remote
}
