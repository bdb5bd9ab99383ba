package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// ErrPeerClosed is returned when the sender goes away before a final state.
var ErrPeerClosed = errors.New("progress sender closed before completion")

// Outcome is the final report of a change run.
type Outcome struct {
	State State
	Path  string
}

// Receive reads frames from conn, acknowledging each one, until READY with
// its path or ERROR arrives. onState, when set, observes every state token.
func Receive(ctx context.Context, conn net.Conn, onState func(State)) (Outcome, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	for {
		state, err := receiveToken(conn)
		if err != nil {
			return Outcome{}, receiveError(ctx, err)
		}
		if onState != nil {
			onState(state)
		}
		switch state {
		case Error:
			return Outcome{State: Error}, nil
		case Ready:
			path, err := readFrame(conn)
			if err != nil {
				return Outcome{}, receiveError(ctx, err)
			}
			if err := writeAck(conn); err != nil {
				return Outcome{}, receiveError(ctx, err)
			}
			return Outcome{State: Ready, Path: string(path)}, nil
		}
	}
}

func receiveToken(conn net.Conn) (State, error) {
	payload, err := readFrame(conn)
	if err != nil {
		return "", err
	}
	state := State(payload)
	if !state.Valid() {
		return "", fmt.Errorf("unknown progress token %q", payload)
	}
	if err := writeAck(conn); err != nil {
		return "", err
	}
	return state, nil
}

func receiveError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("receive progress: %w", ctxErr)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrPeerClosed
	}
	return fmt.Errorf("receive progress: %w", err)
}

// Listener accepts a single sender on a unix socket.
type Listener struct {
	ln   net.Listener
	path string
}

// Listen creates the socket at path, replacing a stale one.
func Listen(path string) (*Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale progress socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on progress socket: %w", err)
	}
	return &Listener{ln: ln, path: path}, nil
}

// Path returns the socket path to hand to the sender.
func (l *Listener) Path() string {
	return l.path
}

// Receive waits for one sender and reads its outcome.
func (l *Listener) Receive(ctx context.Context, onState func(State)) (Outcome, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = l.ln.Close()
	})
	defer stop()

	conn, err := l.ln.Accept()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, fmt.Errorf("await progress sender: %w", ctxErr)
		}
		return Outcome{}, fmt.Errorf("await progress sender: %w", err)
	}
	defer conn.Close()
	return Receive(ctx, conn, onState)
}

// Close stops listening and removes the socket file.
func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}
