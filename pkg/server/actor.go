package server

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrActorClosed is returned when sending to an actor that has stopped.
	ErrActorClosed = errors.New("server: actor closed")
	// ErrSendTimeout is returned when an actor's mailbox stayed full for
	// the whole send timeout.
	ErrSendTimeout = errors.New("server: send timed out")
)

// mailbox is the bounded inbox of one actor. done is closed when the actor
// stops; sends after that fail with ErrActorClosed.
type mailbox[T any] struct {
	ch   chan T
	done chan struct{}
}

func newMailbox[T any](size int) mailbox[T] {
	return mailbox[T]{ch: make(chan T, size), done: make(chan struct{})}
}

// trySend delivers msg only if the mailbox has room right now.
func (m mailbox[T]) trySend(msg T) error {
	select {
	case <-m.done:
		return ErrActorClosed
	default:
	}
	select {
	case m.ch <- msg:
		return nil
	default:
		return ErrSendTimeout
	}
}

// send waits for room in the mailbox. A timeout of zero waits until ctx is
// done or the actor stops.
func (m mailbox[T]) send(ctx context.Context, msg T, timeout time.Duration) error {
	select {
	case <-m.done:
		return ErrActorClosed
	default:
	}
	select {
	case m.ch <- msg:
		return nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case m.ch <- msg:
		return nil
	case <-m.done:
		return ErrActorClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return ErrSendTimeout
	}
}
