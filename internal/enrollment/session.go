package enrollment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fingerprint is the display-only identity of the card being enrolled.
type Fingerprint struct {
	PanSuffix string
	Expiry    string
	Ref       string
}

// Event is one state change of a session.
type Event struct {
	SessionID string
	Seq       uint64
	State     State
	At        time.Time
}

// Session is one enrollment attempt and its event stream.
type Session struct {
	id          string
	fingerprint Fingerprint
	events      *stream
	ctx         context.Context
	cancel      context.CancelFunc
	seq         uint64
	pushToken   string
}

func newSession(parent context.Context, fp Fingerprint) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:          uuid.NewString(),
		fingerprint: fp,
		events:      newStream(parent.Done()),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID identifies the session.
func (s *Session) ID() string { return s.id }

// Fingerprint returns the card fingerprint, empty for resumed activations.
func (s *Session) Fingerprint() Fingerprint { return s.fingerprint }

// Events returns the ordered state stream. It has a single consumer and is
// closed after the terminal state is delivered, or as soon as a newer session
// replaces this one.
func (s *Session) Events() <-chan Event { return s.events.out }

func (s *Session) emit(st State) Event {
	s.seq++
	ev := Event{SessionID: s.id, Seq: s.seq, State: st, At: time.Now().UTC()}
	s.events.push(ev)
	return ev
}

func (s *Session) finish() {
	s.events.close()
	s.cancel()
}

// stream is an unbounded FIFO in front of an unbuffered channel, so the
// writer never blocks and the reader sees every event in order.
type stream struct {
	mu       sync.Mutex
	queue    []Event
	closed   bool
	notify   chan struct{}
	out      chan Event
	done     <-chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newStream(done <-chan struct{}) *stream {
	s := &stream{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
		done:   done,
		stop:   make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *stream) push(ev Event) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, ev)
	}
	s.mu.Unlock()
	s.wake()
}

func (s *stream) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

// release stops the pump and drops undelivered events. Called once the
// session is no longer current.
func (s *stream) release() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *stream) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *stream) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			case <-s.stop:
				return
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		case <-s.stop:
			return
		}
	}
}
