// Package memory is a loopback room used for local runs and tests. It never
// touches the network: the agent "joins" after a delay and media is discarded.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/rs/zerolog/log"
)

var ErrSessionClosed = errors.New("room session closed")

type Options struct {
	// AgentIdentity joins every session after AgentDelay. Empty means nobody joins.
	AgentIdentity domain.ParticipantIdentity
	AgentDelay    time.Duration
	ConnectErr    error
	MicrophoneErr error
}

type Connector struct {
	opts Options

	mu       sync.Mutex
	sessions []*Session
}

func NewConnector(opts Options) *Connector {
	return &Connector{opts: opts}
}

func (c *Connector) Connect(ctx context.Context, serverURL string, identity domain.ParticipantIdentity) (port.RoomSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.opts.ConnectErr != nil {
		return nil, fmt.Errorf("connect %s: %w", serverURL, c.opts.ConnectErr)
	}

	s := newSession(identity, c.opts.MicrophoneErr)
	c.mu.Lock()
	c.sessions = append(c.sessions, s)
	c.mu.Unlock()

	go s.run(c.opts.AgentIdentity, c.opts.AgentDelay)
	log.Debug().Str("identity", identity.String()).Str("url", serverURL).Msg("Loopback room joined")
	return s, nil
}

// Sessions returns every session opened so far, oldest first.
func (c *Connector) Sessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Session, len(c.sessions))
	copy(out, c.sessions)
	return out
}

type Session struct {
	identity domain.ParticipantIdentity
	micErr   error

	events chan domain.RoomEvent
	joins  chan domain.ParticipantIdentity
	quit   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	micOn   bool
	dropErr error
}

func newSession(identity domain.ParticipantIdentity, micErr error) *Session {
	return &Session{
		identity: identity,
		micErr:   micErr,
		events:   make(chan domain.RoomEvent, 8),
		joins:    make(chan domain.ParticipantIdentity),
		quit:     make(chan struct{}),
	}
}

func (s *Session) Identity() domain.ParticipantIdentity {
	return s.identity
}

func (s *Session) run(agent domain.ParticipantIdentity, delay time.Duration) {
	defer close(s.events)

	var agentC <-chan time.Time
	if agent != "" {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		agentC = timer.C
	}

	for {
		select {
		case <-s.quit:
			s.mu.Lock()
			err := s.dropErr
			s.mu.Unlock()
			s.events <- domain.NewDisconnected(err)
			return
		case <-agentC:
			agentC = nil
			s.send(domain.NewParticipantConnected(agent))
		case id := <-s.joins:
			s.send(domain.NewParticipantConnected(id))
		}
	}
}

func (s *Session) send(ev domain.RoomEvent) {
	select {
	case s.events <- ev:
	case <-s.quit:
	}
}

func (s *Session) EnableMicrophone(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Closed() {
		return ErrSessionClosed
	}
	if s.micErr != nil {
		return fmt.Errorf("enable microphone: %w", s.micErr)
	}
	s.mu.Lock()
	s.micOn = true
	s.mu.Unlock()
	return nil
}

func (s *Session) MicrophoneEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.micOn
}

func (s *Session) Events() <-chan domain.RoomEvent {
	return s.events
}

// Join simulates a remote participant entering the room.
func (s *Session) Join(identity domain.ParticipantIdentity) {
	select {
	case s.joins <- identity:
	case <-s.quit:
	}
}

// Drop simulates the room going away underneath us.
func (s *Session) Drop(err error) {
	s.mu.Lock()
	s.dropErr = err
	s.mu.Unlock()
	s.Disconnect()
}

func (s *Session) Disconnect() {
	s.once.Do(func() { close(s.quit) })
}

func (s *Session) Closed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}
