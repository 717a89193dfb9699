package pion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/Wyydra/yacall/internal/core/domain"
	"github.com/Wyydra/yacall/internal/core/port"
	"github.com/gorilla/websocket"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrSessionClosed = errors.New("room session closed")
	ErrNoAudioSource = errors.New("no audio source configured")
	ErrNoAnswer      = errors.New("room did not answer the audio offer")
)

type Options struct {
	ICEServers       []string
	AudioSource      AudioSource
	HandshakeTimeout time.Duration
	AnswerTimeout    time.Duration
}

// Connector joins rooms over a websocket signaling channel and carries media
// on a Pion PeerConnection.
type Connector struct {
	api    *webrtc.API
	dialer *websocket.Dialer
	opts   Options
}

func NewConnector(opts Options) (*Connector, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.AnswerTimeout == 0 {
		opts.AnswerTimeout = 10 * time.Second
	}
	return &Connector{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		dialer: &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		opts:   opts,
	}, nil
}

func signalURL(serverURL string, identity domain.ParticipantIdentity) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse room url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported room url scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("identity", identity.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Connector) Connect(ctx context.Context, serverURL string, identity domain.ParticipantIdentity) (port.RoomSession, error) {
	target, err := signalURL(serverURL, identity)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("dial room: %w", err)
	}

	cfg := webrtc.Configuration{}
	if len(c.opts.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: c.opts.ICEServers}}
	}
	pc, err := c.api.NewPeerConnection(cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	s := &Session{
		identity:      identity,
		conn:          conn,
		pc:            pc,
		source:        c.opts.AudioSource,
		answerTimeout: c.opts.AnswerTimeout,
		events:        make(chan domain.RoomEvent, 32),
		quit:          make(chan struct{}),
		log:           log.With().Str("identity", identity.String()).Logger(),
	}

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		candidate := cand.ToJSON()
		if err := s.write(frame{Type: frameCandidate, Candidate: &candidate}); err != nil {
			s.log.Debug().Err(err).Msg("Failed to send candidate")
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug().Str("state", state.String()).Msg("Peer connection state changed")
		if state == webrtc.PeerConnectionStateFailed {
			s.closeWithErr(errors.New("peer connection failed"))
		}
	})

	go s.readLoop()

	s.log.Info().Str("url", serverURL).Msg("Joined room")
	return s, nil
}

type Session struct {
	identity      domain.ParticipantIdentity
	conn          *websocket.Conn
	pc            *webrtc.PeerConnection
	source        AudioSource
	answerTimeout time.Duration
	log           zerolog.Logger

	events chan domain.RoomEvent
	quit   chan struct{}
	once   sync.Once

	writeMu sync.Mutex

	mu       sync.Mutex
	err      error
	track    *webrtc.TrackLocalStaticSample
	answered chan struct{}
}

func (s *Session) Events() <-chan domain.RoomEvent {
	return s.events
}

func (s *Session) write(f frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(f)
}

// readLoop is the only sender on s.events; the disconnected event is always
// the last one it delivers.
func (s *Session) readLoop() {
	defer close(s.events)

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			// Anything but a clean close frame is a dropped session.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.closeWithErr(nil)
			} else {
				s.closeWithErr(err)
			}
			break
		}
		if err := s.handleFrame(f); err != nil {
			s.log.Error().Err(err).Str("frame", string(f.Type)).Msg("Failed to handle signaling frame")
		}
	}

	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	s.events <- domain.NewDisconnected(err)
}

func (s *Session) handleFrame(f frame) error {
	switch f.Type {
	case frameParticipantConnected:
		s.emit(domain.NewParticipantConnected(domain.ParticipantIdentity(f.Identity)))
	case frameParticipantDisconnected:
		s.emit(domain.NewParticipantDisconnected(domain.ParticipantIdentity(f.Identity)))
	case frameAnswer:
		s.log.Debug().Int("sdp_len", len(f.SDP)).Msg("Setting remote description (answer)")
		if err := s.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: f.SDP}); err != nil {
			return err
		}
		s.mu.Lock()
		if s.answered != nil {
			close(s.answered)
			s.answered = nil
		}
		s.mu.Unlock()
	case frameCandidate:
		if f.Candidate == nil {
			return nil
		}
		return s.pc.AddICECandidate(*f.Candidate)
	case frameLeave:
		s.log.Info().Str("reason", f.Reason).Msg("Room closed by server")
		s.closeWithErr(nil)
	default:
		s.log.Debug().Str("frame", string(f.Type)).Msg("Ignoring signaling frame")
	}
	return nil
}

func (s *Session) emit(ev domain.RoomEvent) {
	select {
	case s.events <- ev:
	case <-s.quit:
	}
}

// EnableMicrophone publishes an Opus track fed by the configured AudioSource
// and waits for the room to answer the renegotiation offer.
func (s *Session) EnableMicrophone(ctx context.Context) error {
	if s.closed() {
		return ErrSessionClosed
	}
	if s.source == nil {
		return ErrNoAudioSource
	}

	s.mu.Lock()
	if s.track != nil {
		s.mu.Unlock()
		return nil
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"microphone", s.identity.String(),
	)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create audio track: %w", err)
	}
	sender, err := s.pc.AddTrack(track)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("add audio track: %w", err)
	}
	s.track = track
	answered := make(chan struct{})
	s.answered = answered
	s.mu.Unlock()

	go s.readRTCP(sender)

	if err := s.negotiate(ctx, answered); err != nil {
		s.unpublish(sender)
		return err
	}

	go s.pump(track)
	s.log.Info().Msg("Microphone published")
	return nil
}

func (s *Session) negotiate(ctx context.Context, answered <-chan struct{}) error {
	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	if err := s.write(frame{Type: frameOffer, SDP: offer.SDP}); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}

	timer := time.NewTimer(s.answerTimeout)
	defer timer.Stop()
	select {
	case <-answered:
		return nil
	case <-timer.C:
		return ErrNoAnswer
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return ErrSessionClosed
	}
}

// unpublish drops a track whose offer was never answered so the next
// EnableMicrophone starts over.
func (s *Session) unpublish(sender *webrtc.RTPSender) {
	s.mu.Lock()
	s.track = nil
	s.answered = nil
	s.mu.Unlock()
	if s.closed() {
		return
	}
	if err := s.pc.RemoveTrack(sender); err != nil {
		s.log.Debug().Err(err).Msg("Removing unanswered audio track")
	}
}

func (s *Session) pump(track *webrtc.TrackLocalStaticSample) {
	ticker := time.NewTicker(opusFrameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
		}
		sample, err := s.source.ReadSample()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Error().Err(err).Msg("Audio source failed")
			}
			return
		}
		if err := track.WriteSample(sample); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			s.log.Debug().Err(err).Msg("Failed to write audio sample")
		}
	}
}

// readRTCP drains the sender so interceptors keep running and logs what the
// far end reports about our audio.
func (s *Session) readRTCP(sender *webrtc.RTPSender) {
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		for _, p := range pkts {
			rr, ok := p.(*rtcp.ReceiverReport)
			if !ok {
				continue
			}
			for _, r := range rr.Reports {
				s.log.Debug().
					Uint32("ssrc", r.SSRC).
					Uint8("fraction_lost", r.FractionLost).
					Uint32("jitter", r.Jitter).
					Msg("Receiver report")
			}
		}
	}
}

// Disconnect starts teardown and returns immediately.
func (s *Session) Disconnect() {
	s.closeWithErr(nil)
}

func (s *Session) closeWithErr(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.quit)
		go s.teardown()
	})
}

func (s *Session) teardown() {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	if err := s.conn.Close(); err != nil {
		s.log.Debug().Err(err).Msg("Closing signaling socket")
	}
	if err := s.pc.Close(); err != nil {
		s.log.Debug().Err(err).Msg("Closing peer connection")
	}
	s.log.Info().Msg("Left room")
}

func (s *Session) closed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}
