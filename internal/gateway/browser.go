package gateway

import (
	"sync"

	"github.com/google/uuid"

	"ai-interview-coach-service/internal/speech"
)

// browserRecognizer implements speech.Recognizer against a browser shim on
// the other end of the connection. Commands go out as rec.* frames; the
// shim's engine events come back through the handle methods, called from the
// connection read loop.
type browserRecognizer struct {
	send func(frameType string, payload any) error

	mu     sync.Mutex
	cfg    speech.RecognizerConfig
	events speech.RecognizerEvents
	active bool
}

func newBrowserRecognizer(send func(frameType string, payload any) error) *browserRecognizer {
	return &browserRecognizer{send: send}
}

func (r *browserRecognizer) Configure(cfg speech.RecognizerConfig, events speech.RecognizerEvents) {
	r.mu.Lock()
	r.cfg = cfg
	r.events = events
	r.mu.Unlock()
}

func (r *browserRecognizer) Start() error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return speech.ErrAlreadyStarted
	}
	cfg := r.cfg
	r.mu.Unlock()

	return r.send(FrameRecStart, RecStartPayload{
		Language:       cfg.Language,
		Continuous:     cfg.Continuous,
		InterimResults: cfg.InterimResults,
	})
}

func (r *browserRecognizer) Stop() {
	_ = r.send(FrameRecStop, nil)
}

func (r *browserRecognizer) Abort() {
	_ = r.send(FrameRecAbort, nil)
}

// handleStarted processes the shim's rec.started frame.
func (r *browserRecognizer) handleStarted() {
	r.mu.Lock()
	r.active = true
	ev := r.events
	r.mu.Unlock()
	if ev.OnStart != nil {
		ev.OnStart()
	}
}

// handleResult processes one rec.result frame.
func (r *browserRecognizer) handleResult(p RecResultPayload) {
	r.mu.Lock()
	ev := r.events
	r.mu.Unlock()
	if ev.OnResult != nil {
		ev.OnResult(p.toResults(), p.ResultIndex)
	}
}

// handleEnd processes the shim's rec.end frame.
func (r *browserRecognizer) handleEnd() {
	r.mu.Lock()
	r.active = false
	ev := r.events
	r.mu.Unlock()
	if ev.OnEnd != nil {
		ev.OnEnd()
	}
}

// handleError processes a rec.error frame.
func (r *browserRecognizer) handleError(code string) {
	r.mu.Lock()
	ev := r.events
	r.mu.Unlock()
	if ev.OnError != nil {
		ev.OnError(speech.ErrorCode(code))
	}
}

// browserSynthesizer implements speech.Synthesizer against the browser shim.
// Utterances carry a generated ID so the shim's tts.* events can be matched
// back to the right one after cancellations.
type browserSynthesizer struct {
	send func(frameType string, payload any) error

	mu            sync.Mutex
	voices        []speech.Voice
	voicesChanged func()
	pending       map[string]*speech.Utterance
}

func newBrowserSynthesizer(send func(frameType string, payload any) error) *browserSynthesizer {
	return &browserSynthesizer{
		send:    send,
		pending: make(map[string]*speech.Utterance),
	}
}

func (s *browserSynthesizer) Speak(u *speech.Utterance) error {
	id := uuid.NewString()
	s.mu.Lock()
	// At most one utterance is ever live; superseded entries whose events
	// never arrived would otherwise sit in the map for the connection's
	// lifetime.
	clear(s.pending)
	s.pending[id] = u
	s.mu.Unlock()

	p := SpeakPayload{
		ID:    id,
		Text:  u.Text,
		Rate:  u.Rate,
		Pitch: u.Pitch,
	}
	if u.Voice != nil {
		p.Voice = u.Voice.Name
	}
	if err := s.send(FrameTTSSpeak, p); err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *browserSynthesizer) Cancel() {
	s.mu.Lock()
	clear(s.pending)
	s.mu.Unlock()
	_ = s.send(FrameTTSCancel, nil)
}

func (s *browserSynthesizer) Pause() {
	_ = s.send(FrameTTSPause, nil)
}

func (s *browserSynthesizer) Resume() {
	_ = s.send(FrameTTSResume, nil)
}

func (s *browserSynthesizer) Voices() []speech.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]speech.Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

func (s *browserSynthesizer) SetVoicesChanged(fn func()) {
	s.mu.Lock()
	s.voicesChanged = fn
	s.mu.Unlock()
}

// handleVoices processes a tts.voices frame.
func (s *browserSynthesizer) handleVoices(p VoicesPayload) {
	s.mu.Lock()
	s.voices = p.toVoices()
	fn := s.voicesChanged
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// handleStarted processes a tts.started frame.
func (s *browserSynthesizer) handleStarted(id string) {
	s.mu.Lock()
	u := s.pending[id]
	s.mu.Unlock()
	if u != nil && u.OnStart != nil {
		u.OnStart()
	}
}

// handleEnded processes a tts.ended frame. The utterance is finished and
// dropped from the pending map.
func (s *browserSynthesizer) handleEnded(id string) {
	s.mu.Lock()
	u := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if u != nil && u.OnEnd != nil {
		u.OnEnd()
	}
}

// handleError processes a tts.error frame, including the self-caused
// "interrupted" and "canceled" reasons after a cancel.
func (s *browserSynthesizer) handleError(id, reason string) {
	s.mu.Lock()
	u := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if u != nil && u.OnError != nil {
		u.OnError(reason)
	}
}
