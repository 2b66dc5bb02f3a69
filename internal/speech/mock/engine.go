// Package mock provides scripted speech engines for development and tests
// without a browser client or cloud credentials. The recognizer replays
// progressive interim results followed by a final, mimicking a continuous
// dictation engine including its habit of re-delivering the full result list
// on every event and terminating runs on its own initiative.
package mock

import (
	"sync"
	"time"

	"ai-interview-coach-service/internal/speech"
)

// ScriptedAnswer is one simulated user answer.
type ScriptedAnswer struct {
	Interims []string // progressive interim transcripts
	Final    string   // finalized transcript
}

// DefaultAnswers provides sample answers for simulation.
var DefaultAnswers = []ScriptedAnswer{
	{
		Interims: []string{"I have", "I have five years", "I have five years of experience"},
		Final:    "I have five years of experience building backend services",
	},
	{
		Interims: []string{"My biggest", "My biggest strength is"},
		Final:    "My biggest strength is debugging production incidents",
	},
	{
		Interims: []string{"I once", "I once led a migration"},
		Final:    "I once led a migration to event driven architecture",
	},
}

// Recognizer implements speech.Recognizer with scripted results. Events can
// also be injected manually through the Fire methods, which is how the
// gateway tests simulate engine redelivery, restarts and error codes.
type Recognizer struct {
	mu     sync.Mutex
	events speech.RecognizerEvents
	active bool

	script   []ScriptedAnswer
	answerIx int
	interval time.Duration
}

// NewRecognizer creates a scripted recognizer. interval is the pacing between
// emitted result events; zero disables automatic playback so the caller
// drives everything through Fire methods.
func NewRecognizer(script []ScriptedAnswer, interval time.Duration) *Recognizer {
	return &Recognizer{script: script, interval: interval}
}

func (r *Recognizer) Configure(_ speech.RecognizerConfig, events speech.RecognizerEvents) {
	r.mu.Lock()
	r.events = events
	r.mu.Unlock()
}

// Start activates a run and, when an interval is configured, begins replaying
// the next scripted answer.
func (r *Recognizer) Start() error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return speech.ErrAlreadyStarted
	}
	r.active = true
	ev := r.events
	play := r.interval > 0 && len(r.script) > 0
	var answer ScriptedAnswer
	if play {
		answer = r.script[r.answerIx%len(r.script)]
		r.answerIx++
	}
	r.mu.Unlock()

	if ev.OnStart != nil {
		ev.OnStart()
	}
	if play {
		go r.replay(answer)
	}
	return nil
}

// Stop deactivates the run and reports termination through OnEnd.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	ev := r.events
	r.mu.Unlock()
	if ev.OnEnd != nil {
		ev.OnEnd()
	}
}

// Abort behaves like Stop for the scripted engine.
func (r *Recognizer) Abort() { r.Stop() }

// Active reports whether a run is in progress.
func (r *Recognizer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// replay emits the answer's interims then its final, re-delivering the full
// result list each time the way real dictation engines do.
func (r *Recognizer) replay(answer ScriptedAnswer) {
	for _, interim := range answer.Interims {
		time.Sleep(r.interval)
		if !r.FireResult([]speech.Result{{Transcript: interim}}, 0) {
			return
		}
	}
	time.Sleep(r.interval)
	r.FireResult([]speech.Result{{Transcript: answer.Final, IsFinal: true}}, 0)
}

// FireResult injects a result event. Returns false if no run is active.
func (r *Recognizer) FireResult(results []speech.Result, resultIndex int) bool {
	r.mu.Lock()
	active := r.active
	ev := r.events
	r.mu.Unlock()
	if !active || ev.OnResult == nil {
		return false
	}
	ev.OnResult(results, resultIndex)
	return true
}

// FireEnd injects an engine-initiated termination (timeout, service limit).
func (r *Recognizer) FireEnd() {
	r.mu.Lock()
	r.active = false
	ev := r.events
	r.mu.Unlock()
	if ev.OnEnd != nil {
		ev.OnEnd()
	}
}

// FireError injects an engine error without terminating the run.
func (r *Recognizer) FireError(code speech.ErrorCode) {
	r.mu.Lock()
	ev := r.events
	r.mu.Unlock()
	if ev.OnError != nil {
		ev.OnError(code)
	}
}

// Synthesizer implements speech.Synthesizer in memory. Each utterance starts
// immediately and ends after Duration, unless canceled first, in which case
// its OnError fires with reason "interrupted" the way browser engines do.
type Synthesizer struct {
	mu            sync.Mutex
	voices        []speech.Voice
	voicesChanged func()
	current       *speech.Utterance
	paused        bool

	// Duration is the simulated audible length of each utterance.
	Duration time.Duration

	// Spoken records every utterance text handed to Speak, in order.
	Spoken []string
}

// NewSynthesizer creates a mock synthesizer with a single default voice.
func NewSynthesizer(duration time.Duration) *Synthesizer {
	return &Synthesizer{
		Duration: duration,
		voices: []speech.Voice{
			{Name: "Mock English", Lang: "en-US", Default: true},
		},
	}
}

func (s *Synthesizer) Speak(u *speech.Utterance) error {
	s.mu.Lock()
	s.current = u
	s.paused = false
	s.Spoken = append(s.Spoken, u.Text)
	d := s.Duration
	s.mu.Unlock()

	if u.OnStart != nil {
		u.OnStart()
	}
	time.AfterFunc(d, func() {
		s.mu.Lock()
		done := s.current == u
		if done {
			s.current = nil
		}
		s.mu.Unlock()
		if done && u.OnEnd != nil {
			u.OnEnd()
		}
	})
	return nil
}

func (s *Synthesizer) Cancel() {
	s.mu.Lock()
	u := s.current
	s.current = nil
	s.mu.Unlock()
	if u != nil && u.OnError != nil {
		u.OnError("interrupted")
	}
}

func (s *Synthesizer) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *Synthesizer) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *Synthesizer) Voices() []speech.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]speech.Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

func (s *Synthesizer) SetVoicesChanged(fn func()) {
	s.mu.Lock()
	s.voicesChanged = fn
	s.mu.Unlock()
}

// SetVoices replaces the voice list and fires the voices-changed callback,
// simulating the asynchronous voice load of real engines.
func (s *Synthesizer) SetVoices(voices []speech.Voice) {
	s.mu.Lock()
	s.voices = voices
	fn := s.voicesChanged
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Speaking reports whether an utterance is currently active.
func (s *Synthesizer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}
