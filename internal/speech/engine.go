// Package speech implements continuous voice capture and speech playback on
// top of injected recognition and synthesis engines. The capture side
// reconciles the overlapping, restarting result stream of a continuous
// dictation engine into a single de-duplicated transcript; the playback side
// owns at most one audible utterance at a time.
package speech

import (
	"errors"
	"time"
)

// Result is one entry of an engine result list. An interim result is the
// engine's current best guess for speech still being spoken and may change on
// the next event; a final result will not change again.
type Result struct {
	Transcript string
	IsFinal    bool
}

// RecognizerConfig is the engine configuration used for interview capture.
type RecognizerConfig struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// DefaultRecognizerConfig returns the configuration the capture controller
// expects from any recognizer implementation.
func DefaultRecognizerConfig(language string) RecognizerConfig {
	if language == "" {
		language = "en-US"
	}
	return RecognizerConfig{
		Continuous:     true,
		InterimResults: true,
		Language:       language,
	}
}

// RecognizerEvents receives engine callbacks. Engines re-deliver the full
// result list on every OnResult call; resultIndex marks the first entry that
// may have changed since the previous event.
type RecognizerEvents struct {
	OnStart  func()
	OnEnd    func()
	OnResult func(results []Result, resultIndex int)
	OnError  func(code ErrorCode)
}

// Recognizer is a continuous speech recognition engine. Implementations are
// session based: Start activates one engine run, which ends either on Stop or
// on the engine's own initiative (timeout, service limit). All events are
// reported through the RecognizerEvents registered with Configure.
type Recognizer interface {
	Configure(cfg RecognizerConfig, events RecognizerEvents)

	// Start activates a new engine run. Returns ErrAlreadyStarted if a run
	// is already active.
	Start() error

	// Stop requests termination of the current run. Best effort: the OnEnd
	// callback is the authority on when the run actually ended.
	Stop()

	// Abort terminates the current run immediately, discarding any audio
	// still being processed.
	Abort()
}

// Voice describes one synthesis voice offered by the engine.
type Voice struct {
	Name    string
	Lang    string
	Default bool
}

// UtteranceState tracks a synthesis request through its lifetime.
type UtteranceState int

const (
	UtteranceQueued UtteranceState = iota
	UtteranceSpeaking
	UtteranceEnded
	UtteranceCanceled
	UtteranceErrored
)

func (s UtteranceState) String() string {
	switch s {
	case UtteranceQueued:
		return "QUEUED"
	case UtteranceSpeaking:
		return "SPEAKING"
	case UtteranceEnded:
		return "ENDED"
	case UtteranceCanceled:
		return "CANCELED"
	case UtteranceErrored:
		return "ERRORED"
	}
	return "UNKNOWN"
}

// Utterance is one outgoing text-to-speech request. The playback controller
// owns at most one current utterance; issuing a new one cancels the previous.
// State is maintained by the playback controller as the utterance moves from
// queued through speaking to a terminal state.
type Utterance struct {
	Text  string
	Voice *Voice
	Rate  float64
	Pitch float64
	State UtteranceState

	OnStart func()
	OnEnd   func()
	OnError func(reason string)
}

// Synthesizer is a text-to-speech engine. Speak enqueues an utterance; Cancel
// discards anything queued or audible. Voice lists can load asynchronously,
// so callers should watch SetVoicesChanged and re-query Voices.
type Synthesizer interface {
	Speak(u *Utterance) error
	Cancel()
	Pause()
	Resume()
	Voices() []Voice
	SetVoicesChanged(fn func())
}

// ErrorCode classifies recognizer failures, mirroring the error vocabulary of
// browser dictation engines.
type ErrorCode string

const (
	ErrorNoSpeech          ErrorCode = "no-speech"
	ErrorAborted           ErrorCode = "aborted"
	ErrorAudioCapture      ErrorCode = "audio-capture"
	ErrorNetwork           ErrorCode = "network"
	ErrorNotAllowed        ErrorCode = "not-allowed"
	ErrorServiceNotAllowed ErrorCode = "service-not-allowed"
)

// Transient reports whether the code is an expected hiccup of a flaky engine
// that should be absorbed without any state change.
func (c ErrorCode) Transient() bool {
	switch c {
	case ErrorNoSpeech, ErrorAborted, ErrorNetwork:
		return true
	}
	return false
}

// Fatal reports whether the code terminates capture for good: no restart is
// attempted and the controller goes inactive.
func (c ErrorCode) Fatal() bool {
	switch c {
	case ErrorNotAllowed, ErrorServiceNotAllowed:
		return true
	}
	return false
}

// Errors shared by engine implementations.
var (
	// ErrAlreadyStarted is returned by Start when the engine considers
	// itself already running. The capture controller swallows it.
	ErrAlreadyStarted = errors.New("recognizer already started")

	// ErrEngineUnavailable is returned when the host offers no engine at
	// all. Capture simply never becomes active.
	ErrEngineUnavailable = errors.New("speech engine unavailable")
)

// Tunables groups the timing and reconciliation knobs of the speech layer.
// Zero values are replaced with defaults by the controllers.
type Tunables struct {
	// StitchWindow bounds the suffix/prefix overlap search, in words.
	StitchWindow int

	// FuzzyThreshold is the minimum Jaro-Winkler similarity for two words
	// to count as the same during stitching. Zero disables fuzzy matching
	// and requires exact (normalized) equality.
	FuzzyThreshold float64

	// SafetyCeiling is how long one engine run may last before the
	// watchdog looks for a silent moment to restart it. Continuous
	// dictation engines force-terminate near a fixed ceiling; restarting
	// during silence avoids a mid-word cutoff.
	SafetyCeiling time.Duration

	// SilenceGrace is how long the user must have been silent before the
	// watchdog restarts a run that passed the safety ceiling.
	SilenceGrace time.Duration

	// RestartRetryDelay is the wait before the single retry when
	// re-activation collides with an engine that thinks it is running.
	RestartRetryDelay time.Duration

	// WatchdogInterval is the sampling period of the safety watchdog.
	WatchdogInterval time.Duration

	// DispatchDelay is the pause between cancelling the previous
	// utterance and speaking the next, letting the cancellation settle
	// and the engine wake from a stuck-paused state.
	DispatchDelay time.Duration
}

// DefaultTunables returns the production defaults.
func DefaultTunables() Tunables {
	return Tunables{
		StitchWindow:      6,
		FuzzyThreshold:    0,
		SafetyCeiling:     55 * time.Second,
		SilenceGrace:      1500 * time.Millisecond,
		RestartRetryDelay: 250 * time.Millisecond,
		WatchdogInterval:  1 * time.Second,
		DispatchDelay:     150 * time.Millisecond,
	}
}

func (t Tunables) withDefaults() Tunables {
	d := DefaultTunables()
	if t.StitchWindow <= 0 {
		t.StitchWindow = d.StitchWindow
	}
	if t.SafetyCeiling <= 0 {
		t.SafetyCeiling = d.SafetyCeiling
	}
	if t.SilenceGrace <= 0 {
		t.SilenceGrace = d.SilenceGrace
	}
	if t.RestartRetryDelay <= 0 {
		t.RestartRetryDelay = d.RestartRetryDelay
	}
	if t.WatchdogInterval <= 0 {
		t.WatchdogInterval = d.WatchdogInterval
	}
	if t.DispatchDelay <= 0 {
		t.DispatchDelay = d.DispatchDelay
	}
	return t
}
