package speech

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ai-interview-coach-service/internal/observability/metrics"
)

// leadingPad is prepended to every utterance so that engines which clip the
// first few hundred milliseconds of audio consume inserted silence instead of
// real words.
const leadingPad = " , "

// markupStripper removes symbols that audibly disrupt prosody when a
// synthesis engine reads them out ("asterisk", "hash", ...).
var markupStripper = strings.NewReplacer(
	"*", "", "#", "", "_", " ", "`", "", "~", "",
	"<", " ", ">", " ", "|", " ", "—", ", ",
)

// PlaybackController speaks interviewer text aloud without overlapping
// speech, masking two known engine bugs: clipped audio onset and an engine
// stuck reporting paused indefinitely. At most one utterance is ever audible;
// issuing a new one cancels and discards the previous.
type PlaybackController struct {
	mu sync.Mutex

	synth Synthesizer
	tun   Tunables

	speaking bool
	current  *Utterance
	dispatch *time.Timer

	voices     []Voice
	preference []string

	onChange func(speaking bool)

	logger zerolog.Logger
}

// NewPlaybackController wires the controller to a synthesizer. A nil
// synthesizer is tolerated: Speak becomes a no-op. preference is an ordered
// list of voice names tried before falling back to a language match and then
// the engine default. onChange, when non-nil, fires on every IsSpeaking flip.
func NewPlaybackController(synth Synthesizer, preference []string, tun Tunables, onChange func(bool)) *PlaybackController {
	p := &PlaybackController{
		synth:      synth,
		tun:        tun.withDefaults(),
		preference: preference,
		onChange:   onChange,
		logger:     log.With().Str("component", "playback").Logger(),
	}
	if synth != nil {
		// Voice lists load asynchronously after engine init; request
		// eagerly and again on every change so the first Speak is not
		// working from an empty list.
		p.reloadVoices()
		synth.SetVoicesChanged(p.reloadVoices)
	}
	return p
}

// Speak cancels any in-flight utterance and speaks text. Sanitized-empty text
// does nothing. Dispatch happens after a brief delay so the cancellation can
// settle and a stuck-paused engine can be resumed first.
func (p *PlaybackController) Speak(text string) {
	if p.synth == nil {
		return
	}

	p.mu.Lock()
	wasSpeaking := p.speaking
	p.cancelLocked()
	p.mu.Unlock()
	// Outside the lock: a synchronous engine may fire the dying
	// utterance's callbacks from inside Cancel.
	p.synth.Cancel()
	if wasSpeaking {
		p.notify(false)
	}

	text = strings.TrimSpace(markupStripper.Replace(text))
	if text == "" {
		return
	}

	p.mu.Lock()
	u := &Utterance{
		Text:  leadingPad + text,
		Voice: p.pickVoiceLocked(),
		Rate:  1.0,
		Pitch: 1.0,
		State: UtteranceQueued,
	}
	u.OnStart = func() { p.utteranceStarted(u) }
	u.OnEnd = func() { p.utteranceDone(u, UtteranceEnded, "") }
	u.OnError = func(reason string) { p.utteranceFailed(u, reason) }
	p.current = u
	p.dispatch = time.AfterFunc(p.tun.DispatchDelay, func() { p.dispatchUtterance(u) })
	p.mu.Unlock()
}

// CancelSpeech cancels any in-flight or queued utterance and any pending
// dispatch timer, and forces IsSpeaking false.
func (p *PlaybackController) CancelSpeech() {
	if p.synth == nil {
		return
	}
	p.mu.Lock()
	wasSpeaking := p.speaking
	p.cancelLocked()
	p.mu.Unlock()
	p.synth.Cancel()
	if wasSpeaking {
		p.notify(false)
	}
}

// IsSpeaking reports whether an utterance is currently audible.
func (p *PlaybackController) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// cancelLocked discards the current utterance and dispatch timer. Caller
// holds the lock and must call synth.Cancel after releasing it.
func (p *PlaybackController) cancelLocked() {
	if p.dispatch != nil {
		p.dispatch.Stop()
		p.dispatch = nil
	}
	if p.current != nil {
		p.current.State = UtteranceCanceled
		metrics.DefaultMetrics.RecordUtterance("canceled")
		p.current = nil
	}
	p.speaking = false
}

func (p *PlaybackController) dispatchUtterance(u *Utterance) {
	p.mu.Lock()
	if p.current != u {
		p.mu.Unlock()
		return // superseded while waiting
	}
	p.dispatch = nil
	p.mu.Unlock()

	// Engines can wedge in a paused state after a cancel; an explicit
	// resume before speak is harmless otherwise.
	p.synth.Resume()
	if err := p.synth.Speak(u); err != nil {
		p.logger.Error().Err(err).Msg("synthesizer rejected utterance")
		p.utteranceDone(u, UtteranceErrored, err.Error())
	}
}

func (p *PlaybackController) utteranceStarted(u *Utterance) {
	p.mu.Lock()
	if p.current != u {
		p.mu.Unlock()
		return
	}
	u.State = UtteranceSpeaking
	p.speaking = true
	p.mu.Unlock()
	metrics.DefaultMetrics.RecordUtterance("started")
	p.notify(true)
}

func (p *PlaybackController) utteranceDone(u *Utterance, state UtteranceState, detail string) {
	p.mu.Lock()
	if p.current != u {
		p.mu.Unlock()
		return
	}
	u.State = state
	p.current = nil
	wasSpeaking := p.speaking
	p.speaking = false
	p.mu.Unlock()

	if state == UtteranceEnded {
		metrics.DefaultMetrics.RecordUtterance("ended")
	} else {
		metrics.DefaultMetrics.RecordUtterance("errored")
		p.logger.Warn().Str("detail", detail).Msg("utterance failed")
	}
	if wasSpeaking {
		p.notify(false)
	}
}

// utteranceFailed distinguishes self-caused cancellation (expected, silent)
// from genuine engine faults (logged, state reset so the UI is never stuck
// believing speech is ongoing).
func (p *PlaybackController) utteranceFailed(u *Utterance, reason string) {
	switch reason {
	case "canceled", "interrupted":
		p.utteranceDone(u, UtteranceCanceled, reason)
	default:
		p.utteranceDone(u, UtteranceErrored, reason)
	}
}

func (p *PlaybackController) reloadVoices() {
	voices := p.synth.Voices()
	p.mu.Lock()
	p.voices = voices
	p.mu.Unlock()
	p.logger.Debug().Int("count", len(voices)).Msg("voice list loaded")
}

// pickVoiceLocked walks the preference list, then falls back to the first
// en-* voice, then to the engine default (nil).
func (p *PlaybackController) pickVoiceLocked() *Voice {
	for _, want := range p.preference {
		for i := range p.voices {
			if p.voices[i].Name == want {
				return &p.voices[i]
			}
		}
	}
	for i := range p.voices {
		if strings.HasPrefix(p.voices[i].Lang, "en") {
			return &p.voices[i]
		}
	}
	return nil
}

func (p *PlaybackController) notify(speaking bool) {
	if p.onChange != nil {
		p.onChange(speaking)
	}
}
