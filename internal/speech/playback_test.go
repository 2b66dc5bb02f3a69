package speech

import (
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeSynth implements Synthesizer for testing. Speak fires OnStart
// synchronously; the test drives OnEnd/OnError by hand.
type fakeSynth struct {
	mu            sync.Mutex
	spoken        []*Utterance
	cancels       int
	resumes       int
	voices        []Voice
	voicesChanged func()
}

func (f *fakeSynth) Speak(u *Utterance) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, u)
	f.mu.Unlock()
	if u.OnStart != nil {
		u.OnStart()
	}
	return nil
}

func (f *fakeSynth) Cancel() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func (f *fakeSynth) Pause() {}

func (f *fakeSynth) Resume() {
	f.mu.Lock()
	f.resumes++
	f.mu.Unlock()
}

func (f *fakeSynth) Voices() []Voice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voices
}

func (f *fakeSynth) SetVoicesChanged(fn func()) {
	f.mu.Lock()
	f.voicesChanged = fn
	f.mu.Unlock()
}

func (f *fakeSynth) setVoices(v []Voice) {
	f.mu.Lock()
	f.voices = v
	fn := f.voicesChanged
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (f *fakeSynth) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	for i, u := range f.spoken {
		out[i] = u.Text
	}
	return out
}

func (f *fakeSynth) lastSpoken() *Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.spoken) == 0 {
		return nil
	}
	return f.spoken[len(f.spoken)-1]
}

func newTestPlayback(synth Synthesizer, pref []string) *PlaybackController {
	tun := testTunables()
	tun.DispatchDelay = time.Millisecond
	return NewPlaybackController(synth, pref, tun, nil)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPlayback_SpeaksSanitizedTextWithLeadingPad(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, nil)

	p.Speak("**Hello** #world")
	waitFor(t, func() bool { return synth.lastSpoken() != nil }, "utterance never dispatched")

	got := synth.lastSpoken().Text
	if !strings.HasPrefix(got, leadingPad) {
		t.Errorf("utterance %q missing leading pad", got)
	}
	if strings.ContainsAny(got, "*#") {
		t.Errorf("markup not stripped: %q", got)
	}
	if !strings.Contains(got, "Hello") || !strings.Contains(got, "world") {
		t.Errorf("words lost in sanitization: %q", got)
	}
	if !p.IsSpeaking() {
		t.Error("isSpeaking should be true after utterance start")
	}
}

func TestPlayback_EmptyAfterSanitizeDoesNothing(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, nil)

	p.Speak("***  ")
	time.Sleep(20 * time.Millisecond)
	if n := len(synth.spokenTexts()); n != 0 {
		t.Errorf("dispatched %d utterances for markup-only text, want 0", n)
	}
	if p.IsSpeaking() {
		t.Error("isSpeaking must stay false")
	}
}

func TestPlayback_SingleUtteranceInvariant(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, nil)

	p.Speak("A")
	p.Speak("B") // before A's dispatch delay elapses

	waitFor(t, func() bool { return len(synth.spokenTexts()) > 0 }, "no utterance dispatched")
	time.Sleep(20 * time.Millisecond)

	texts := synth.spokenTexts()
	if len(texts) != 1 {
		t.Fatalf("engine received %d utterances, want exactly 1: %v", len(texts), texts)
	}
	if !strings.Contains(texts[0], "B") {
		t.Errorf("surviving utterance = %q, want B", texts[0])
	}
	if !p.IsSpeaking() {
		t.Error("B should be speaking")
	}
}

func TestPlayback_SpeakCancelsAudibleUtterance(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, nil)

	p.Speak("first sentence")
	waitFor(t, p.IsSpeaking, "first utterance never started")
	first := synth.lastSpoken()

	p.Speak("second sentence")
	// The engine reports the interruption of the first utterance; this is
	// self-caused and must not disturb the new one.
	first.OnError("interrupted")

	waitFor(t, func() bool { return len(synth.spokenTexts()) == 2 }, "second utterance never dispatched")
	if !p.IsSpeaking() {
		t.Error("second utterance should be speaking")
	}
}

func TestPlayback_CancelSpeech(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, nil)

	p.Speak("something long")
	waitFor(t, p.IsSpeaking, "utterance never started")

	p.CancelSpeech()
	if p.IsSpeaking() {
		t.Error("isSpeaking must be false immediately after cancel")
	}
	synth.mu.Lock()
	cancels := synth.cancels
	synth.mu.Unlock()
	if cancels == 0 {
		t.Error("engine cancel never invoked")
	}
}

func TestPlayback_CancelStopsPendingDispatch(t *testing.T) {
	synth := &fakeSynth{}
	tun := testTunables()
	tun.DispatchDelay = 50 * time.Millisecond
	p := NewPlaybackController(synth, nil, tun, nil)

	p.Speak("never heard")
	p.CancelSpeech()
	time.Sleep(100 * time.Millisecond)

	if n := len(synth.spokenTexts()); n != 0 {
		t.Errorf("canceled utterance still dispatched %d times", n)
	}
}

func TestPlayback_GenuineErrorResetsState(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, nil)

	p.Speak("doomed")
	waitFor(t, p.IsSpeaking, "utterance never started")

	synth.lastSpoken().OnError("synthesis-failed")
	if p.IsSpeaking() {
		t.Error("isSpeaking stuck true after engine fault")
	}
}

func TestPlayback_EndClearsSpeaking(t *testing.T) {
	synth := &fakeSynth{}
	var flips []bool
	var mu sync.Mutex
	tun := testTunables()
	tun.DispatchDelay = time.Millisecond
	p := NewPlaybackController(synth, nil, tun, func(speaking bool) {
		mu.Lock()
		flips = append(flips, speaking)
		mu.Unlock()
	})

	p.Speak("short reply")
	waitFor(t, p.IsSpeaking, "utterance never started")
	synth.lastSpoken().OnEnd()

	if p.IsSpeaking() {
		t.Error("isSpeaking should be false after end")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(flips) < 2 || flips[0] != true || flips[len(flips)-1] != false {
		t.Errorf("state flips = %v, want true then false", flips)
	}
}

func TestPlayback_ResumesBeforeDispatch(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, nil)

	p.Speak("wake up first")
	waitFor(t, func() bool { return len(synth.spokenTexts()) == 1 }, "utterance never dispatched")

	synth.mu.Lock()
	resumes := synth.resumes
	synth.mu.Unlock()
	if resumes == 0 {
		t.Error("engine never resumed before speak; stuck-paused state not masked")
	}
}

func TestPlayback_VoicePreference(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, []string{"Google US English", "Samantha"})

	// Voices load asynchronously after engine init.
	synth.setVoices([]Voice{
		{Name: "Aurelie", Lang: "fr-FR"},
		{Name: "Samantha", Lang: "en-US"},
	})

	p.Speak("bonjour")
	waitFor(t, func() bool { return synth.lastSpoken() != nil }, "utterance never dispatched")
	u := synth.lastSpoken()
	if u.Voice == nil || u.Voice.Name != "Samantha" {
		t.Errorf("voice = %+v, want Samantha", u.Voice)
	}
}

func TestPlayback_VoiceFallbackToEnglish(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, []string{"Missing Voice"})
	synth.setVoices([]Voice{
		{Name: "Aurelie", Lang: "fr-FR"},
		{Name: "Daniel", Lang: "en-GB"},
	})

	p.Speak("hello")
	waitFor(t, func() bool { return synth.lastSpoken() != nil }, "utterance never dispatched")
	u := synth.lastSpoken()
	if u.Voice == nil || u.Voice.Name != "Daniel" {
		t.Errorf("voice = %+v, want en fallback Daniel", u.Voice)
	}
}

func TestPlayback_UtteranceStateLifecycle(t *testing.T) {
	synth := &fakeSynth{}
	p := newTestPlayback(synth, nil)

	p.Speak("first")
	waitFor(t, p.IsSpeaking, "first utterance never started")
	first := synth.lastSpoken()
	if first.State != UtteranceSpeaking {
		t.Errorf("state while audible = %v, want SPEAKING", first.State)
	}

	first.OnEnd()
	if first.State != UtteranceEnded {
		t.Errorf("state after end = %v, want ENDED", first.State)
	}

	p.Speak("second")
	waitFor(t, func() bool { return len(synth.spokenTexts()) == 2 }, "second utterance never dispatched")
	second := synth.lastSpoken()
	p.CancelSpeech()
	if second.State != UtteranceCanceled {
		t.Errorf("state after cancel = %v, want CANCELED", second.State)
	}

	p.Speak("third")
	waitFor(t, func() bool { return len(synth.spokenTexts()) == 3 }, "third utterance never dispatched")
	third := synth.lastSpoken()
	third.OnError("synthesis-failed")
	if third.State != UtteranceErrored {
		t.Errorf("state after engine fault = %v, want ERRORED", third.State)
	}
}

func TestPlayback_NilSynthesizerTolerated(t *testing.T) {
	p := newTestPlayback(nil, nil)
	p.Speak("into the void")
	p.CancelSpeech()
	if p.IsSpeaking() {
		t.Error("nil synthesizer cannot be speaking")
	}
}
