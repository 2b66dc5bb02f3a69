package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"ai-interview-coach-service/internal/llm"
	"ai-interview-coach-service/internal/models"
)

// fakeLLM replies with scripted lines in order, then repeats the last one.
type fakeLLM struct {
	mu       sync.Mutex
	replies  []string
	requests []llm.Request
	err      error
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

type fakeCapture struct {
	mu         sync.Mutex
	listening  bool
	transcript string
	rescued    bool
	resets     int
}

func (f *fakeCapture) StartListening() {
	f.mu.Lock()
	f.listening = true
	f.mu.Unlock()
}

func (f *fakeCapture) StopListening() {
	f.mu.Lock()
	f.listening = false
	f.mu.Unlock()
}

func (f *fakeCapture) ResetTranscript() {
	f.mu.Lock()
	f.transcript = ""
	f.resets++
	f.mu.Unlock()
}

func (f *fakeCapture) Transcript() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcript
}

func (f *fakeCapture) IsListening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listening
}

func (f *fakeCapture) WasRescued() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rescued
}

func (f *fakeCapture) setRescued(v bool) {
	f.mu.Lock()
	f.rescued = v
	f.mu.Unlock()
}

func (f *fakeCapture) setTranscript(text string) {
	f.mu.Lock()
	f.transcript = text
	f.mu.Unlock()
}

type fakeSpeaker struct {
	mu      sync.Mutex
	spoken  []string
	cancels int
}

func (f *fakeSpeaker) Speak(text string) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
}

func (f *fakeSpeaker) CancelSpeech() {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
}

func (f *fakeSpeaker) IsSpeaking() bool { return false }

type recordedEvents struct {
	mu     sync.Mutex
	finals []any
	turns  []any
}

func (r *recordedEvents) PublishFinal(_ context.Context, _ string, event any) error {
	r.mu.Lock()
	r.finals = append(r.finals, event)
	r.mu.Unlock()
	return nil
}

func (r *recordedEvents) PublishTurn(_ context.Context, _ string, event any) error {
	r.mu.Lock()
	r.turns = append(r.turns, event)
	r.mu.Unlock()
	return nil
}

func testProfile() models.Profile {
	return models.Profile{Role: "backend engineer", ExperienceYrs: 5}
}

func TestSession_BeginAsksAndSpeaksOpeningQuestion(t *testing.T) {
	model := &fakeLLM{replies: []string{"Tell me about yourself."}}
	cap := &fakeCapture{}
	spk := &fakeSpeaker{}
	s := NewSession(testProfile(), model, cap, spk, nil)

	q, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if q != "Tell me about yourself." {
		t.Errorf("question = %q", q)
	}
	if len(spk.spoken) != 1 || spk.spoken[0] != q {
		t.Errorf("question not spoken: %v", spk.spoken)
	}
	if len(model.requests) != 1 {
		t.Fatalf("expected 1 LLM request, got %d", len(model.requests))
	}
	if !strings.Contains(model.requests[0].SystemPrompt, "backend engineer") {
		t.Error("system prompt missing role")
	}
}

func TestSession_BeginTwiceFails(t *testing.T) {
	model := &fakeLLM{replies: []string{"Q1"}}
	s := NewSession(testProfile(), model, &fakeCapture{}, &fakeSpeaker{}, nil)

	if _, err := s.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := s.Begin(context.Background()); !errors.Is(err, ErrInProgress) {
		t.Errorf("second Begin err = %v, want ErrInProgress", err)
	}
}

func TestSession_BeginFailureIsRetryable(t *testing.T) {
	model := &fakeLLM{err: errors.New("boom")}
	s := NewSession(testProfile(), model, &fakeCapture{}, &fakeSpeaker{}, nil)

	if _, err := s.Begin(context.Background()); err == nil {
		t.Fatal("expected error from failing model")
	}

	model.mu.Lock()
	model.err = nil
	model.replies = []string{"Q1"}
	model.mu.Unlock()

	if _, err := s.Begin(context.Background()); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestSession_AnswerFlow(t *testing.T) {
	model := &fakeLLM{replies: []string{"Q1", "Q2"}}
	cap := &fakeCapture{}
	spk := &fakeSpeaker{}
	sink := &recordedEvents{}
	s := NewSession(testProfile(), model, cap, spk, sink)

	if _, err := s.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.StartAnswer(); err != nil {
		t.Fatalf("StartAnswer: %v", err)
	}
	if !cap.IsListening() {
		t.Error("capture not listening after StartAnswer")
	}
	if spk.cancels == 0 {
		t.Error("interviewer speech not cut off when answer starts")
	}

	cap.setTranscript("I have five years of experience")
	next, err := s.SubmitAnswer(context.Background())
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if next != "Q2" {
		t.Errorf("next question = %q", next)
	}
	if cap.IsListening() {
		t.Error("capture still listening after SubmitAnswer")
	}
	if cap.resets != 1 {
		t.Errorf("transcript resets = %d, want 1", cap.resets)
	}

	history := s.History()
	if len(history) != 1 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Question != "Q1" || history[0].Answer != "I have five years of experience" {
		t.Errorf("history[0] = %+v", history[0])
	}

	if len(sink.finals) != 1 || len(sink.turns) != 1 {
		t.Errorf("events published: finals=%d turns=%d, want 1 each", len(sink.finals), len(sink.turns))
	}
	turn, ok := sink.turns[0].(models.TurnCompleted)
	if !ok {
		t.Fatalf("turn event type %T", sink.turns[0])
	}
	if turn.Question != "Q1" || turn.Turn != 1 {
		t.Errorf("turn event = %+v", turn)
	}
}

func TestSession_RescuedAnswerFlaggedInFinalEvent(t *testing.T) {
	model := &fakeLLM{replies: []string{"Q1", "Q2"}}
	cap := &fakeCapture{}
	sink := &recordedEvents{}
	s := NewSession(testProfile(), model, cap, &fakeSpeaker{}, sink)

	s.Begin(context.Background())
	s.StartAnswer()
	cap.setTranscript("answer cut off mid word")
	cap.setRescued(true)
	if _, err := s.SubmitAnswer(context.Background()); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	final, ok := sink.finals[0].(models.TranscriptFinal)
	if !ok {
		t.Fatalf("final event type %T", sink.finals[0])
	}
	if !final.Rescued {
		t.Error("rescued flag lost between capture and final event")
	}

	// A cleanly finalized answer must not inherit the flag.
	s.StartAnswer()
	cap.setTranscript("clean answer")
	cap.setRescued(false)
	if _, err := s.SubmitAnswer(context.Background()); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	final = sink.finals[1].(models.TranscriptFinal)
	if final.Rescued {
		t.Error("rescued flag set for a cleanly finalized answer")
	}
}

func TestSession_WebcamFrameTravelsWithAnswer(t *testing.T) {
	model := &fakeLLM{replies: []string{"Q1", "Q2", "Q3"}}
	cap := &fakeCapture{}
	s := NewSession(testProfile(), model, cap, &fakeSpeaker{}, nil)

	if err := s.AttachFrame("abc"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("AttachFrame before Begin err = %v, want ErrNotStarted", err)
	}

	s.Begin(context.Background())
	s.StartAnswer()
	if err := s.AttachFrame("abc123"); err != nil {
		t.Fatalf("AttachFrame: %v", err)
	}
	cap.setTranscript("here is my whiteboard")
	if _, err := s.SubmitAnswer(context.Background()); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	want := "data:image/jpeg;base64,abc123"
	history := s.History()
	if history[0].Image != want {
		t.Errorf("exchange image = %q, want %q", history[0].Image, want)
	}

	// The follow-up request carries the image on the answer it belongs to.
	model.mu.Lock()
	last := model.requests[len(model.requests)-1]
	model.mu.Unlock()
	var sawImage bool
	for _, m := range last.Messages {
		if m.Role == "user" && m.Image == want {
			sawImage = true
		}
	}
	if !sawImage {
		t.Errorf("image missing from conversation: %+v", last.Messages)
	}

	// The frame belongs to one turn only.
	s.StartAnswer()
	cap.setTranscript("second answer")
	if _, err := s.SubmitAnswer(context.Background()); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if img := s.History()[1].Image; img != "" {
		t.Errorf("image leaked into next turn: %q", img)
	}
}

func TestSession_AttachFrameKeepsDataURL(t *testing.T) {
	model := &fakeLLM{replies: []string{"Q1"}}
	s := NewSession(testProfile(), model, &fakeCapture{}, &fakeSpeaker{}, nil)
	s.Begin(context.Background())

	url := "data:image/png;base64,xyz"
	if err := s.AttachFrame(url); err != nil {
		t.Fatalf("AttachFrame: %v", err)
	}
	s.mu.Lock()
	got := s.pendingImage
	s.mu.Unlock()
	if got != url {
		t.Errorf("pending image = %q, want untouched %q", got, url)
	}
}

func TestSession_SubmitWithoutSpeechFails(t *testing.T) {
	model := &fakeLLM{replies: []string{"Q1"}}
	cap := &fakeCapture{}
	s := NewSession(testProfile(), model, cap, &fakeSpeaker{}, nil)

	if _, err := s.Begin(context.Background()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.StartAnswer(); err != nil {
		t.Fatalf("StartAnswer: %v", err)
	}
	if _, err := s.SubmitAnswer(context.Background()); !errors.Is(err, ErrNoAnswer) {
		t.Errorf("err = %v, want ErrNoAnswer", err)
	}
}

func TestSession_ContextCarriesHistory(t *testing.T) {
	model := &fakeLLM{replies: []string{"Q1", "Q2", "Q3"}}
	cap := &fakeCapture{}
	s := NewSession(testProfile(), model, cap, &fakeSpeaker{}, nil)

	s.Begin(context.Background())
	s.StartAnswer()
	cap.setTranscript("answer one")
	s.SubmitAnswer(context.Background())
	s.StartAnswer()
	cap.setTranscript("answer two")
	s.SubmitAnswer(context.Background())

	model.mu.Lock()
	defer model.mu.Unlock()
	last := model.requests[len(model.requests)-1]
	var sawQ1, sawA1 bool
	for _, m := range last.Messages {
		if m.Content == "Q1" {
			sawQ1 = true
		}
		if m.Content == "answer one" {
			sawA1 = true
		}
	}
	if !sawQ1 || !sawA1 {
		t.Errorf("conversation missing earlier turns: %+v", last.Messages)
	}
}

func TestSession_FinishProducesReport(t *testing.T) {
	model := &fakeLLM{replies: []string{
		"Q1",
		"Q2",
		`{"summary":"solid","strengths":["clear"],"weaknesses":["terse"],"score":7}`,
	}}
	cap := &fakeCapture{}
	s := NewSession(testProfile(), model, cap, &fakeSpeaker{}, nil)

	s.Begin(context.Background())
	s.StartAnswer()
	cap.setTranscript("an answer")
	s.SubmitAnswer(context.Background())

	record, err := s.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if record.Report == nil {
		t.Fatal("record has no report")
	}
	if record.Report.Score != 7 || record.Report.Summary != "solid" {
		t.Errorf("report = %+v", record.Report)
	}
	if len(record.Exchanges) != 1 {
		t.Errorf("record exchanges = %d", len(record.Exchanges))
	}
	if record.ID != s.ID {
		t.Errorf("record id %q != session id %q", record.ID, s.ID)
	}
}

func TestSession_FinishWithoutAnswersStillReturnsRecord(t *testing.T) {
	model := &fakeLLM{replies: []string{"Q1"}}
	s := NewSession(testProfile(), model, &fakeCapture{}, &fakeSpeaker{}, nil)

	s.Begin(context.Background())
	record, err := s.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if record.Report != nil {
		t.Error("report produced for empty interview")
	}
}

func TestSession_MethodsBeforeBeginFail(t *testing.T) {
	s := NewSession(testProfile(), &fakeLLM{}, &fakeCapture{}, &fakeSpeaker{}, nil)

	if err := s.StartAnswer(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("StartAnswer err = %v", err)
	}
	if _, err := s.SubmitAnswer(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("SubmitAnswer err = %v", err)
	}
	if _, err := s.Finish(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Finish err = %v", err)
	}
}
