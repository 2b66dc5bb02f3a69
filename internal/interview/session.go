// Package interview orchestrates a mock interview: the interviewer asks a
// question aloud, the candidate answers by voice, and the reconciled answer
// feeds the next question. Finishing produces a structured feedback report.
package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ai-interview-coach-service/internal/llm"
	"ai-interview-coach-service/internal/models"
	"ai-interview-coach-service/internal/observability/logging"
	"ai-interview-coach-service/internal/observability/metrics"
)

// Capturer is the slice of the capture controller the session drives.
type Capturer interface {
	StartListening()
	StopListening()
	ResetTranscript()
	Transcript() string
	IsListening() bool
	WasRescued() bool
}

// Speaker is the slice of the playback controller the session drives.
type Speaker interface {
	Speak(text string)
	CancelSpeech()
	IsSpeaking() bool
}

// EventSink receives interview lifecycle events for downstream consumers.
// The Kafka publisher satisfies it; a nil sink disables publishing.
type EventSink interface {
	PublishFinal(ctx context.Context, key string, event any) error
	PublishTurn(ctx context.Context, key string, event any) error
}

var (
	ErrNoAnswer   = errors.New("no answer captured")
	ErrNotStarted = errors.New("interview not started")
	ErrInProgress = errors.New("interview already in progress")
	ErrLLMTimeout = errors.New("interviewer timed out")
	ErrTurnLimit  = errors.New("turn limit reached")
)

const (
	llmTimeout     = 30 * time.Second
	maxTurnsPerRun = 20
)

// Session is one mock interview. Methods are safe for concurrent use; the
// gateway calls them from its read loop while capture callbacks arrive from
// engine goroutines.
type Session struct {
	ID string

	mu           sync.Mutex
	profile      models.Profile
	started      bool
	finished     bool
	turn         int
	question     string
	askedAt      time.Time
	history      []models.Exchange
	startAt      time.Time
	pendingImage string

	client   llm.Client
	capture  Capturer
	playback Speaker
	sink     EventSink

	logger zerolog.Logger
}

// NewSession creates an interview session for the given candidate profile.
func NewSession(profile models.Profile, client llm.Client, capture Capturer, playback Speaker, sink EventSink) *Session {
	id := uuid.NewString()
	return &Session{
		ID:       id,
		profile:  profile,
		client:   client,
		capture:  capture,
		playback: playback,
		sink:     sink,
		logger:   logging.WithSession(id),
	}
}

// Begin asks the opening question. It speaks the question aloud and returns
// its text for display.
func (s *Session) Begin(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return "", ErrInProgress
	}
	s.started = true
	s.startAt = time.Now()
	s.mu.Unlock()

	question, err := s.nextQuestion(ctx)
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return "", err
	}

	metrics.DefaultMetrics.RecordInterviewStarted()
	s.logger.Info().Str("role", s.profile.Role).Msg("interview started")

	s.ask(question)
	return question, nil
}

// StartAnswer opens the microphone for the candidate's reply. Any speech
// still playing is cut off so the engine does not transcribe the interviewer.
func (s *Session) StartAnswer() error {
	s.mu.Lock()
	if !s.started || s.finished {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.mu.Unlock()

	s.playback.CancelSpeech()
	s.capture.StartListening()
	return nil
}

// AttachFrame stores a webcam still to accompany the answer in progress. The
// frame travels with the exchange on the next SubmitAnswer, giving the model
// vision context for its follow-up. A raw base64 payload is wrapped as a JPEG
// data URL; a later frame replaces an earlier one within the same turn.
func (s *Session) AttachFrame(image string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.finished {
		return ErrNotStarted
	}
	if image != "" && !strings.HasPrefix(image, "data:") {
		image = "data:image/jpeg;base64," + image
	}
	s.pendingImage = image
	return nil
}

// SubmitAnswer closes the microphone, takes the reconciled transcript as the
// answer to the current question and asks the next one. The returned string
// is the next question.
func (s *Session) SubmitAnswer(ctx context.Context) (string, error) {
	s.mu.Lock()
	if !s.started || s.finished {
		s.mu.Unlock()
		return "", ErrNotStarted
	}
	question := s.question
	askedAt := s.askedAt
	s.mu.Unlock()

	s.capture.StopListening()
	answer := strings.TrimSpace(s.capture.Transcript())
	if answer == "" {
		return "", ErrNoAnswer
	}
	rescued := s.capture.WasRescued()

	s.mu.Lock()
	s.turn++
	turn := s.turn
	s.history = append(s.history, models.Exchange{
		Turn:     turn,
		Question: question,
		Answer:   answer,
		Image:    s.pendingImage,
		AskedAt:  askedAt,
	})
	s.pendingImage = ""
	s.mu.Unlock()

	s.capture.ResetTranscript()
	s.publishTurn(ctx, turn, question, answer, askedAt, rescued)
	metrics.DefaultMetrics.RecordTurnCompleted(time.Since(askedAt).Seconds())
	turnLogger := logging.WithTurn(s.ID, turn)
	turnLogger.Info().Int("answerLen", len(answer)).Msg("turn completed")

	if turn >= maxTurnsPerRun {
		return "", ErrTurnLimit
	}

	next, err := s.nextQuestion(ctx)
	if err != nil {
		return "", err
	}
	s.ask(next)
	return next, nil
}

// Finish ends the interview and produces the feedback report. The record of
// the whole interview, report included, is returned for persistence.
func (s *Session) Finish(ctx context.Context) (*models.InterviewRecord, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	if s.finished {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	s.finished = true
	history := make([]models.Exchange, len(s.history))
	copy(history, s.history)
	startAt := s.startAt
	s.mu.Unlock()

	s.capture.StopListening()
	s.playback.CancelSpeech()

	report, err := s.generateReport(ctx, history)
	if err != nil {
		s.logger.Warn().Err(err).Msg("report generation failed")
	}

	record := &models.InterviewRecord{
		ID:         s.ID,
		Profile:    s.profile,
		Exchanges:  history,
		Report:     report,
		StartedAt:  startAt,
		FinishedAt: time.Now(),
	}

	metrics.DefaultMetrics.RecordInterviewCompleted()
	s.logger.Info().Int("turns", len(history)).Msg("interview finished")
	return record, nil
}

// Transcript returns the live transcript of the answer in progress.
func (s *Session) Transcript() string {
	return s.capture.Transcript()
}

// History returns the completed exchanges so far.
func (s *Session) History() []models.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Exchange, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) ask(question string) {
	s.mu.Lock()
	s.question = question
	s.askedAt = time.Now()
	s.mu.Unlock()
	s.playback.Speak(question)
}

// nextQuestion asks the model for the next interviewer line based on the
// exchanges so far.
func (s *Session) nextQuestion(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	req := llm.Request{
		SystemPrompt: s.systemPrompt(),
		Messages:     s.conversation(),
		Temperature:  0.7,
		MaxTokens:    512,
	}
	reply, err := s.client.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrLLMTimeout
		}
		return "", fmt.Errorf("next question: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("next question: empty reply")
	}
	return reply, nil
}

func (s *Session) generateReport(ctx context.Context, history []models.Exchange) (*models.Report, error) {
	if len(history) == 0 {
		return nil, ErrNoAnswer
	}

	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	var b strings.Builder
	for _, e := range history {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n", e.Turn, e.Question, e.Turn, e.Answer)
	}
	req := llm.Request{
		SystemPrompt: "You are an interview coach. Given the interview transcript, return a JSON object with fields " +
			`"summary" (string), "strengths" (array of strings), "weaknesses" (array of strings) and "score" (integer 1-10).`,
		Messages:     []llm.Message{{Role: "user", Content: b.String()}},
		MaxTokens:    1024,
		JSONResponse: true,
	}
	reply, err := s.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal([]byte(reply), &report); err != nil {
		return nil, fmt.Errorf("report: decode: %w", err)
	}
	return &report, nil
}

func (s *Session) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a professional interviewer running a mock interview. ")
	fmt.Fprintf(&b, "The candidate is applying for the role of %s", s.profile.Role)
	if s.profile.ExperienceYrs > 0 {
		fmt.Fprintf(&b, " with %d years of experience", s.profile.ExperienceYrs)
	}
	b.WriteString(". Ask one question at a time. Keep questions concise and conversational, ")
	b.WriteString("since they are read aloud. Never answer for the candidate.")
	if s.profile.JobDescription != "" {
		b.WriteString("\n\nJob description:\n")
		b.WriteString(s.profile.JobDescription)
	}
	if s.profile.Resume != "" {
		b.WriteString("\n\nCandidate resume:\n")
		b.WriteString(s.profile.Resume)
	}
	return b.String()
}

// conversation renders the exchange history as chat messages.
func (s *Session) conversation() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []llm.Message
	for _, e := range s.history {
		msgs = append(msgs, llm.Message{Role: "assistant", Content: e.Question})
		msgs = append(msgs, llm.Message{Role: "user", Content: e.Answer, Image: e.Image})
	}
	if len(msgs) == 0 {
		msgs = append(msgs, llm.Message{Role: "user", Content: "I am ready, please begin the interview."})
	}
	return msgs
}

func (s *Session) publishTurn(ctx context.Context, turn int, question, answer string, askedAt time.Time, rescued bool) {
	if s.sink == nil {
		return
	}
	now := time.Now()
	final := models.TranscriptFinal{
		EventType: "interview.transcript.final",
		SessionID: s.ID,
		Turn:      turn,
		Timestamp: now.UnixMilli(),
		Text:      answer,
		Rescued:   rescued,
	}
	if err := s.sink.PublishFinal(ctx, s.ID, final); err != nil {
		s.logger.Warn().Err(err).Msg("publish final transcript failed")
	}
	event := models.TurnCompleted{
		EventType:  "interview.turn.completed",
		SessionID:  s.ID,
		Turn:       turn,
		Timestamp:  now.UnixMilli(),
		Question:   question,
		Answer:     answer,
		DurationMs: now.Sub(askedAt).Milliseconds(),
	}
	if err := s.sink.PublishTurn(ctx, s.ID, event); err != nil {
		s.logger.Warn().Err(err).Msg("publish turn failed")
	}
}
