package schema

import (
	"errors"
	"testing"

	"ai-interview-coach-service/internal/models"
)

func TestValidate_TranscriptPartial(t *testing.T) {
	v := New()

	valid := models.TranscriptPartial{
		EventType: "interview.transcript.partial",
		SessionID: "sess-1",
		Timestamp: 1700000000000,
		Text:      "hello",
	}
	if err := v.Validate(valid); err != nil {
		t.Errorf("valid partial rejected: %v", err)
	}

	missing := valid
	missing.SessionID = ""
	if err := v.Validate(missing); err == nil {
		t.Error("partial without sessionId accepted")
	}
}

func TestValidate_TranscriptFinal_RequiresText(t *testing.T) {
	v := New()

	event := models.TranscriptFinal{
		EventType: "interview.transcript.final",
		SessionID: "sess-1",
		Timestamp: 1700000000000,
	}
	if err := v.Validate(event); err == nil {
		t.Error("empty final transcript accepted")
	}

	event.Text = "my answer"
	if err := v.Validate(event); err != nil {
		t.Errorf("valid final rejected: %v", err)
	}
}

func TestValidate_TurnCompleted_RequiresQuestion(t *testing.T) {
	v := New()

	event := models.TurnCompleted{
		EventType: "interview.turn.completed",
		SessionID: "sess-1",
		Timestamp: 1700000000000,
		Answer:    "an answer",
	}
	if err := v.Validate(event); err == nil {
		t.Error("turn without question accepted")
	}

	event.Question = "why this role"
	if err := v.Validate(event); err != nil {
		t.Errorf("valid turn rejected: %v", err)
	}
}

func TestValidate_UnknownEvent(t *testing.T) {
	v := New()

	err := v.Validate(struct{ X int }{1})
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
}
