package events

import (
	"context"
	"testing"

	"ai-interview-coach-service/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writerPartial != nil {
				t.Error("expected nil partial writer when disabled")
			}
			if p.writerFinal != nil {
				t.Error("expected nil final writer when disabled")
			}
			if p.writerTurn != nil {
				t.Error("expected nil turn writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	cfg := &Config{
		Enabled:      false,
		Brokers:      []string{"localhost:9092"},
		TopicPartial: "test.partial",
		TopicFinal:   "test.final",
		TopicTurn:    "test.turn",
		Principal:    "test-principal",
	}

	p := New(cfg)

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicPartial != "test.partial" {
		t.Errorf("expected topic partial 'test.partial', got %s", p.topicPartial)
	}
	if p.topicFinal != "test.final" {
		t.Errorf("expected topic final 'test.final', got %s", p.topicFinal)
	}
	if p.topicTurn != "test.turn" {
		t.Errorf("expected topic turn 'test.turn', got %s", p.topicTurn)
	}
}

func TestPublisher_Publish_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	event := map[string]string{"text": "test"}
	if err := p.PublishPartial(context.Background(), "test-key", event); err != nil {
		t.Errorf("partial: expected no error when disabled, got %v", err)
	}
	if err := p.PublishFinal(context.Background(), "test-key", event); err != nil {
		t.Errorf("final: expected no error when disabled, got %v", err)
	}
	if err := p.PublishTurn(context.Background(), "test-key", event); err != nil {
		t.Errorf("turn: expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// Create an unmarshalable value (channel)
	event := make(chan int)
	if err := p.PublishPartial(context.Background(), "test-key", event); err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}

func TestPublisher_Close_NilPublisher(t *testing.T) {
	p := &Publisher{
		writerPartial: nil,
		writerFinal:   nil,
		writerTurn:    nil,
	}

	err := p.Close()
	if err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}

func TestPublisher_PublishPartial_ValidEvent(t *testing.T) {
	p := New(&Config{
		Enabled:      false,
		TopicPartial: "test.partial",
		Principal:    "test-svc",
	})

	event := models.TranscriptPartial{
		EventType: "interview.transcript.partial",
		SessionID: "sess-123",
		Turn:      1,
		Text:      "hello world",
	}

	err := p.PublishPartial(context.Background(), "sess-123", event)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestPublisher_PublishTurn_ValidEvent(t *testing.T) {
	p := New(&Config{
		Enabled:   false,
		TopicTurn: "test.turn",
		Principal: "test-svc",
	})

	event := models.TurnCompleted{
		EventType: "interview.turn.completed",
		SessionID: "sess-123",
		Turn:      1,
		Question:  "tell me about yourself",
		Answer:    "I have five years of experience",
	}

	err := p.PublishTurn(context.Background(), "sess-123", event)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
