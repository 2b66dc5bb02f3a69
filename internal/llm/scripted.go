package llm

import (
	"context"
	"fmt"
)

// Scripted is a canned interviewer used when no API key is configured. It
// walks a fixed question list and produces a neutral report, which is enough
// to exercise the full voice loop in development.
type Scripted struct {
	questions []string
}

// NewScripted returns a scripted client with a generic question set.
func NewScripted() *Scripted {
	return &Scripted{
		questions: []string{
			"Tell me about yourself and your background.",
			"Why are you interested in this role?",
			"Describe a challenging project you worked on recently.",
			"How do you handle disagreements within your team?",
			"Where do you see yourself in five years?",
		},
	}
}

func (s *Scripted) Complete(_ context.Context, req Request) (string, error) {
	if req.JSONResponse {
		return `{"summary":"Practice session completed. Configure an API key for real feedback.",` +
			`"strengths":["completed the interview"],"weaknesses":[],"score":5}`, nil
	}

	// One assistant message already exists per asked question.
	asked := 0
	for _, m := range req.Messages {
		if m.Role == "assistant" {
			asked++
		}
	}
	if asked < len(s.questions) {
		return s.questions[asked], nil
	}
	return fmt.Sprintf("We have covered my %d prepared questions. Is there anything you would like to revisit?",
		len(s.questions)), nil
}
