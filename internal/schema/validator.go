// Package schema validates outbound event payloads before publishing.
package schema

import (
	"errors"
	"fmt"

	"ai-interview-coach-service/internal/models"
)

var ErrUnknownEvent = errors.New("unknown event type")

type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate checks that an outbound event carries the fields consumers rely
// on. Unknown event shapes are rejected rather than silently published.
func (v *Validator) Validate(event any) error {
	switch e := event.(type) {
	case models.TranscriptPartial:
		return validateCommon(e.EventType, e.SessionID, e.Timestamp)
	case models.TranscriptFinal:
		if e.Text == "" {
			return errors.New("final transcript must not be empty")
		}
		return validateCommon(e.EventType, e.SessionID, e.Timestamp)
	case models.TurnCompleted:
		if e.Question == "" {
			return errors.New("turn event missing question")
		}
		return validateCommon(e.EventType, e.SessionID, e.Timestamp)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}

func validateCommon(eventType, sessionID string, timestamp int64) error {
	if eventType == "" {
		return errors.New("event missing eventType")
	}
	if sessionID == "" {
		return errors.New("event missing sessionId")
	}
	if timestamp <= 0 {
		return errors.New("event missing timestamp")
	}
	return nil
}
