// Package models defines the data structures for interview events.
package models

// TranscriptPartial represents an interim transcript update for an answer in
// progress. Text is the full visible transcript, not a delta.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Turn      int    `json:"turn"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// TranscriptFinal represents the reconciled transcript of a completed answer.
type TranscriptFinal struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Turn      int    `json:"turn"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
	Rescued   bool   `json:"rescued"`
}

// TurnCompleted represents one finished question/answer exchange.
type TurnCompleted struct {
	EventType  string `json:"eventType"`
	SessionID  string `json:"sessionId"`
	Turn       int    `json:"turn"`
	Timestamp  int64  `json:"timestamp"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	DurationMs int64  `json:"durationMs"`
}
