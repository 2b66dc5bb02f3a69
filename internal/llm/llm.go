// Package llm abstracts the language model behind the interviewer.
package llm

import "context"

// Message is one entry of a chat transcript sent to the model. Image, when
// set on a user message, is an image data URL sent as vision input alongside
// the text.
type Message struct {
	Role    string // system, user, assistant
	Content string
	Image   string
}

// Request is a single completion request.
type Request struct {
	SystemPrompt string
	Messages     []Message
	Temperature  float64
	MaxTokens    int64

	// JSONResponse forces the model to return a single JSON object, used
	// for the end-of-interview report.
	JSONResponse bool
}

// Client produces completions for the interviewer persona.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
