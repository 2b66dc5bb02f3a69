package gateway

import (
	"encoding/json"

	"ai-interview-coach-service/internal/models"
	"ai-interview-coach-service/internal/speech"
)

// Frame is the envelope for every WebSocket message in either direction.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client to server frame types. The rec.* and tts.* frames are produced by
// the browser shim, which forwards its speech engine events verbatim.
const (
	FrameHello        = "hello"
	FrameBegin        = "begin"
	FrameAnswerStart  = "answer.start"
	FrameAnswerSubmit = "answer.submit"
	FrameFinish       = "finish"
	FrameWebcamFrame  = "webcam.frame"

	FrameRecStarted = "rec.started"
	FrameRecResult  = "rec.result"
	FrameRecEnd     = "rec.end"
	FrameRecError   = "rec.error"

	FrameTTSStarted = "tts.started"
	FrameTTSEnded   = "tts.ended"
	FrameTTSError   = "tts.error"
	FrameTTSVoices  = "tts.voices"
)

// Server to client frame types. The rec.* and tts.* commands drive the
// browser shim's speech engines.
const (
	FrameQuestion   = "question"
	FrameTranscript = "transcript"
	FrameSpeaking   = "speaking"
	FrameReport     = "report"
	FrameError      = "error"

	FrameRecStart = "rec.start"
	FrameRecStop  = "rec.stop"
	FrameRecAbort = "rec.abort"

	FrameTTSSpeak  = "tts.speak"
	FrameTTSCancel = "tts.cancel"
	FrameTTSPause  = "tts.pause"
	FrameTTSResume = "tts.resume"
)

// HelloPayload opens an interview for a candidate profile.
type HelloPayload struct {
	Profile models.Profile `json:"profile"`
}

// QuestionPayload carries an interviewer question for display.
type QuestionPayload struct {
	Turn int    `json:"turn"`
	Text string `json:"text"`
}

// TranscriptPayload carries the live transcript state.
type TranscriptPayload struct {
	Listening bool   `json:"listening"`
	Text      string `json:"text"`
}

// SpeakingPayload reports whether the interviewer is audible.
type SpeakingPayload struct {
	Speaking bool `json:"speaking"`
}

// ReportPayload carries the finished interview and its feedback report.
type ReportPayload struct {
	Record *models.InterviewRecord `json:"record"`
}

// ErrorPayload reports a request failure to the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// WebcamFramePayload attaches a webcam still to the answer in progress.
// Image is base64 JPEG, with or without a data URL prefix.
type WebcamFramePayload struct {
	Image string `json:"image"`
}

// RecStartPayload configures the shim's recognition engine.
type RecStartPayload struct {
	Language       string `json:"language"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interimResults"`
}

// WireResult is the JSON form of one recognition result.
type WireResult struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
}

// RecResultPayload forwards one engine result event. Results is the full
// result list as the engine delivered it, ResultIndex the first changed slot.
type RecResultPayload struct {
	Results     []WireResult `json:"results"`
	ResultIndex int          `json:"resultIndex"`
}

func (p RecResultPayload) toResults() []speech.Result {
	out := make([]speech.Result, len(p.Results))
	for i, r := range p.Results {
		out[i] = speech.Result{Transcript: r.Transcript, IsFinal: r.IsFinal}
	}
	return out
}

// RecErrorPayload forwards an engine error code.
type RecErrorPayload struct {
	Code string `json:"code"`
}

// SpeakPayload asks the shim to speak one utterance. ID correlates the
// shim's tts.* event frames back to this utterance.
type SpeakPayload struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// TTSEventPayload reports an utterance lifecycle event from the shim.
type TTSEventPayload struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// WireVoice is the JSON form of one synthesis voice.
type WireVoice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default"`
}

// VoicesPayload forwards the shim's available synthesis voices.
type VoicesPayload struct {
	Voices []WireVoice `json:"voices"`
}

func (p VoicesPayload) toVoices() []speech.Voice {
	out := make([]speech.Voice, len(p.Voices))
	for i, v := range p.Voices {
		out[i] = speech.Voice{Name: v.Name, Lang: v.Lang, Default: v.Default}
	}
	return out
}

func newFrame(frameType string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Type: frameType}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: frameType, Payload: raw}, nil
}
