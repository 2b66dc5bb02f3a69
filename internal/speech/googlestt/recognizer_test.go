package googlestt

import (
	"context"
	"io"
	"testing"

	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-interview-coach-service/internal/speech"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
	if cfg.SampleRateHz != 8000 {
		t.Errorf("expected default sample rate 8000, got %d", cfg.SampleRateHz)
	}
	if cfg.InterimResults != true {
		t.Errorf("expected default interim results true, got %v", cfg.InterimResults)
	}
	if cfg.AudioEncoding != "LINEAR16" {
		t.Errorf("expected default encoding 'LINEAR16', got %s", cfg.AudioEncoding)
	}
}

func TestParseAudioEncoding(t *testing.T) {
	tests := []struct {
		input    string
		expected speechpb.RecognitionConfig_AudioEncoding
	}{
		{"LINEAR16", speechpb.RecognitionConfig_LINEAR16},
		{"MULAW", speechpb.RecognitionConfig_MULAW},
		{"FLAC", speechpb.RecognitionConfig_FLAC},
		{"AMR", speechpb.RecognitionConfig_AMR},
		{"AMR_WB", speechpb.RecognitionConfig_AMR_WB},
		{"OGG_OPUS", speechpb.RecognitionConfig_OGG_OPUS},
		{"SPEEX_WITH_HEADER_BYTE", speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE},
		{"WEBM_OPUS", speechpb.RecognitionConfig_WEBM_OPUS},
		{"UNKNOWN", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"invalid", speechpb.RecognitionConfig_LINEAR16}, // fallback
		{"", speechpb.RecognitionConfig_LINEAR16},        // fallback
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseAudioEncoding(tt.input)
			if got != tt.expected {
				t.Errorf("parseAudioEncoding(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTriage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     speech.ErrorCode
		terminal bool
	}{
		{"clean eof", io.EOF, "", false},
		{"context canceled", context.Canceled, "", false},
		{"duration limit", status.Error(codes.OutOfRange, "max duration"), "", false},
		{"grpc canceled", status.Error(codes.Canceled, "canceled"), "", false},
		{"permission denied", status.Error(codes.PermissionDenied, "denied"), speech.ErrorNotAllowed, true},
		{"unauthenticated", status.Error(codes.Unauthenticated, "no creds"), speech.ErrorNotAllowed, true},
		{"quota", status.Error(codes.ResourceExhausted, "quota"), speech.ErrorServiceNotAllowed, true},
		{"unavailable", status.Error(codes.Unavailable, "down"), speech.ErrorNetwork, false},
		{"aborted", status.Error(codes.Aborted, "aborted"), speech.ErrorNetwork, false},
		{"unknown", status.Error(codes.Unknown, "boom"), speech.ErrorNetwork, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, terminal := triage(tt.err)
			if code != tt.code || terminal != tt.terminal {
				t.Errorf("triage(%v) = (%q, %v), want (%q, %v)", tt.err, code, terminal, tt.code, tt.terminal)
			}
		})
	}
}

func TestTriage_FatalCodesMatchCaptureTaxonomy(t *testing.T) {
	// Codes the triage marks terminal must be the ones capture treats as
	// fatal, so a revoked credential disables restart instead of looping.
	code, _ := triage(status.Error(codes.PermissionDenied, "denied"))
	if !code.Fatal() {
		t.Errorf("permission denial maps to %q, which capture does not treat as fatal", code)
	}
	code, _ = triage(status.Error(codes.Unavailable, "down"))
	if !code.Transient() {
		t.Errorf("unavailable maps to %q, which capture does not absorb as transient", code)
	}
}
