// Package googlestt adapts Google Cloud Speech-to-Text streaming recognition
// to the capture engine interface. Audio arrives from the client as binary
// frames and is forwarded into the active stream; results come back as the
// cumulative result lists the capture controller expects.
package googlestt

import (
	"context"
	"errors"
	"io"
	"sync"

	gspeech "cloud.google.com/go/speech/apiv1"
	"github.com/rs/zerolog"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"ai-interview-coach-service/internal/observability/logging"
	"ai-interview-coach-service/internal/speech"
)

// Config holds streaming recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
}

// DefaultConfig returns the settings used for interview capture.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// parseAudioEncoding maps an encoding name to the API enum, falling back to
// LINEAR16 for anything unknown.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// Recognizer implements speech.Recognizer backed by a Google streaming
// recognition session per run.
type Recognizer struct {
	client *gspeech.Client
	cfg    Config

	mu     sync.Mutex
	events speech.RecognizerEvents
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	active bool

	logger zerolog.Logger
}

// New creates a Google STT recognizer.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Recognizer, error) {
	c, err := gspeech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.LanguageCode == "" {
		cfg = DefaultConfig()
	}
	return &Recognizer{
		client: c,
		cfg:    cfg,
		logger: logging.WithComponent("googlestt"),
	}, nil
}

func (r *Recognizer) Configure(cfg speech.RecognizerConfig, events speech.RecognizerEvents) {
	r.mu.Lock()
	if cfg.Language != "" {
		r.cfg.LanguageCode = cfg.Language
	}
	r.cfg.InterimResults = cfg.InterimResults
	r.events = events
	r.mu.Unlock()
}

// Start opens a new streaming recognition run and sends the initial config.
func (r *Recognizer) Start() error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return speech.ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := r.client.StreamingRecognize(ctx)
	if err != nil {
		cancel()
		r.mu.Unlock()
		return err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(r.cfg.AudioEncoding),
					SampleRateHertz: r.cfg.SampleRateHz,
					LanguageCode:    r.cfg.LanguageCode,
				},
				InterimResults: r.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		r.mu.Unlock()
		return err
	}

	r.stream = stream
	r.cancel = cancel
	r.active = true
	ev := r.events
	r.mu.Unlock()

	if ev.OnStart != nil {
		ev.OnStart()
	}
	go r.listen(stream)
	return nil
}

// Stop half-closes the stream; the run ends when the server finishes
// returning results.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	stream := r.stream
	r.mu.Unlock()
	if stream != nil {
		_ = stream.CloseSend()
	}
}

// Abort tears the run down immediately.
func (r *Recognizer) Abort() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// WriteAudio forwards raw audio into the active run. Satisfies the gateway's
// audio sink so binary frames reach the stream.
func (r *Recognizer) WriteAudio(data []byte) error {
	r.mu.Lock()
	stream := r.stream
	active := r.active
	r.mu.Unlock()
	if !active || stream == nil {
		return errors.New("googlestt: no active run")
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	})
}

// Close releases the underlying API client.
func (r *Recognizer) Close() error {
	r.Abort()
	return r.client.Close()
}

// listen pumps one run's responses into engine events. Finals accumulate
// across the run; each event re-delivers the full list the way the capture
// side expects.
func (r *Recognizer) listen(stream speechpb.Speech_StreamingRecognizeClient) {
	var finals []speech.Result

	for {
		resp, err := stream.Recv()
		if err != nil {
			r.finish(stream, err)
			return
		}

		r.mu.Lock()
		ev := r.events
		r.mu.Unlock()

		changed := len(finals)
		var interim string
		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			alt := result.Alternatives[0]
			if result.IsFinal {
				finals = append(finals, speech.Result{Transcript: alt.Transcript, IsFinal: true})
			} else if interim == "" {
				interim = alt.Transcript
			}
		}

		results := make([]speech.Result, len(finals), len(finals)+1)
		copy(results, finals)
		if interim != "" {
			results = append(results, speech.Result{Transcript: interim})
		}
		if ev.OnResult != nil && len(results) > 0 {
			ev.OnResult(results, changed)
		}
	}
}

// finish translates the stream's terminal error into engine events and marks
// the run over.
func (r *Recognizer) finish(stream speechpb.Speech_StreamingRecognizeClient, err error) {
	r.mu.Lock()
	if r.stream != stream {
		r.mu.Unlock()
		return // a newer run already replaced this one
	}
	r.active = false
	r.stream = nil
	cancel := r.cancel
	r.cancel = nil
	ev := r.events
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if code, terminal := triage(err); code != "" && ev.OnError != nil {
		ev.OnError(code)
		if terminal {
			r.logger.Warn().Err(err).Str("code", string(code)).Msg("stream terminated")
		}
	}
	if ev.OnEnd != nil {
		ev.OnEnd()
	}
}

// triage maps a terminal stream error to an engine error code. An empty code
// means a clean end of run with no error to report.
func triage(err error) (speech.ErrorCode, bool) {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return "", false
	}
	switch status.Code(err) {
	case codes.OutOfRange:
		// Stream duration limit: the engine ended the run on its own.
		return "", false
	case codes.Canceled:
		return "", false
	case codes.PermissionDenied, codes.Unauthenticated:
		return speech.ErrorNotAllowed, true
	case codes.ResourceExhausted:
		return speech.ErrorServiceNotAllowed, true
	case codes.Unavailable, codes.Aborted, codes.DeadlineExceeded, codes.Internal:
		return speech.ErrorNetwork, false
	default:
		return speech.ErrorNetwork, false
	}
}
