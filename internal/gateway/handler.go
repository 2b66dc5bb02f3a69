// Package gateway exposes the interview service over HTTP and WebSocket.
// Each /v1/session connection runs one interview: the browser shim forwards
// its speech engine events in, and receives engine commands plus interview
// state back.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-interview-coach-service/internal/config"
	"ai-interview-coach-service/internal/events"
	"ai-interview-coach-service/internal/history"
	"ai-interview-coach-service/internal/interview"
	"ai-interview-coach-service/internal/llm"
	"ai-interview-coach-service/internal/models"
	"ai-interview-coach-service/internal/observability"
	"ai-interview-coach-service/internal/observability/logging"
	"ai-interview-coach-service/internal/observability/metrics"
	"ai-interview-coach-service/internal/schema"
	"ai-interview-coach-service/internal/speech"
	"ai-interview-coach-service/internal/speech/googlestt"
	"ai-interview-coach-service/internal/speech/mock"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AudioSink is implemented by recognizers that consume raw audio pushed over
// the connection instead of capturing it client-side.
type AudioSink interface {
	WriteAudio(data []byte) error
}

// Gateway serves the interview API.
type Gateway struct {
	cfg       *config.Config
	llmClient llm.Client
	publisher *events.Publisher
	validator *schema.Validator
	store     *history.Store

	// newRecognizer, when non-nil, overrides the per-connection engine
	// pair. Used for the mock provider and in tests.
	newEngines func(send func(string, any) error) (speech.Recognizer, speech.Synthesizer)

	logger zerolog.Logger
}

// New constructs the gateway. An unrecognized speech provider is rejected up
// front, wrapping speech.ErrEngineUnavailable, rather than leaving every
// connection without an engine.
func New(cfg *config.Config, llmClient llm.Client, publisher *events.Publisher, store *history.Store) (*Gateway, error) {
	gw := &Gateway{
		cfg:       cfg,
		llmClient: llmClient,
		publisher: publisher,
		validator: schema.New(),
		store:     store,
		logger:    logging.WithComponent("gateway"),
	}
	switch cfg.Speech.Provider {
	case "mock":
		gw.newEngines = func(func(string, any) error) (speech.Recognizer, speech.Synthesizer) {
			return mock.NewRecognizer(mock.DefaultAnswers, 150*time.Millisecond),
				mock.NewSynthesizer(500 * time.Millisecond)
		}
	case "browser", "google":
		// Engines are built per connection in newConn.
	default:
		return nil, fmt.Errorf("speech provider %q: %w", cfg.Speech.Provider, speech.ErrEngineUnavailable)
	}
	return gw, nil
}

// Ready reports whether the gateway can take traffic.
func (gw *Gateway) Ready() bool {
	return gw.store != nil && gw.llmClient != nil
}

// Router constructs the HTTP router for the service.
func (gw *Gateway) Router() http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestLogger(metrics.DefaultMetrics))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !gw.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", gw.serveSession)
		r.Get("/interviews", gw.listInterviews)
		r.Get("/interviews/{id}", gw.getInterview)
	})

	return r
}

func (gw *Gateway) listInterviews(w http.ResponseWriter, _ *http.Request) {
	records, err := gw.store.ListInterviews()
	if err != nil {
		gw.logger.Error().Err(err).Msg("list interviews failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, records)
}

func (gw *Gateway) getInterview(w http.ResponseWriter, r *http.Request) {
	record, err := gw.store.GetInterview(chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		gw.logger.Error().Err(err).Msg("get interview failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, record)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// serveSession upgrades to WebSocket and runs one interview connection.
func (gw *Gateway) serveSession(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		gw.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConn(gw, ws, r.RemoteAddr)
	metrics.DefaultMetrics.RecordWSConnect()
	defer metrics.DefaultMetrics.RecordWSDisconnect()

	c.run()
}

// conn is one client connection with its engine proxies and controllers.
type conn struct {
	gw *Gateway
	ws *websocket.Conn

	writeMu sync.Mutex

	recognizer  speech.Recognizer
	synthesizer speech.Synthesizer
	browserRec  *browserRecognizer
	browserTTS  *browserSynthesizer

	capture  *speech.CaptureController
	playback *speech.PlaybackController

	mu      sync.Mutex
	session *interview.Session

	logger zerolog.Logger
}

func newConn(gw *Gateway, ws *websocket.Conn, remoteAddr string) *conn {
	c := &conn{
		gw:     gw,
		ws:     ws,
		logger: logging.WithConnection(uuid.NewString(), remoteAddr),
	}

	switch {
	case gw.newEngines != nil:
		c.recognizer, c.synthesizer = gw.newEngines(c.send)
	case gw.cfg.Speech.Provider == "google":
		// Server-side recognition fed by binary audio frames; synthesis
		// stays with the browser shim.
		c.browserTTS = newBrowserSynthesizer(c.send)
		c.synthesizer = c.browserTTS
		rec, err := googlestt.New(context.Background(), googlestt.DefaultConfig())
		if err != nil {
			c.logger.Warn().Err(err).Msg("google recognizer unavailable, capture disabled")
		} else {
			c.recognizer = rec
		}
	default:
		c.browserRec = newBrowserRecognizer(c.send)
		c.browserTTS = newBrowserSynthesizer(c.send)
		c.recognizer, c.synthesizer = c.browserRec, c.browserTTS
	}

	tun := speech.Tunables{
		StitchWindow:      gw.cfg.Speech.StitchWindow,
		FuzzyThreshold:    gw.cfg.Speech.FuzzyThreshold,
		SafetyCeiling:     gw.cfg.Speech.SafetyCeiling,
		SilenceGrace:      gw.cfg.Speech.SilenceGrace,
		RestartRetryDelay: gw.cfg.Speech.RestartRetryDelay,
		WatchdogInterval:  gw.cfg.Speech.WatchdogInterval,
		DispatchDelay:     gw.cfg.Speech.DispatchDelay,
	}
	c.capture = speech.NewCaptureController(c.recognizer, gw.cfg.Speech.Language, tun, c.onCaptureChange)
	c.playback = speech.NewPlaybackController(c.synthesizer, gw.cfg.Speech.VoicePreference, tun, c.onSpeakingChange)

	return c
}

// run is the connection read loop. It returns when the client disconnects.
func (c *conn) run() {
	defer func() {
		c.capture.Close()
		c.playback.CancelSpeech()
		_ = c.ws.Close()
		c.logger.Info().Msg("connection closed")
	}()

	c.logger.Info().Msg("connection opened")

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("connection read error")
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			if sink, ok := c.recognizer.(AudioSink); ok {
				if err := sink.WriteAudio(data); err != nil {
					c.logger.Warn().Err(err).Msg("audio write failed")
				}
			}
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError("malformed frame")
			continue
		}
		metrics.DefaultMetrics.RecordWSFrame("in", frame.Type)
		c.dispatch(frame)
	}
}

func (c *conn) dispatch(frame Frame) {
	switch frame.Type {
	case FrameHello:
		var p HelloPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("malformed hello")
			return
		}
		c.handleHello(p)

	case FrameBegin:
		go c.handleBegin()

	case FrameAnswerStart:
		c.handleAnswerStart()

	case FrameAnswerSubmit:
		go c.handleAnswerSubmit()

	case FrameFinish:
		go c.handleFinish()

	case FrameWebcamFrame:
		var p WebcamFramePayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("malformed webcam.frame")
			return
		}
		c.handleWebcamFrame(p)

	case FrameRecStarted:
		if c.browserRec != nil {
			c.browserRec.handleStarted()
		}

	case FrameRecResult:
		var p RecResultPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("malformed rec.result")
			return
		}
		if c.browserRec != nil {
			c.browserRec.handleResult(p)
		}

	case FrameRecEnd:
		if c.browserRec != nil {
			c.browserRec.handleEnd()
		}

	case FrameRecError:
		var p RecErrorPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("malformed rec.error")
			return
		}
		if c.browserRec != nil {
			c.browserRec.handleError(p.Code)
		}

	case FrameTTSStarted, FrameTTSEnded, FrameTTSError:
		var p TTSEventPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("malformed tts event")
			return
		}
		if c.browserTTS != nil {
			switch frame.Type {
			case FrameTTSStarted:
				c.browserTTS.handleStarted(p.ID)
			case FrameTTSEnded:
				c.browserTTS.handleEnded(p.ID)
			case FrameTTSError:
				c.browserTTS.handleError(p.ID, p.Reason)
			}
		}

	case FrameTTSVoices:
		var p VoicesPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.sendError("malformed tts.voices")
			return
		}
		if c.browserTTS != nil {
			c.browserTTS.handleVoices(p)
		}

	default:
		c.sendError("unknown frame type: " + frame.Type)
	}
}

func (c *conn) handleHello(p HelloPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.sendError("interview already open")
		return
	}
	sink := &validatedSink{publisher: c.gw.publisher, validator: c.gw.validator}
	c.session = interview.NewSession(p.Profile, c.gw.llmClient, c.capture, c.playback, sink)
	c.logger.Info().Str("sessionId", c.session.ID).Str("role", p.Profile.Role).Msg("interview session created")
}

func (c *conn) currentSession() *interview.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *conn) handleBegin() {
	s := c.currentSession()
	if s == nil {
		c.sendError("no interview open, send hello first")
		return
	}
	question, err := s.Begin(context.Background())
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.sendFrame(FrameQuestion, QuestionPayload{Turn: 1, Text: question})
}

func (c *conn) handleAnswerStart() {
	s := c.currentSession()
	if s == nil {
		c.sendError("no interview open")
		return
	}
	if err := s.StartAnswer(); err != nil {
		c.sendError(err.Error())
	}
}

func (c *conn) handleAnswerSubmit() {
	s := c.currentSession()
	if s == nil {
		c.sendError("no interview open")
		return
	}
	question, err := s.SubmitAnswer(context.Background())
	if errors.Is(err, interview.ErrTurnLimit) {
		c.handleFinish()
		return
	}
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.sendFrame(FrameQuestion, QuestionPayload{Turn: len(s.History()) + 1, Text: question})
}

func (c *conn) handleWebcamFrame(p WebcamFramePayload) {
	s := c.currentSession()
	if s == nil {
		c.sendError("no interview open")
		return
	}
	if err := s.AttachFrame(p.Image); err != nil {
		c.sendError(err.Error())
	}
}

func (c *conn) handleFinish() {
	s := c.currentSession()
	if s == nil {
		c.sendError("no interview open")
		return
	}
	record, err := s.Finish(context.Background())
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if err := c.gw.store.SaveInterview(record); err != nil {
		c.logger.Error().Err(err).Msg("interview save failed")
	}
	c.sendFrame(FrameReport, ReportPayload{Record: record})

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// onCaptureChange forwards every transcript change to the client and
// publishes it as a partial transcript event.
func (c *conn) onCaptureChange(snap speech.Snapshot) {
	c.sendFrame(FrameTranscript, TranscriptPayload{
		Listening: snap.Listening,
		Text:      snap.Transcript,
	})

	s := c.currentSession()
	if s == nil || snap.Transcript == "" {
		return
	}
	event := models.TranscriptPartial{
		EventType: "interview.transcript.partial",
		SessionID: s.ID,
		Turn:      len(s.History()) + 1,
		Timestamp: time.Now().UnixMilli(),
		Text:      snap.Transcript,
	}
	if err := c.gw.validator.Validate(event); err != nil {
		c.logger.Warn().Err(err).Msg("partial event rejected")
		return
	}
	if err := c.gw.publisher.PublishPartial(context.Background(), s.ID, event); err != nil {
		c.logger.Warn().Err(err).Msg("publish partial failed")
	}
}

func (c *conn) onSpeakingChange(speaking bool) {
	c.sendFrame(FrameSpeaking, SpeakingPayload{Speaking: speaking})
}

// send marshals and writes one frame. All writers go through here; gorilla
// connections allow only one concurrent writer.
func (c *conn) send(frameType string, payload any) error {
	frame, err := newFrame(frameType, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	metrics.DefaultMetrics.RecordWSFrame("out", frameType)
	return c.ws.WriteJSON(frame)
}

func (c *conn) sendFrame(frameType string, payload any) {
	if err := c.send(frameType, payload); err != nil {
		c.logger.Warn().Err(err).Str("frame", frameType).Msg("frame send failed")
	}
}

func (c *conn) sendError(message string) {
	c.sendFrame(FrameError, ErrorPayload{Message: message})
}

// validatedSink validates outbound events before handing them to the Kafka
// publisher.
type validatedSink struct {
	publisher *events.Publisher
	validator *schema.Validator
}

func (v *validatedSink) PublishFinal(ctx context.Context, key string, event any) error {
	if err := v.validator.Validate(event); err != nil {
		return err
	}
	return v.publisher.PublishFinal(ctx, key, event)
}

func (v *validatedSink) PublishTurn(ctx context.Context, key string, event any) error {
	if err := v.validator.Validate(event); err != nil {
		return err
	}
	return v.publisher.PublishTurn(ctx, key, event)
}
