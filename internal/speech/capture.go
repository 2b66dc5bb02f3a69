package speech

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ai-interview-coach-service/internal/observability/metrics"
)

// CaptureState is the lifecycle state of the capture controller.
type CaptureState int

const (
	// CaptureIdle - no engine run active, no restart planned.
	CaptureIdle CaptureState = iota
	// CaptureActive - an engine run is active and delivering results.
	CaptureActive
	// CaptureRestartPending - the engine terminated on its own initiative
	// and re-activation is in flight.
	CaptureRestartPending
)

func (s CaptureState) String() string {
	switch s {
	case CaptureIdle:
		return "IDLE"
	case CaptureActive:
		return "ACTIVE"
	case CaptureRestartPending:
		return "RESTART_PENDING"
	}
	return "UNKNOWN"
}

// recognitionSession holds the per-run state of the underlying engine. It is
// replaced wholesale on every (re)activation so no watermark or timestamp can
// leak across a restart.
type recognitionSession struct {
	startedAt    time.Time
	lastActivity time.Time
	seen         int // result-list watermark: entries below this index are processed
}

// Snapshot is the reactive surface exposed to the composition layer.
type Snapshot struct {
	Listening  bool
	Transcript string
}

// CaptureController presents a start/stop/reset interface over a flaky,
// session-based, auto-terminating continuous recognition engine and
// guarantees the emitted transcript has no duplicated or missing words
// despite the engine restarting arbitrarily.
//
// Almost all engine failures are absorbed and retried rather than surfaced:
// the only caller-visible failure is permission denial, which shows up as
// capture going (and staying) inactive.
type CaptureController struct {
	mu sync.Mutex

	rec Recognizer
	tun Tunables
	buf *TranscriptBuffer

	state      CaptureState
	manualStop bool
	sess       recognitionSession
	retried    bool // one re-activation retry per restart
	rescued    bool // any part of the current transcript came from a rescue

	onChange func(Snapshot)

	watchStop chan struct{}
	watchOnce sync.Once

	logger zerolog.Logger
}

// NewCaptureController wires the controller to a recognizer. A nil recognizer
// is tolerated: the controller simply never becomes active. onChange, when
// non-nil, is invoked after every externally visible state or transcript
// change, outside the controller lock.
func NewCaptureController(rec Recognizer, language string, tun Tunables, onChange func(Snapshot)) *CaptureController {
	tun = tun.withDefaults()
	c := &CaptureController{
		rec:       rec,
		tun:       tun,
		buf:       NewTranscriptBuffer(tun.StitchWindow, tun.FuzzyThreshold),
		onChange:  onChange,
		watchStop: make(chan struct{}),
		logger:    log.With().Str("component", "capture").Logger(),
	}
	if rec != nil {
		rec.Configure(DefaultRecognizerConfig(language), RecognizerEvents{
			OnStart:  c.handleStart,
			OnEnd:    c.handleEnd,
			OnResult: c.handleResult,
			OnError:  c.handleError,
		})
		go c.watchdog()
	}
	return c
}

// Close stops the safety watchdog. It does not touch the engine.
func (c *CaptureController) Close() {
	c.watchOnce.Do(func() { close(c.watchStop) })
}

// StartListening clears the transcript and session state and activates the
// engine. Idempotent against an already-active engine: an activation
// collision is swallowed, not surfaced.
func (c *CaptureController) StartListening() {
	c.mu.Lock()
	c.buf.Reset()
	c.sess = recognitionSession{}
	c.manualStop = false
	c.rescued = false
	rec := c.rec
	c.mu.Unlock()
	c.notify()

	if rec == nil {
		c.logger.Warn().Msg("no recognition engine available, capture stays inactive")
		return
	}

	metrics.DefaultMetrics.RecordCaptureStart()
	if err := rec.Start(); err != nil {
		if errors.Is(err, ErrAlreadyStarted) {
			// Engine was still running from a previous turn; keep it.
			c.mu.Lock()
			if c.state == CaptureIdle {
				c.state = CaptureActive
				c.sess = newSession()
			}
			c.mu.Unlock()
			c.notify()
			return
		}
		c.logger.Error().Err(err).Msg("failed to start recognition engine")
	}
}

// StopListening marks intent as manually stopped and deactivates the engine.
// Outstanding interim text is committed immediately so an answer cut off by
// the user's own stop action keeps its trailing words; the engine's OnEnd
// callback remains the authority on when the run actually terminated.
func (c *CaptureController) StopListening() {
	c.mu.Lock()
	c.manualStop = true
	rescued := c.buf.Rescue()
	if rescued {
		c.rescued = true
	}
	rec := c.rec
	c.mu.Unlock()

	if rescued {
		metrics.DefaultMetrics.RecordRescue("manual_stop")
		c.notify()
	}
	if rec != nil {
		rec.Stop()
	}
}

// ResetTranscript clears the buffer without touching engine activation state.
func (c *CaptureController) ResetTranscript() {
	c.mu.Lock()
	c.buf.Reset()
	c.rescued = false
	c.mu.Unlock()
	c.notify()
}

// SetTranscript overrides the transcript, e.g. after a manual edit in the UI.
func (c *CaptureController) SetTranscript(text string) {
	c.mu.Lock()
	c.buf.Set(text)
	c.mu.Unlock()
	c.notify()
}

// Transcript returns the live transcript: committed plus pending text.
func (c *CaptureController) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// IsListening reports whether capture is active. A restart in flight still
// counts as listening; only an abandoned restart or a manual stop goes idle.
func (c *CaptureController) IsListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != CaptureIdle
}

// State returns the controller state, for tests and diagnostics.
func (c *CaptureController) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// WasRescued reports whether any part of the current transcript was rescued
// from interim text during a stop or restart rather than finalized by the
// engine. Cleared when the transcript is cleared.
func (c *CaptureController) WasRescued() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rescued
}

func newSession() recognitionSession {
	now := time.Now()
	return recognitionSession{startedAt: now, lastActivity: now}
}

func (c *CaptureController) handleStart() {
	c.mu.Lock()
	c.state = CaptureActive
	c.sess = newSession()
	c.retried = false
	c.mu.Unlock()

	metrics.DefaultMetrics.RecordSessionStarted()
	c.logger.Debug().Msg("recognition session started")
	c.notify()
}

// handleResult reconciles one engine result event into the buffer. Engines
// re-deliver the full result list every time; the session watermark keeps
// already-committed finals from being appended twice, and the interim slot is
// replaced wholesale with whatever is in flight now.
func (c *CaptureController) handleResult(results []Result, resultIndex int) {
	c.mu.Lock()
	if c.state == CaptureIdle {
		c.mu.Unlock()
		return
	}
	c.sess.lastActivity = time.Now()

	start := resultIndex
	if c.sess.seen > start {
		start = c.sess.seen
	}
	interim := ""
	finals := 0
	for i := start; i < len(results); i++ {
		r := results[i]
		if r.IsFinal {
			c.buf.Commit(r.Transcript)
			if i+1 > c.sess.seen {
				c.sess.seen = i + 1
			}
			finals++
		} else {
			if interim != "" {
				interim += " "
			}
			interim += r.Transcript
		}
	}
	c.buf.SetPending(interim)
	c.mu.Unlock()

	if finals > 0 {
		metrics.DefaultMetrics.RecordFinalFragments(finals)
	}
	metrics.DefaultMetrics.RecordResultEvent()
	c.notify()
}

// handleEnd runs when the engine reports termination, for any reason. On a
// manual stop the controller goes idle; otherwise outstanding interim text is
// rescued into the committed transcript and the engine is restarted.
func (c *CaptureController) handleEnd() {
	c.mu.Lock()
	rescued := c.buf.Rescue()
	if rescued {
		c.rescued = true
	}
	if c.manualStop || c.rec == nil {
		c.state = CaptureIdle
		c.mu.Unlock()
		if rescued {
			metrics.DefaultMetrics.RecordRescue("engine_end")
		}
		c.logger.Debug().Msg("recognition session ended (manual stop)")
		c.notify()
		return
	}
	c.state = CaptureRestartPending
	c.retried = false
	c.mu.Unlock()

	if rescued {
		metrics.DefaultMetrics.RecordRescue("restart")
	}
	metrics.DefaultMetrics.RecordRestart("engine_end")
	c.logger.Debug().Msg("recognition session ended, restarting")
	c.notify()
	c.tryRestart()
}

func (c *CaptureController) tryRestart() {
	err := c.rec.Start()
	if err == nil {
		return // handleStart flips state to Active
	}
	if errors.Is(err, ErrAlreadyStarted) {
		c.mu.Lock()
		alreadyRetried := c.retried
		c.retried = true
		c.mu.Unlock()
		if !alreadyRetried {
			// The dying run has not fully released the engine yet; try
			// once more after a short delay.
			time.AfterFunc(c.tun.RestartRetryDelay, c.retryRestart)
			return
		}
	}
	c.abandonRestart(err)
}

func (c *CaptureController) retryRestart() {
	c.mu.Lock()
	if c.state != CaptureRestartPending || c.manualStop {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	metrics.DefaultMetrics.RecordRestart("retry")
	if err := c.rec.Start(); err != nil {
		c.abandonRestart(err)
	}
}

// abandonRestart gives up on the current restart attempt. Per the failure
// policy nothing is surfaced beyond capture reporting inactive.
func (c *CaptureController) abandonRestart(err error) {
	c.mu.Lock()
	c.state = CaptureIdle
	c.mu.Unlock()
	c.logger.Warn().Err(err).Msg("restart abandoned, capture inactive")
	c.notify()
}

// handleError triages engine errors: transient classes are absorbed,
// permission denials terminate capture with no further restart attempts, and
// anything else is logged and ignored to keep the stream alive.
func (c *CaptureController) handleError(code ErrorCode) {
	metrics.DefaultMetrics.RecordCaptureError(string(code))
	switch {
	case code.Transient():
		c.logger.Debug().Str("code", string(code)).Msg("transient recognition error")
	case code.Fatal():
		c.mu.Lock()
		c.manualStop = true
		c.state = CaptureIdle
		c.mu.Unlock()
		c.logger.Warn().Str("code", string(code)).Msg("recognition permission denied, capture disabled")
		c.notify()
	default:
		c.logger.Warn().Str("code", string(code)).Msg("recognition error ignored")
	}
}

// watchdog proactively restarts long sessions during silence. Engines
// force-terminate near a fixed ceiling; a deliberate, silence-timed stop
// trades that unpredictable cutoff for a clean restart through the normal
// auto-restart path.
func (c *CaptureController) watchdog() {
	ticker := time.NewTicker(c.tun.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.watchStop:
			return
		case <-ticker.C:
			c.mu.Lock()
			due := c.state == CaptureActive &&
				!c.sess.startedAt.IsZero() &&
				time.Since(c.sess.startedAt) >= c.tun.SafetyCeiling &&
				time.Since(c.sess.lastActivity) >= c.tun.SilenceGrace
			c.mu.Unlock()
			if due {
				metrics.DefaultMetrics.RecordRestart("watchdog")
				c.logger.Debug().Msg("safety ceiling reached during silence, recycling session")
				c.rec.Stop()
			}
		}
	}
}

func (c *CaptureController) notify() {
	if c.onChange == nil {
		return
	}
	c.mu.Lock()
	snap := Snapshot{
		Listening:  c.state != CaptureIdle,
		Transcript: c.buf.String(),
	}
	c.mu.Unlock()
	c.onChange(snap)
}
