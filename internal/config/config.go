package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration, loaded once at startup from the
// environment. Invalid values fall back to defaults rather than failing.
type Config struct {
	Service       ServiceConfig
	Speech        SpeechConfig
	LLM           LLMConfig
	Kafka         KafkaConfig
	History       HistoryConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Principal string
	HTTPPort  string
}

// SpeechConfig carries the recognizer/synthesizer provider selection plus the
// capture and playback tunables.
type SpeechConfig struct {
	Provider string // mock | browser | google
	Language string

	StitchWindow   int
	FuzzyThreshold float64

	SafetyCeiling     time.Duration
	SilenceGrace      time.Duration
	RestartRetryDelay time.Duration
	WatchdogInterval  time.Duration

	DispatchDelay   time.Duration
	VoicePreference []string
}

type LLMConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

type KafkaConfig struct {
	Enabled   bool
	Brokers   []string
	Principal string

	TopicPartial string
	TopicFinal   string
	TopicTurn    string
}

type HistoryConfig struct {
	Dir      string
	InMemory bool
}

type ObservabilityConfig struct {
	LogLevel    string
	Environment string
	Port        string
}

func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-interview-coach")
	return &Config{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
		},
		Speech: SpeechConfig{
			Provider: envOrDefault("SPEECH_PROVIDER", "mock"),
			Language: envOrDefault("SPEECH_LANGUAGE", "en-US"),

			StitchWindow:   envOrDefaultInt("SPEECH_STITCH_WINDOW", 6),
			FuzzyThreshold: envOrDefaultFloat("SPEECH_FUZZY_THRESHOLD", 0),

			SafetyCeiling:     envOrDefaultDuration("SPEECH_SAFETY_CEILING", 55*time.Second),
			SilenceGrace:      envOrDefaultDuration("SPEECH_SILENCE_GRACE", 1500*time.Millisecond),
			RestartRetryDelay: envOrDefaultDuration("SPEECH_RESTART_RETRY_DELAY", 250*time.Millisecond),
			WatchdogInterval:  envOrDefaultDuration("SPEECH_WATCHDOG_INTERVAL", time.Second),

			DispatchDelay:   envOrDefaultDuration("SPEECH_DISPATCH_DELAY", 150*time.Millisecond),
			VoicePreference: envOrDefaultList("SPEECH_VOICE_PREFERENCE", []string{"Google US English", "Samantha"}),
		},
		LLM: LLMConfig{
			APIKey:      envOrDefault("OPENAI_API_KEY", ""),
			Model:       envOrDefault("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   int64(envOrDefaultInt("LLM_MAX_TOKENS", 1024)),
			Temperature: envOrDefaultFloat("LLM_TEMPERATURE", 0.7),
		},
		Kafka: KafkaConfig{
			Enabled:   envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:   envOrDefaultList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Principal: envOrDefault("KAFKA_PRINCIPAL", principal),

			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "interview.transcript.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "interview.transcript.final"),
			TopicTurn:    envOrDefault("KAFKA_TOPIC_TURN", "interview.turn.completed"),
		},
		History: HistoryConfig{
			Dir:      envOrDefault("HISTORY_DIR", "./data/history"),
			InMemory: envOrDefaultBool("HISTORY_IN_MEMORY", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			Environment: envOrDefault("ENVIRONMENT", "development"),
			Port:        envOrDefault("OBSERVABILITY_PORT", "9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
