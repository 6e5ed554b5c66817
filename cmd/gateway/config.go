package main

import (
	"os"
	"strconv"
	"time"

	"github.com/voicerelay/gateway/internal/pipeline"
	"github.com/voicerelay/gateway/internal/prompts"
)

type config struct {
	host string
	port string

	groqAPIKey   string
	groqURL      string
	groqModel    string
	systemPrompt string
	fallbackText string
	maxTokens    int
	temperature  float64

	sttEngine        string
	sttModel         string
	whisperServerURL string

	ttsEngine         string
	elevenlabsAPIKey  string
	elevenlabsVoiceID string
	elevenlabsModelID string
	speechURL         string
	speechAPIKey      string
	speechModel       string
	speechVoice       string
	piperURL          string
	piperVoice        string

	sttPoolSize int
	llmPoolSize int
	ttsPoolSize int

	maxSessions int
	queueDepth  int
	timeouts    pipeline.Timeouts

	traceDBURL string
}

func loadConfig() config {
	return config{
		host: envStr("GATEWAY_HOST", ""),
		port: envStr("GATEWAY_PORT", "8765"),

		groqAPIKey:   envStr("GROQ_API_KEY", ""),
		groqURL:      envStr("GROQ_URL", "https://api.groq.com/openai/v1"),
		groqModel:    envStr("GROQ_MODEL", "llama-3.3-70b-versatile"),
		systemPrompt: envStr("LLM_SYSTEM_PROMPT", prompts.DefaultSystem),
		fallbackText: envStr("LLM_FALLBACK_REPLY", prompts.FallbackReply),
		maxTokens:    envInt("LLM_MAX_TOKENS", 1024),
		temperature:  envFloat("LLM_TEMPERATURE", 0.7),

		sttEngine:        envStr("STT_ENGINE", "groq"),
		sttModel:         envStr("STT_MODEL", "whisper-large-v3"),
		whisperServerURL: envStr("WHISPER_SERVER_URL", ""),

		ttsEngine:         envStr("TTS_ENGINE", "elevenlabs"),
		elevenlabsAPIKey:  envStr("ELEVENLABS_API_KEY", ""),
		elevenlabsVoiceID: envStr("ELEVENLABS_VOICE_ID", "JBFqnCBsd6RMkjVDRZzb"),
		elevenlabsModelID: envStr("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		speechURL:         envStr("SPEECH_URL", ""),
		speechAPIKey:      envStr("SPEECH_API_KEY", ""),
		speechModel:       envStr("SPEECH_MODEL", "kokoro"),
		speechVoice:       envStr("SPEECH_VOICE", "af_heart"),
		piperURL:          envStr("PIPER_URL", ""),
		piperVoice:        envStr("PIPER_VOICE", "en_US-lessac-medium"),

		sttPoolSize: envInt("STT_POOL_SIZE", 50),
		llmPoolSize: envInt("LLM_POOL_SIZE", 50),
		ttsPoolSize: envInt("TTS_POOL_SIZE", 50),

		maxSessions: envInt("MAX_CONCURRENT_SESSIONS", 100),
		queueDepth:  envInt("SESSION_QUEUE_DEPTH", 8),
		timeouts: pipeline.Timeouts{
			Transcribe: envDur("TRANSCRIBE_TIMEOUT", 30*time.Second),
			Generate:   envDur("GENERATE_TIMEOUT", 60*time.Second),
			Synthesize: envDur("SYNTHESIZE_TIMEOUT", 30*time.Second),
		},

		traceDBURL: envStr("TRACE_DB_URL", ""),
	}
}

func envStr(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
