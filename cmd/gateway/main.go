package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/voicerelay/gateway/internal/pipeline"
	"github.com/voicerelay/gateway/internal/session"
	"github.com/voicerelay/gateway/internal/trace"
)

func main() {
	godotenv.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	if cfg.groqAPIKey == "" {
		slog.Error("GROQ_API_KEY is not set")
		os.Exit(1)
	}

	// Transcription backends
	transcribers := map[string]pipeline.Transcriber{
		"groq": pipeline.NewOpenAITranscriber(cfg.groqURL, cfg.groqAPIKey, cfg.sttModel, cfg.sttPoolSize),
	}
	if cfg.whisperServerURL != "" {
		transcribers["whisper"] = pipeline.NewWhisperTranscriber(cfg.whisperServerURL, cfg.sttPoolSize)
	}
	sttRouter := pipeline.NewRouter(pipeline.StageTranscription, transcribers, "groq")
	transcriber, err := sttRouter.Route(cfg.sttEngine)
	if err != nil {
		slog.Error("transcription engine", "error", err)
		os.Exit(1)
	}

	// Generation backend
	llmHTTP := pipeline.NewPooledHTTPClient(cfg.llmPoolSize, 120*time.Second)
	generators := map[string]pipeline.Generator{
		"groq": pipeline.NewChatGenerator(cfg.groqAPIKey, cfg.groqURL, cfg.groqModel, cfg.systemPrompt, cfg.maxTokens, cfg.temperature, llmHTTP),
	}
	llmRouter := pipeline.NewRouter(pipeline.StageGeneration, generators, "groq")
	generator, err := llmRouter.Route("groq")
	if err != nil {
		slog.Error("generation engine", "error", err)
		os.Exit(1)
	}

	// Synthesis backends
	ttsHTTP := pipeline.NewPooledHTTPClient(cfg.ttsPoolSize, 60*time.Second)
	synthesizers := map[string]pipeline.Synthesizer{}
	if cfg.elevenlabsAPIKey != "" {
		synthesizers["elevenlabs"] = pipeline.NewElevenLabsSynthesizer(cfg.elevenlabsAPIKey, cfg.elevenlabsVoiceID, cfg.elevenlabsModelID, ttsHTTP)
	}
	if cfg.speechURL != "" {
		synthesizers["openai"] = pipeline.NewOpenAISynthesizer(cfg.speechURL, cfg.speechAPIKey, cfg.speechModel, cfg.speechVoice, ttsHTTP)
	}
	if cfg.piperURL != "" {
		synthesizers["piper"] = pipeline.NewPiperSynthesizer(cfg.piperURL, cfg.piperVoice, ttsHTTP)
	}
	if len(synthesizers) == 0 {
		slog.Error("no synthesis backend configured (set ELEVENLABS_API_KEY, SPEECH_URL, or PIPER_URL)")
		os.Exit(1)
	}
	ttsRouter := pipeline.NewRouter(pipeline.StageSynthesis, synthesizers, "elevenlabs")
	synthesizer, err := ttsRouter.Route(cfg.ttsEngine)
	if err != nil {
		slog.Error("synthesis engine", "error", err)
		os.Exit(1)
	}

	var traceStore *trace.Store
	if cfg.traceDBURL != "" {
		traceStore, err = trace.Open(cfg.traceDBURL)
		if err != nil {
			slog.Warn("run log disabled", "error", err)
		} else {
			defer traceStore.Close()
			slog.Info("run log enabled")
		}
	}

	wsHandler := session.NewHandler(session.HandlerConfig{
		Transcriber:   transcriber,
		Generator:     generator,
		Synthesizer:   synthesizer,
		FallbackReply: cfg.fallbackText,
		Timeouts:      cfg.timeouts,
		MaxSessions:   cfg.maxSessions,
		QueueDepth:    cfg.queueDepth,
		TraceStore:    traceStore,
	})

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		cfg:        cfg,
		sttRouter:  sttRouter,
		llmRouter:  llmRouter,
		ttsRouter:  ttsRouter,
		wsHandler:  wsHandler,
		traceStore: traceStore,
	})

	addr := net.JoinHostPort(cfg.host, cfg.port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("gateway starting",
		"addr", addr,
		"stt_engine", cfg.sttEngine,
		"tts_engine", cfg.ttsEngine,
		"llm_model", cfg.groqModel,
		"max_sessions", cfg.maxSessions,
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway stopped")
}
