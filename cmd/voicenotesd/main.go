// Command voicenotesd is the voice-note processing server: it accepts
// recorded audio for reading sessions, transcribes it through the STT
// provider gateway, and synthesizes reading artifacts grounded in the
// owner's library.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/quillreads/voicenotes/internal/audiofetch"
	"github.com/quillreads/voicenotes/internal/config"
	"github.com/quillreads/voicenotes/internal/contextpack"
	"github.com/quillreads/voicenotes/internal/gateway"
	"github.com/quillreads/voicenotes/internal/guardrail"
	"github.com/quillreads/voicenotes/internal/httpapi"
	"github.com/quillreads/voicenotes/internal/observe"
	"github.com/quillreads/voicenotes/internal/pipeline"
	"github.com/quillreads/voicenotes/internal/synthesis"
	"github.com/quillreads/voicenotes/pkg/embeddings"
	oaembed "github.com/quillreads/voicenotes/pkg/embeddings/openai"
	"github.com/quillreads/voicenotes/pkg/llm"
	"github.com/quillreads/voicenotes/pkg/llm/anyllm"
	oallm "github.com/quillreads/voicenotes/pkg/llm/openai"
	"github.com/quillreads/voicenotes/pkg/stt"
	"github.com/quillreads/voicenotes/pkg/stt/assemblyai"
	"github.com/quillreads/voicenotes/pkg/stt/deepgram"
	"github.com/quillreads/voicenotes/pkg/stt/elevenlabs"
	"github.com/quillreads/voicenotes/pkg/store/blob"
	"github.com/quillreads/voicenotes/pkg/store/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicenotesd: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicenotesd: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voicenotesd starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first so every later component records to live instruments.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voicenotesd"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	st, err := postgres.NewStore(ctx, cfg.Store.PostgresDSN, cfg.Store.EmbeddingDimensions)
	if err != nil {
		slog.Error("failed to connect to postgres", "err", err)
		return 1
	}
	defer st.Close()

	gw := gateway.New(cfg.STT.Policy, cfg.STT.Status, sttFactories(cfg.STT))
	orch := synthesis.New(buildLLMClient(cfg.Synthesis), synthesis.Config{
		PrimaryModel:        cfg.Synthesis.Model,
		FallbackModels:      cfg.Synthesis.FallbackModels,
		MaxTokens:           cfg.Synthesis.MaxTokens,
		Temperature:         cfg.Synthesis.Temperature,
		TopP:                cfg.Synthesis.TopP,
		Seed:                cfg.Synthesis.Seed,
		TranscriptCharLimit: cfg.Synthesis.TranscriptCharLimit,
	})
	guard := guardrail.New(cfg.Guardrail.WarnUSD, cfg.Guardrail.HardCapUSD, logger)
	fetcher := audiofetch.New(cfg.Server.TrustedAudioHosts, cfg.Server.MaxAudioBytes)
	packOpts := contextpack.Options{TokenBudget: cfg.Synthesis.ContextTokenBudget}

	var blobOpts []blob.Option
	if cfg.Blob.AuthToken != "" {
		blobOpts = append(blobOpts, blob.WithAuthToken(cfg.Blob.AuthToken))
	}
	blobs, err := blob.NewHTTP(cfg.Blob.BaseURL, blobOpts...)
	if err != nil {
		slog.Error("failed to configure blob storage", "err", err)
		return 1
	}

	pipe := &pipeline.Pipeline{
		Store:        st,
		Blobs:        blobs,
		Fetcher:      fetcher,
		Gateway:      gw,
		Orchestrator: orch,
		Guard:        guard,
		Embedder:     buildEmbedder(cfg.Embeddings),
		PackOptions:  packOpts,
	}

	api := &httpapi.Server{
		Store:         st,
		Blobs:         blobs,
		Fetcher:       fetcher,
		Pipeline:      pipe,
		Orchestrator:  orch,
		Guard:         guard,
		MaxAudioBytes: cfg.Server.MaxAudioBytes,
		PackOptions:   packOpts,
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// sttFactories wires one lazy constructor per known provider. Construction
// reads the config entry at call time so a bad credential fails inside the
// gateway, where it is logged and skipped, not at startup.
func sttFactories(c config.STTConfig) map[string]gateway.Factory {
	return map[string]gateway.Factory{
		config.ProviderElevenLabs: func() (stt.Transcriber, error) {
			var opts []elevenlabs.Option
			if c.ElevenLabs.Model != "" {
				opts = append(opts, elevenlabs.WithModel(c.ElevenLabs.Model))
			}
			if c.ElevenLabs.BaseURL != "" {
				opts = append(opts, elevenlabs.WithBaseURL(c.ElevenLabs.BaseURL))
			}
			return elevenlabs.New(c.ElevenLabs.APIKey, opts...)
		},
		config.ProviderDeepgram: func() (stt.Transcriber, error) {
			var opts []deepgram.Option
			if c.Deepgram.Model != "" {
				opts = append(opts, deepgram.WithModel(c.Deepgram.Model))
			}
			if c.Deepgram.BaseURL != "" {
				opts = append(opts, deepgram.WithBaseURL(c.Deepgram.BaseURL))
			}
			return deepgram.New(c.Deepgram.APIKey, opts...)
		},
		config.ProviderAssemblyAI: func() (stt.Transcriber, error) {
			var opts []assemblyai.Option
			if c.AssemblyAI.BaseURL != "" {
				opts = append(opts, assemblyai.WithBaseURL(c.AssemblyAI.BaseURL))
			}
			return assemblyai.New(c.AssemblyAI.APIKey, opts...)
		},
	}
}

// buildLLMClient selects the synthesis backend. Returns nil when no backend
// is configured, which puts the orchestrator in heuristic mode.
func buildLLMClient(c config.SynthesisConfig) llm.Client {
	switch c.Backend {
	case "openai":
		client, err := oallm.New(c.APIKey)
		if err != nil {
			slog.Warn("openai synthesis client unavailable; running in heuristic mode", "err", err)
			return nil
		}
		return client
	case "anyllm":
		var opts []anyllmlib.Option
		if c.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(c.APIKey))
		}
		return anyllm.New(opts...)
	case "":
		slog.Info("no synthesis backend configured; running in heuristic mode")
		return nil
	default:
		slog.Warn("unknown synthesis backend; running in heuristic mode", "backend", c.Backend)
		return nil
	}
}

// buildEmbedder constructs the optional semantic-ranking provider.
func buildEmbedder(c config.EmbeddingsConfig) embeddings.Provider {
	if c.APIKey == "" {
		return nil
	}
	p, err := oaembed.New(c.APIKey, c.Model)
	if err != nil {
		slog.Warn("embedding provider unavailable; note ranking falls back to recency", "err", err)
		return nil
	}
	return p
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
