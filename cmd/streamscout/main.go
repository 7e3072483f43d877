package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kevin-liao/streamscout/internal/config"
	"github.com/kevin-liao/streamscout/internal/highlight"
	"github.com/kevin-liao/streamscout/internal/media"
	"github.com/kevin-liao/streamscout/internal/pipeline"
	"github.com/kevin-liao/streamscout/internal/scorer"
	"github.com/kevin-liao/streamscout/internal/session"
	sigext "github.com/kevin-liao/streamscout/internal/signal"
	"github.com/kevin-liao/streamscout/internal/store"
	"github.com/kevin-liao/streamscout/internal/stt"
	"github.com/kevin-liao/streamscout/internal/web"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  streamscout run [config]     Start the chunk pipeline & API")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cfgPath := "config.yaml"
		if len(os.Args) > 2 {
			cfgPath = os.Args[2]
		}
		if err := run(cfgPath); err != nil {
			slog.Error("run failed", "err", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

// prober binds the configured probe timeout to the source.
type prober struct {
	src     *media.Source
	timeout time.Duration
}

func (p prober) Probe(ctx context.Context, sourceID string) (media.SourceInfo, error) {
	return p.src.Probe(ctx, sourceID, p.timeout)
}

func run(cfgPath string) error {
	hot, err := config.NewHotConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := hot.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	if cfg.Google.Credentials != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", cfg.Google.Credentials)
	}

	// Artifact index + trigger audit log
	db, err := store.NewStore(cfg.Pipeline.IndexDB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	// Chunk resolution via ffmpeg
	ffmpeg := media.NewFFmpeg()
	source := media.NewSource(ffmpeg, db,
		cfg.Pipeline.ChunksDir, cfg.Pipeline.AudioDir,
		time.Duration(cfg.Pipeline.FetchTimeout)*time.Second)

	// Signal extraction
	transcriber, err := stt.NewGoogleTranscriber(ctx, cfg.Google.Language, ffmpeg.SampleRate)
	if err != nil {
		return fmt.Errorf("init transcriber: %w", err)
	}
	defer transcriber.Close()
	extractor := sigext.NewExtractor(transcriber, ffmpeg.SampleRate, cfg.Pipeline.AmplitudeRate)

	// Memoizing processor
	cache := pipeline.NewCache()
	processor := pipeline.NewProcessor(source, extractor, cache)

	// Highlight generation is optional; sessions run without it.
	var generator session.HighlightGenerator
	if cfg.Gemini.APIKey != "" {
		gen, err := highlight.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.FallbackModel)
		if err != nil {
			return fmt.Errorf("init highlight generator: %w", err)
		}
		generator = gen
	} else {
		slog.Info("highlight generation disabled (no gemini api key)")
	}

	manager := session.NewManager(processor, session.Options{
		ChunkDuration: cfg.Pipeline.ChunkDuration,
		Scoring: scorer.Options{
			WindowSize:    cfg.Scoring.WindowSize,
			KeywordWeight: cfg.Scoring.KeywordWeight,
			DecayFactor:   cfg.Scoring.DecayFactor,
			Events:        cfg.Scoring.Events,
		},
		Thresholds:  cfg.Scoring.Thresholds,
		Cooldown:    time.Duration(cfg.Scoring.CooldownSec) * time.Second,
		ScoreLogDir: cfg.Pipeline.ScoreLogDir,
		Generator:   generator,
		Triggers:    db,
	})
	defer manager.StopAll()

	sources := make(map[string]string, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		sources[sc.Name] = sc.URL
	}

	server := web.NewServer(web.Deps{
		Processor:   processor,
		Cache:       cache,
		Manager:     manager,
		Prober:      prober{src: source, timeout: time.Duration(cfg.Pipeline.ProbeTimeout) * time.Second},
		Purger:      db,
		Triggers:    db,
		Sources:     sources,
		ScoreLogDir: cfg.Pipeline.ScoreLogDir,
	}, cfg.WebPort, cfg.Web.Username, cfg.Web.PasswordHash)
	server.Start()

	// Keyword tables, thresholds and credentials apply without restart.
	hot.OnReload(func(next *config.Config) {
		manager.UpdateScoring(next.Scoring.Events, next.Scoring.Thresholds,
			time.Duration(next.Scoring.CooldownSec)*time.Second)
		server.UpdateAuth(next.Web.Username, next.Web.PasswordHash)
	})
	hot.Watch()

	slog.Info("streamscout started",
		"sources", len(cfg.Sources),
		"chunk_duration", cfg.Pipeline.ChunkDuration,
		"web", fmt.Sprintf("http://localhost:%d", cfg.WebPort))

	<-ctx.Done()
	return nil
}
