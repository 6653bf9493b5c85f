package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/synchire/interview-agent/internal/agent"
	"github.com/synchire/interview-agent/internal/archive"
	"github.com/synchire/interview-agent/internal/config"
	"github.com/synchire/interview-agent/internal/llm"
	"github.com/synchire/interview-agent/internal/logger"
	"github.com/synchire/interview-agent/internal/notify"
	"github.com/synchire/interview-agent/internal/platform"
	"github.com/synchire/interview-agent/internal/server"
	"github.com/synchire/interview-agent/internal/session"
	"github.com/synchire/interview-agent/internal/storage"
	"github.com/synchire/interview-agent/internal/stt"
	"github.com/synchire/interview-agent/internal/summary"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	log.Info("synchire interview agent: starting")

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("storage init failed")
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stt.Init()

	hub := server.NewHub()
	edge := platform.NewEdge(cfg.EdgeURL, cfg.EdgeAPIKey, cfg.EdgeAPISecret, log.Entry)
	webhook := notify.NewWebhook(cfg.WebhookBaseURL, log.Entry)
	baseInstructions := agent.LoadInstructions(cfg.InstructionsPath, log.Entry)

	llmFactory := func(provider, model string) (llm.Client, error) {
		return llm.NewClient(provider, cfg.APIKeyFor(provider), model)
	}

	var summarizer session.Summarizer
	if model := cfg.ActiveModel(); model != "" {
		summarizer = summary.New(model, llmFactory)
	}

	var archiver session.Archiver
	if cfg.GDriveFolderID != "" {
		drv, err := archive.NewDriveArchiver(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if err != nil {
			log.WithError(err).Warn("drive archive disabled")
		} else {
			archiver = drv
		}
	}

	deps := session.Deps{
		Rooms: edge,
		NewBrain: func(room platform.Room, req session.Request) session.Brain {
			provider, modelName, err := llm.ParseModel(cfg.ActiveModel())
			if err != nil {
				log.WithError(err).Error("invalid llm model, interviewer brain disabled")
				return noopBrain{}
			}
			client, err := llmFactory(provider, modelName)
			if err != nil {
				log.WithError(err).Error("llm client init failed, interviewer brain disabled")
				return noopBrain{}
			}
			instructions := agent.PersonalizeInstructions(baseInstructions, req.Questions, req.CandidateName, req.JobTitle)
			return agent.NewBrain(client, room, instructions, log.WithCall(req.CallID))
		},
		NewSTT: func(sttCtx context.Context, sink session.SpeechSink) (session.AudioTranscriber, error) {
			return stt.New(sttCtx, cfg.DeepgramAPIKey, cfg.DeepgramSampleRate, cfg.DeepgramLanguage, sink, log.Entry)
		},
		Store:             store,
		Webhook:           webhook,
		Summarizer:        summarizer,
		Archiver:          archiver,
		Hub:               hub,
		MinimumDuration:   time.Duration(cfg.MinimumDurationMinutes) * time.Minute,
		CompletionTimeout: cfg.ParsedCompletionTimeout(),
		GraceDelay:        cfg.ParsedGraceDelay(),
		Log:               log.Entry,
	}

	if cfg.AvatarAPIKey != "" && cfg.AvatarID != "" {
		deps.NewAvatar = func() session.Avatar {
			return agent.NewAvatarPublisher(cfg.AvatarAPIKey, cfg.AvatarID, cfg.AvatarQuality, log.Entry)
		}
	}

	registry := session.NewRegistry(log.Entry)
	launcher := session.NewLauncher(registry, deps, log.Entry)

	httpServer := server.New(cfg.HTTPAddr, hub, store, launcher, cfg.Valid, log.Entry)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("synchire interview agent: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if n := launcher.ShutdownAll(shutdownCtx); n > 0 {
		log.WithField("sessions", n).Info("live interviews stopped")
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		log.WithError(err).Warn("http shutdown failed")
	}
}

// noopBrain keeps a session alive when no LLM client could be built; the
// completion detector still drives the lifecycle.
type noopBrain struct{}

func (noopBrain) Greet(context.Context, string) error { return nil }

func (noopBrain) OnUserSpeech(context.Context, string) {}
