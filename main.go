package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-skinwise-bot/internal/analysis"
	"github.com/raine/telegram-skinwise-bot/internal/bot"
	"github.com/raine/telegram-skinwise-bot/internal/config"
	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/raine/telegram-skinwise-bot/internal/followup"
	"github.com/raine/telegram-skinwise-bot/internal/httpapi"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
	"github.com/raine/telegram-skinwise-bot/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config.LoadEnvFile()

	if missing := config.MissingRequired(os.Getenv); len(missing) > 0 {
		if config.IsInteractiveTerminal() {
			if !config.RunSetupWizard() {
				config.WaitOnWindows()
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			fatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fatalWithWait("%v", err)
	}

	closeLog := setupLogging(cfg)
	defer closeLog()

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	encryptionKey, err := storage.DeriveKey(cfg.DataKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to derive encryption key")
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("store initialized")

	gateway, err := newGateway(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize inference gateway")
	}
	gateway = llm.NewTimeoutGateway(gateway, cfg.InferenceTimeout)
	log.Info().Str("provider", cfg.Provider).Dur("timeout", cfg.InferenceTimeout).Msg("inference gateway initialized")

	guard := entitlement.NewGuard(store, cfg.DefaultTrials, cfg.OwnerUserID)
	history := analysis.NewHistory(store)
	analyzer := analysis.NewOrchestrator(gateway, guard,
		analysis.WithMaxBytes(cfg.MaxImageBytes),
		analysis.WithRecorder(history),
	)
	ingredients := analysis.NewIngredientOrchestrator(gateway, guard, cfg.GateIngredientChecks, cfg.MaxImageBytes)
	followUps := followup.NewManager(gateway, cfg.MaxFollowUpTurns)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.BotToken != "" {
		tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize telegram bot")
		}
		tg.Debug = false
		log.Info().Str("username", tg.Self.UserName).Msg("authorized on account")

		// Register bot commands for Telegram's command menu
		bot.RegisterCommands(tg)

		svc := bot.Services{
			Guard:         guard,
			Analyzer:      analyzer,
			Ingredients:   ingredients,
			FollowUps:     followUps,
			History:       history,
			MaxImageBytes: cfg.MaxImageBytes,
			OwnerUserID:   cfg.OwnerUserID,
		}
		g.Go(func() error {
			return runBot(ctx, tg, svc)
		})
	}

	if cfg.HTTPAddr != "" {
		server := httpapi.New(httpapi.Services{
			Guard:       guard,
			Analyzer:    analyzer,
			Ingredients: ingredients,
			FollowUps:   followUps,
			History:     history,
		}, httpapi.Options{
			Addr:          cfg.HTTPAddr,
			JWTSecret:     []byte(cfg.JWTSecret),
			CORSOrigins:   cfg.CORSOrigins,
			MaxImageBytes: cfg.MaxImageBytes,
		})
		g.Go(func() error {
			return server.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// fatalWithWait logs a fatal error and waits on Windows before exiting.
func fatalWithWait(format string, args ...any) {
	log.Error().Msgf(format, args...)
	config.WaitOnWindows()
	os.Exit(1)
}

// setupLogging applies the configured level and, outside systemd, tees the
// console output into LOG_FILE.
func setupLogging(cfg *config.Config) (closeFn func()) {
	zerolog.SetGlobalLevel(cfg.LogLevel)

	// JOURNAL_STREAM is set by systemd when running as a service.
	// journald already keeps the logs and the working directory may be read-only.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd || cfg.LogFile == "" {
		return func() {}
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatal().Err(err).Str("logFile", cfg.LogFile).Msg("failed to open log file")
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	log.Info().Str("logFile", cfg.LogFile).Msg("logging to file")

	return func() { logFile.Close() }
}

func newGateway(ctx context.Context, cfg *config.Config) (llm.Gateway, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return llm.NewGeminiGateway(ctx, llm.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
	case config.ProviderOpenAI:
		return llm.NewOpenAIGateway(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}

func runBot(ctx context.Context, tg *tgbotapi.BotAPI, svc bot.Services) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	b := bot.NewBot(tg, svc)
	defer b.Shutdown()

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			log.Info().Msg("waiting for active handlers to finish")
			wg.Wait()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
