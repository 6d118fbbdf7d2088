package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/MatchPredictor/internal/app"
	"github.com/Alias1177/MatchPredictor/internal/config"
	"github.com/Alias1177/MatchPredictor/models"
)

// Bot answers prediction commands in Telegram chats
type Bot struct {
	api    *tgbotapi.BotAPI
	app    *app.App
	limits *dailyLimiter
	logger zerolog.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogging(cfg.LogLevel)

	if cfg.TelegramBotToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN not set in environment")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}

	bot := &Bot{
		api:    api,
		app:    a,
		limits: newDailyLimiter(cfg.DailyLimit, time.Now),
		logger: log.With().Str("component", "telegram_bot").Logger(),
	}
	bot.logger.Info().Str("username", api.Self.UserName).Int("daily_limit", cfg.DailyLimit).Msg("Authorized on Telegram")

	bot.run(ctx)
}

func (b *Bot) run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Shutdown signal received, stopping bot")
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage processes incoming text messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	logger := b.logger.With().Int64("chat_id", chatID).Logger()

	switch message.Command() {
	case "start", "help":
		b.sendHTML(chatID, helpText(b.limits.limit))

	case "providers":
		b.sendHTML(chatID, formatProviders(b.app.Registry.Status()))

	case "predict":
		home, away, ok := parseTeams(message.CommandArguments())
		if !ok {
			b.sendHTML(chatID, "Usage: <code>/predict Home Team - Away Team</code>")
			return
		}
		b.predict(ctx, chatID, models.PredictionQuery{HomeTeam: home, AwayTeam: away}, logger)

	case "match":
		id := strings.TrimSpace(message.CommandArguments())
		if !isFixtureID(id) {
			b.sendHTML(chatID, "Usage: <code>/match 1035</code>")
			return
		}
		b.predict(ctx, chatID, models.PredictionQuery{MatchID: id}, logger)

	default:
		b.sendHTML(chatID, "Unknown command. Send /help to see what I can do.")
	}
}

func (b *Bot) predict(ctx context.Context, chatID int64, q models.PredictionQuery, logger zerolog.Logger) {
	remaining, ok := b.limits.Allow(chatID)
	if !ok {
		b.sendHTML(chatID, fmt.Sprintf("Daily limit of %d predictions reached. Try again tomorrow.", b.limits.limit))
		return
	}

	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, "⏳ Analyzing match data..."))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to send progress message")
	}

	ctx, cancel := context.WithTimeout(ctx, b.app.PredictTimeout)
	defer cancel()

	resp, err := b.app.Service.Predict(ctx, q)
	var text string
	switch {
	case err == nil:
		text = formatPrediction(resp, remaining)
	case errors.Is(err, models.ErrNotFound):
		text = "Match not found."
	case errors.Is(err, models.ErrInvalidQuery):
		text = "Please provide both team names."
	case errors.Is(err, models.ErrNoProviderConfigured):
		text = "Predictions are not available right now."
	default:
		logger.Error().Err(err).Msg("Prediction failed")
		text = "Error generating prediction. Please try again later."
	}

	if sent.MessageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, sent.MessageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(edit); err == nil {
			return
		}
	}
	b.sendHTML(chatID, text)
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}
