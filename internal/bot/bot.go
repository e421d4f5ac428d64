// Package bot is the Telegram front end of the skin analysis service.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-skinwise-bot/internal/analysis"
	"github.com/raine/telegram-skinwise-bot/internal/entitlement"
	"github.com/raine/telegram-skinwise-bot/internal/followup"
	"github.com/raine/telegram-skinwise-bot/internal/imaging"
	"github.com/raine/telegram-skinwise-bot/internal/llm"
	"github.com/rs/zerolog/log"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const historyLimit = 5

// BotAPI defines the interface for Telegram bot API operations.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Services are the domain components the bot drives. History may be nil.
type Services struct {
	Guard         *entitlement.Guard
	Analyzer      *analysis.Orchestrator
	Ingredients   *analysis.IngredientOrchestrator
	FollowUps     *followup.Manager
	History       *analysis.History
	MaxImageBytes int64
	// OwnerUserID may run /admin. It is a profile identity such as "tg:42".
	OwnerUserID string
}

// Bot is the main Telegram bot handler.
type Bot struct {
	tg         BotAPI
	state      BotState
	svc        Services
	downloader *ImageDownloader
}

// NewBot creates a new Bot instance.
func NewBot(tg BotAPI, svc Services) *Bot {
	if svc.MaxImageBytes <= 0 {
		svc.MaxImageBytes = imaging.DefaultMaxBytes
	}
	bot := &Bot{
		tg:         tg,
		svc:        svc,
		downloader: NewImageDownloader(svc.MaxImageBytes),
	}
	bot.state = bot.NewBotState()
	return bot
}

// Shutdown stops all session workers.
func (b *Bot) Shutdown() {
	b.state.Shutdown()
}

// HandleUpdate is the main message router.
// It dispatches messages to the appropriate session worker for sequential processing.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, false)
}

// handleUpdateSync is like HandleUpdate but waits for message processing to complete.
// Used in tests where we need synchronous behavior.
func (b *Bot) handleUpdateSync(ctx context.Context, update tgbotapi.Update) {
	b.dispatchUpdate(ctx, update, true)
}

// dispatchUpdate routes updates to the appropriate session worker.
// If sync is true, it waits for message processing to complete.
func (b *Bot) dispatchUpdate(ctx context.Context, update tgbotapi.Update, sync bool) {
	message := update.Message
	if message == nil || message.From == nil {
		return
	}

	session := b.state.getUserSession(message.From.ID)
	msg := SessionMessage{Type: "text", Ctx: ctx, Message: message, Text: message.Text}
	if len(message.Photo) > 0 || message.Document != nil {
		msg.Type = "image"
	}

	log.Debug().Int64("userId", message.From.ID).Str("type", msg.Type).Msg("got message")

	if sync {
		session.SendSync(msg)
	} else {
		session.Send(msg)
	}
}

// HandleSessionMessage implements MessageHandler interface.
// This is called by the session worker goroutine for sequential processing.
func (b *Bot) HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage) {
	if _, err := b.svc.Guard.EnsureProfile(ctx, session.userKey()); err != nil {
		session.replyWithError(err)
		return
	}

	switch msg.Type {
	case "image":
		b.handleImageMessage(ctx, session, msg.Message)
	case "text":
		b.handleTextMessage(ctx, session, msg.Text)
	}
}

// downloadImage fetches and prepares the image attached to message. On
// failure the user has already been answered and ok is false.
func (b *Bot) downloadImage(ctx context.Context, session *UserSession, message *tgbotapi.Message) (img llm.Image, ok bool) {
	file, hasFile, isImage := messageImage(message)
	if !hasFile {
		session.reply(MsgStartPrompt)
		return llm.Image{}, false
	}
	if !isImage {
		session.reply(analysis.UserMessage(analysis.KindInvalidImage))
		return llm.Image{}, false
	}
	if err := imaging.CheckSize(int64(file.FileSize), b.svc.MaxImageBytes); err != nil {
		session.reply(analysis.UserMessage(analysis.KindImageTooLarge))
		return llm.Image{}, false
	}

	data, err := b.downloader.DownloadFromTelegramFileID(ctx, b.tg.GetFileDirectURL, file.FileID)
	switch {
	case errors.Is(err, imaging.ErrTooLarge), errors.Is(err, imaging.ErrUnsupportedFormat):
		session.replyWithKind(analysis.ImageError(err))
		return llm.Image{}, false
	case err != nil:
		log.Warn().Err(err).Int64("userId", session.userId).Msg("image download failed")
		session.reply(MsgImageDownloadFailed)
		return llm.Image{}, false
	}

	img, err = analysis.PrepareImage(data, b.svc.MaxImageBytes)
	if err != nil {
		session.replyWithKind(err)
		return llm.Image{}, false
	}
	return img, true
}

// handleImageMessage runs the operation selected by the session's image mode.
// Called from session worker.
func (b *Bot) handleImageMessage(ctx context.Context, session *UserSession, message *tgbotapi.Message) {
	mode := session.Mode()
	if mode == ImageModeAnalyze {
		// Reject exhausted users before downloading anything.
		if _, err := b.svc.Guard.Check(ctx, session.userKey()); errors.Is(err, entitlement.ErrExhausted) {
			session.reply(analysis.UserMessage(analysis.KindEntitlementExhausted))
			return
		}
	}

	typingCtx, cancelTyping := context.WithCancel(ctx)
	defer cancelTyping()
	go session.startTypingLoop(typingCtx)

	img, ok := b.downloadImage(ctx, session, message)
	if !ok {
		return
	}

	switch mode {
	case ImageModeIngredients:
		b.readIngredients(ctx, session, img)
	case ImageModeCheck:
		b.checkSuitability(ctx, session, img)
	default:
		b.analyze(ctx, session, img)
	}
}

func (b *Bot) analyze(ctx context.Context, session *UserSession, img llm.Image) {
	session.reply(MsgAnalyzingImage)
	result, err := b.svc.Analyzer.Analyze(ctx, session.userKey(), img)
	if err != nil {
		session.replyWithKind(err)
		return
	}
	session.setResult(result)
	session.reply(formatAnalysisResult(result))
	session.reply(MsgFollowUpHint)
}

func (b *Bot) readIngredients(ctx context.Context, session *UserSession, img llm.Image) {
	session.reply(MsgReadingIngredients)
	report, err := b.svc.Ingredients.ReadIngredients(ctx, session.userKey(), img)
	if err != nil {
		session.replyWithKind(err)
		return
	}
	session.setMode(ImageModeAnalyze)
	session.reply(formatIngredientReport(report))
}

func (b *Bot) checkSuitability(ctx context.Context, session *UserSession, img llm.Image) {
	last := session.LastResult()
	if last == nil {
		session.setMode(ImageModeAnalyze)
		session.reply(MsgCheckNeedsDiagnosis)
		return
	}

	session.reply(MsgCheckingProduct, escapeMarkdown(last.Condition))
	report, err := b.svc.Ingredients.CheckSuitability(ctx, session.userKey(), last.Condition, img)
	if err != nil {
		session.replyWithKind(err)
		return
	}
	session.setMode(ImageModeAnalyze)
	session.reply(formatSuitabilityReport(last.Condition, report))
}

// handleTextMessage processes commands and follow-up questions.
// Called from session worker.
func (b *Bot) handleTextMessage(ctx context.Context, session *UserSession, text string) {
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		b.handleCommand(ctx, session, text)
		return
	}

	session.mu.Lock()
	conv := session.conversation
	session.mu.Unlock()
	if conv == nil {
		session.reply(MsgStartPrompt)
		return
	}

	b.askFollowUp(ctx, session, conv, text)
}

func (b *Bot) askFollowUp(ctx context.Context, session *UserSession, conv *followup.Conversation, text string) {
	typingCtx, cancelTyping := context.WithCancel(ctx)
	defer cancelTyping()
	go session.startTypingLoop(typingCtx)

	turn, err := b.svc.FollowUps.SubmitTurn(ctx, conv, text)
	switch {
	case errors.Is(err, followup.ErrConversationFull):
		session.reply(MsgConversationFull)
	case errors.Is(err, followup.ErrTurnInProgress):
		session.reply(MsgTurnInProgress)
	case errors.Is(err, followup.ErrEmptyQuestion):
		session.reply(MsgFollowUpHint)
	case err != nil:
		session.replyWithError(err)
	default:
		session.replyPlain(turn.Content)
	}
}

// handleCommand processes bot commands.
// Called from session worker.
func (b *Bot) handleCommand(ctx context.Context, session *UserSession, text string) {
	command, args := parseCommand(text)
	switch command {
	case "/start":
		state, err := b.svc.Guard.EnsureProfile(ctx, session.userKey())
		if err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgWelcome, trialsText(state))
	case "/status":
		state, err := b.svc.Guard.EnsureProfile(ctx, session.userKey())
		if err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(formatStatus(state))
	case "/ingredients":
		session.setMode(ImageModeIngredients)
		session.reply(MsgSendIngredientsPhoto)
	case "/check":
		last := session.LastResult()
		if last == nil {
			session.reply(MsgCheckNeedsDiagnosis)
			return
		}
		session.setMode(ImageModeCheck)
		session.reply(MsgSendCheckPhoto, escapeMarkdown(last.Condition))
	case "/new":
		session.reset(true)
		session.reply(MsgStartPrompt)
	case "/cancel":
		session.reset(false)
		session.reply(MsgOk)
	case "/history":
		b.handleHistoryCommand(ctx, session)
	case "/terms":
		session.reply(MsgTerms)
	case "/admin":
		b.handleAdminCommand(ctx, session, args)
	case "/version":
		session.reply(MsgVersionInfo, Version, BuildTime)
	default:
		session.reply(MsgStartPrompt)
	}
}

func (b *Bot) handleHistoryCommand(ctx context.Context, session *UserSession) {
	if b.svc.History == nil {
		session.reply(MsgNotAvailable)
		return
	}
	results, err := b.svc.History.List(ctx, session.userKey(), historyLimit)
	if err != nil {
		session.replyWithError(err)
		return
	}
	session.reply(formatHistory(results))
}

// handleAdminCommand handles /admin grant|revoke|trials.
// Only the owner can use this command; everyone else is silently ignored.
func (b *Bot) handleAdminCommand(ctx context.Context, session *UserSession, args []string) {
	if b.svc.OwnerUserID == "" || session.userKey() != b.svc.OwnerUserID {
		log.Warn().Int64("userId", session.userId).Msg("non-owner tried /admin")
		session.reply(MsgStartPrompt)
		return
	}
	if len(args) < 2 {
		session.reply(MsgAdminUsage)
		return
	}

	target, ok := parseUserKey(args[1])
	if !ok {
		session.reply(MsgAdminInvalidUser)
		return
	}

	switch args[0] {
	case "grant":
		if err := b.svc.Guard.Grant(ctx, target); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminGranted, target)
	case "revoke":
		if err := b.svc.Guard.Revoke(ctx, target); err != nil {
			if errors.Is(err, entitlement.ErrProfileNotFound) {
				session.reply(analysis.UserMessage(analysis.KindProfileNotFound))
				return
			}
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminRevoked, target)
	case "trials":
		if len(args) < 3 {
			session.reply(MsgAdminUsage)
			return
		}
		count, err := strconv.Atoi(args[2])
		if err != nil || (count < 0 && count != entitlement.UnlimitedTrials) {
			session.reply(MsgAdminInvalidTrials)
			return
		}
		if err := b.svc.Guard.SetTrials(ctx, target, count); err != nil {
			session.replyWithError(err)
			return
		}
		session.reply(MsgAdminTrialsSet, target, count)
	default:
		session.reply(MsgAdminUsage)
	}
	log.Info().Str("target", target).Str("action", args[0]).Msg("admin command")
}
