package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/telegram-skinwise-bot/internal/analysis"
	"github.com/raine/telegram-skinwise-bot/internal/followup"
	"github.com/rs/zerolog/log"
)

// SessionMessage represents a message to be processed by the session worker.
type SessionMessage struct {
	Type string
	Ctx  context.Context
	Done chan struct{} // Closed when processing is complete (for synchronous dispatch)

	Message *tgbotapi.Message
	Text    string
}

// MessageSender abstracts the ability to send Telegram messages.
// This interface decouples UserSession from the full Bot struct,
// improving testability.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MessageHandler is the interface for processing session messages.
// This allows the session to dispatch to external handlers without circular dependencies.
type MessageHandler interface {
	HandleSessionMessage(ctx context.Context, session *UserSession, msg SessionMessage)
}

// ImageMode decides what the next image a user sends is used for.
type ImageMode int

const (
	ImageModeAnalyze ImageMode = iota
	ImageModeIngredients
	ImageModeCheck
)

func (m ImageMode) String() string {
	switch m {
	case ImageModeIngredients:
		return "ingredients"
	case ImageModeCheck:
		return "check"
	default:
		return "analyze"
	}
}

// UserSession represents a user's session with the bot.
//
// Threading model:
//   - Each session has a dedicated worker goroutine that processes messages sequentially,
//     so a user never has two analyses or follow-up questions in flight
//   - Message handlers are called only from the worker and can access session state without locks
//   - Public accessors use the mutex for external callers
type UserSession struct {
	userId int64
	sender MessageSender
	mu     sync.Mutex

	// Worker channel for sequential message processing
	inbox   chan SessionMessage
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	handler MessageHandler // Set after construction to avoid circular deps

	mode         ImageMode
	lastResult   *analysis.Result
	conversation *followup.Conversation
}

// userKey is the identity the session uses in the profile store.
func (s *UserSession) userKey() string {
	return UserKey(s.userId)
}

// --- Thread-safe accessors ---

// Mode returns the current image mode.
func (s *UserSession) Mode() ImageMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// LastResult returns the most recent analysis of this session, if any.
func (s *UserSession) LastResult() *analysis.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// setResult starts a new follow-up conversation about result.
// Called from session worker.
func (s *UserSession) setResult(result *analysis.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastResult = result
	s.conversation = followup.NewConversation(result)
	s.mode = ImageModeAnalyze
}

func (s *UserSession) setMode(mode ImageMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// reset clears the pending image mode. When forget is set the last analysis
// and its conversation are dropped too.
func (s *UserSession) reset(forget bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Info().Int64("userId", s.userId).Bool("forget", forget).Msg("reset user session")
	s.mode = ImageModeAnalyze
	if forget {
		s.lastResult = nil
		s.conversation = nil
	}
}

func (s *UserSession) replyWithError(err error) tgbotapi.Message {
	log.Error().Stack().Err(err).Int64("userId", s.userId).Send()
	return s.reply(MsgUnexpectedErr)
}

// replyWithKind reports a failed operation with the message for its kind.
func (s *UserSession) replyWithKind(err error) tgbotapi.Message {
	return s.reply(analysis.UserMessage(analysis.KindOf(err)))
}

// sendTypingAction sends a "typing" chat action to show the user that the bot is processing.
// The typing indicator automatically expires after ~5 seconds in Telegram.
func (s *UserSession) sendTypingAction() {
	action := tgbotapi.NewChatAction(s.userId, tgbotapi.ChatTyping)
	// Use Request instead of Send because sendChatAction returns a boolean, not a Message
	_, err := s.sender.Request(action)
	if err != nil {
		log.Debug().Err(err).Int64("userId", s.userId).Msg("failed to send typing action")
	}
}

// startTypingLoop sends a typing action every 4 seconds until the context is cancelled.
// This keeps the typing indicator visible during long-running operations like image analysis.
// Run this in a goroutine and cancel the context when done.
func (s *UserSession) startTypingLoop(ctx context.Context) {
	s.sendTypingAction()

	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sendTypingAction()
		}
	}
}

func (s *UserSession) replyWithMessage(msg tgbotapi.MessageConfig) tgbotapi.Message {
	msg.ChatID = s.userId
	sent, err := s.sender.Send(msg)
	if err != nil {
		log.Error().Stack().
			Int64("userId", s.userId).
			Err(fmt.Errorf("failed to send reply message: %w", err)).Send()
	} else {
		log.Debug().Int64("userId", s.userId).Int("messageId", sent.MessageID).Msg("sent message")
	}

	return sent
}

func (s *UserSession) reply(text string, a ...any) tgbotapi.Message {
	return s.replyWithMessage(tgbotapi.MessageConfig{
		Text:      formatReplyText(text, a...),
		ParseMode: tgbotapi.ModeMarkdown,
	})
}

// replyPlain sends model generated text without any markup parsing.
func (s *UserSession) replyPlain(text string) tgbotapi.Message {
	return s.replyWithMessage(tgbotapi.MessageConfig{Text: text})
}

// --- Worker methods ---

// StartWorker starts the session's message processing worker goroutine.
// Must be called after setting the handler.
func (s *UserSession) StartWorker() {
	s.wg.Add(1)
	go s.runWorker()
}

// SetHandler sets the message handler for this session.
func (s *UserSession) SetHandler(handler MessageHandler) {
	s.handler = handler
}

// runWorker is the main worker loop that processes messages sequentially.
func (s *UserSession) runWorker() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			// Drain any remaining messages and signal completion
			for {
				select {
				case msg := <-s.inbox:
					if msg.Done != nil {
						close(msg.Done)
					}
				default:
					return
				}
			}
		case msg := <-s.inbox:
			s.processMessage(msg)
		}
	}
}

// processMessage handles a single message from the inbox.
func (s *UserSession) processMessage(msg SessionMessage) {
	defer func() {
		// Recover from any panics to keep the worker running
		if r := recover(); r != nil {
			log.Error().
				Int64("userId", s.userId).
				Interface("panic", r).
				Msg("recovered from panic in session worker")
		}
		if msg.Done != nil {
			close(msg.Done)
		}
	}()

	if s.handler == nil {
		log.Error().Int64("userId", s.userId).Msg("session handler not set")
		return
	}

	s.handler.HandleSessionMessage(msg.Ctx, s, msg)
}

// Send queues a message for processing by the worker.
// This is non-blocking - it returns immediately after queuing.
func (s *UserSession) Send(msg SessionMessage) {
	select {
	case s.inbox <- msg:
	case <-s.ctx.Done():
		if msg.Done != nil {
			close(msg.Done)
		}
	}
}

// SendSync queues a message and waits for it to be processed.
// Returns when the message has been fully processed by the worker.
func (s *UserSession) SendSync(msg SessionMessage) {
	msg.Done = make(chan struct{})
	s.Send(msg)
	<-msg.Done
}

// Stop stops the worker and waits for it to finish.
func (s *UserSession) Stop() {
	s.cancel()
	s.wg.Wait()
}
