package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// menuCommands is the command menu shown in Telegram clients. /admin is
// owner-only and is left out.
var menuCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start and show your free analyses"},
	{Command: "status", Description: "Show remaining analyses"},
	{Command: "ingredients", Description: "Read a product's ingredient label"},
	{Command: "check", Description: "Check a product against your last diagnosis"},
	{Command: "new", Description: "Start over with a new photo"},
	{Command: "cancel", Description: "Cancel the pending action"},
	{Command: "history", Description: "Show your recent analyses"},
	{Command: "terms", Description: "Show the disclaimer"},
	{Command: "version", Description: "Show version info"},
}

// RegisterCommands publishes the command menu. A failure only loses the menu,
// so it is logged and otherwise ignored.
func RegisterCommands(tg MessageSender) {
	if _, err := tg.Request(tgbotapi.NewSetMyCommands(menuCommands...)); err != nil {
		log.Error().Err(err).Msg("failed to set bot commands")
		return
	}
	log.Info().Int("count", len(menuCommands)).Msg("registered bot commands")
}
