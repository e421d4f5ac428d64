package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestMessageImage(t *testing.T) {
	tests := []struct {
		name        string
		message     *tgbotapi.Message
		wantFileID  string
		wantOK      bool
		wantIsImage bool
	}{
		{
			name: "largest photo size",
			message: &tgbotapi.Message{Photo: []tgbotapi.PhotoSize{
				{FileID: "small", Width: 90, Height: 120, FileSize: 1000},
				{FileID: "large", Width: 960, Height: 1280, FileSize: 90000},
				{FileID: "medium", Width: 320, Height: 427, FileSize: 9000},
			}},
			wantFileID:  "large",
			wantOK:      true,
			wantIsImage: true,
		},
		{
			name:        "image document",
			message:     &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/png"}},
			wantFileID:  "doc",
			wantOK:      true,
			wantIsImage: true,
		},
		{
			name:    "pdf document",
			message: &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "pdf", MimeType: "application/pdf"}},
			wantOK:  true,
		},
		{
			name:    "text only",
			message: &tgbotapi.Message{Text: "hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, ok, isImage := messageImage(tt.message)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantIsImage, isImage)
			assert.Equal(t, tt.wantFileID, file.FileID)
		})
	}
}

func TestParseUserKey(t *testing.T) {
	key, ok := parseUserKey("12345")
	assert.True(t, ok)
	assert.Equal(t, "tg:12345", key)

	key, ok = parseUserKey("web:abc")
	assert.True(t, ok)
	assert.Equal(t, "web:abc", key)

	_, ok = parseUserKey("bob")
	assert.False(t, ok)
}

func TestParseCommand(t *testing.T) {
	cmd, args := parseCommand("/Admin@skinwise_bot  trials 42 5")
	assert.Equal(t, "/admin", cmd)
	assert.Equal(t, []string{"trials", "42", "5"}, args)

	cmd, args = parseCommand("")
	assert.Empty(t, cmd)
	assert.Empty(t, args)
}

func TestRegisterCommands(t *testing.T) {
	tg := new(botApiMock)
	tg.On("Request", mock.MatchedBy(func(c tgbotapi.SetMyCommandsConfig) bool {
		for _, cmd := range c.Commands {
			if cmd.Command == "admin" {
				return false
			}
		}
		return len(c.Commands) == len(menuCommands)
	})).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	RegisterCommands(tg)
	tg.AssertExpectations(t)
}
