package bot

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const userKeyPrefix = "tg:"

// UserKey is the profile identity of a Telegram user.
func UserKey(telegramID int64) string {
	return userKeyPrefix + strconv.FormatInt(telegramID, 10)
}

// parseUserKey accepts a bare Telegram ID or any prefixed profile identity.
func parseUserKey(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if strings.Contains(s, ":") {
		return s, true
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return "", false
	}
	return UserKey(id), true
}

// imageFile is an image attached to a message.
type imageFile struct {
	FileID   string
	FileSize int
}

// messageImage returns the image attached to message. Photos yield their
// largest size; documents are accepted when their MIME type is an image.
// ok is false when the message carries no image; isImage is false when it
// carries a document that is not an image.
func messageImage(message *tgbotapi.Message) (file imageFile, ok bool, isImage bool) {
	if len(message.Photo) > 0 {
		largest := message.Photo[0]
		for _, p := range message.Photo[1:] {
			if p.Width*p.Height > largest.Width*largest.Height {
				largest = p
			}
		}
		return imageFile{FileID: largest.FileID, FileSize: largest.FileSize}, true, true
	}
	if doc := message.Document; doc != nil {
		if !strings.HasPrefix(doc.MimeType, "image/") {
			return imageFile{}, true, false
		}
		return imageFile{FileID: doc.FileID, FileSize: doc.FileSize}, true, true
	}
	return imageFile{}, false, false
}
