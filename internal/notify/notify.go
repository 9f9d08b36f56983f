package notify

import (
	"context"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"
)

// Notifier delivers text to a chat.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Telegram sends messages as Markdown, falling back to plain text when
// the markup fails to parse. Scan output quotes market questions, and
// those regularly contain characters Telegram rejects.
type Telegram struct {
	Bot    *telego.Bot
	Logger *zap.Logger
}

func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	msg := tu.Message(tu.ID(chatID), text)
	msg.ParseMode = telego.ModeMarkdown
	if _, err := t.Bot.SendMessage(ctx, msg); err != nil {
		if t.Logger != nil {
			t.Logger.Debug("markdown send failed, retrying plain",
				zap.Int64("chat_id", chatID), zap.Error(err))
		}
		plain := tu.Message(tu.ID(chatID), text)
		if _, err := t.Bot.SendMessage(ctx, plain); err != nil {
			return err
		}
	}
	return nil
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, chatID int64, text string) error

func (f Func) Send(ctx context.Context, chatID int64, text string) error {
	return f(ctx, chatID, text)
}
