package bot

import (
	"context"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Telegram shows a chat action for about five seconds.
const chatActionInterval = 4 * time.Second

func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	spinnerCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(chatActionInterval)
		defer ticker.Stop()

		for {
			if _, err := b.api.SendChatAction(spinnerCtx, &tgbot.SendChatActionParams{
				ChatID: chatID,
				Action: models.ChatActionTyping,
			}); err != nil && spinnerCtx.Err() == nil {
				b.log.DebugContext(spinnerCtx, "Failed to send chat action",
					"error", err,
					"chatID", chatID)
			}

			select {
			case <-spinnerCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	err := fn()

	stop()
	<-done

	return err
}
