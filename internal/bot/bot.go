package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const updateTimeout = 5 * time.Minute

type Bot struct {
	api          *tgbot.Bot
	handler      *Handler
	allowedUsers []int64
	wg           sync.WaitGroup
	log          *slog.Logger
}

func New(
	token string,
	handler *Handler,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	b := &Bot{
		handler:      handler,
		allowedUsers: allowedUsers,
		log:          log,
	}

	api, err := tgbot.New(token, tgbot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}
	b.api = api

	return b, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.api.Start(ctx)
}

// Stop waits for in-flight updates.
func (b *Bot) Stop() {
	b.wg.Wait()
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		if !b.userAllowed(update.Message.From.ID) {
			return
		}
		b.spawn(ctx, func(ctx context.Context) error {
			return b.handleMessage(ctx, update.Message)
		})
	case update.CallbackQuery != nil:
		if !b.userAllowed(update.CallbackQuery.From.ID) {
			return
		}
		b.spawn(ctx, func(ctx context.Context) error {
			return b.handleCallbackQuery(ctx, update.CallbackQuery)
		})
	}
}

// spawn runs fn detached from the polling loop so one slow summary does not
// block other users.
func (b *Bot) spawn(ctx context.Context, fn func(ctx context.Context) error) {
	b.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), updateTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			b.log.ErrorContext(ctx, "Failed to handle update",
				"error", err)
		}
	})
}

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	// Keys must not stay in the chat history.
	if strings.HasPrefix(message.Text, "/key") {
		if _, err := b.api.DeleteMessage(ctx, &tgbot.DeleteMessageParams{
			ChatID:    chatID,
			MessageID: message.ID,
		}); err != nil {
			b.log.WarnContext(ctx, "Failed to delete key message",
				"error", err,
				"userID", userID)
		}
	}

	return b.withSpinner(ctx, chatID, func() error {
		reply, err := b.handler.HandleMessage(ctx, userID, message.Text)
		if sendErr := b.send(ctx, chatID, reply); sendErr != nil {
			return sendErr
		}

		return err
	})
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *models.CallbackQuery) error {
	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	}); err != nil {
		b.log.WarnContext(ctx, "Failed to answer callback query",
			"error", err,
			"userID", query.From.ID)
	}

	reply, err := b.handler.HandleCallback(ctx, query.From.ID, query.Data)
	if sendErr := b.send(ctx, query.From.ID, reply); sendErr != nil {
		return sendErr
	}

	return err
}

func (b *Bot) send(ctx context.Context, chatID int64, reply Reply) error {
	if reply.Text == "" {
		return nil
	}

	params := &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      reply.Text,
		ParseMode: models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: tgbot.True(),
		},
	}
	if reply.Keyboard != nil {
		params.ReplyMarkup = reply.Keyboard
	}

	if _, err := b.api.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}
