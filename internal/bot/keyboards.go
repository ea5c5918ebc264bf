package bot

import (
	"summarist/internal/domain"

	"github.com/go-telegram/bot/models"
)

func providerKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{
					Text:         "OpenAI",
					CallbackData: providerCallbackPrefix + domain.ProviderOpenAI.String(),
				},
				{
					Text:         "Anthropic",
					CallbackData: providerCallbackPrefix + domain.ProviderAnthropic.String(),
				},
			},
		},
	}
}
