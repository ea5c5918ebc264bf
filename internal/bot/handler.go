package bot

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"summarist/internal/domain"
	"summarist/internal/extract"

	"github.com/go-telegram/bot/models"
	"mvdan.cc/xurls/v2"
)

type Store interface {
	SaveCredential(ctx context.Context, c domain.Credential) error
	GetCredential(ctx context.Context, userID int64, provider domain.Provider) (domain.Credential, error)
	RemoveCredential(ctx context.Context, userID int64, provider domain.Provider) error
	SetProvider(ctx context.Context, userID int64, provider domain.Provider) error
	GetProvider(ctx context.Context, userID int64) (domain.Provider, error)
	SaveSummary(ctx context.Context, s domain.Summary) error
	GetSummary(ctx context.Context, userID int64) (domain.Summary, error)
	RemoveSummary(ctx context.Context, userID int64) error
}

type Summarizer interface {
	Summarize(ctx context.Context, req domain.SummaryRequest) (string, error)
}

type CredentialVerifier interface {
	Verify(ctx context.Context, c domain.Credential) (domain.CredentialStatus, error)
}

type ArticleFetcher interface {
	Fetch(ctx context.Context, pageURL string) (extract.Article, error)
}

// Reply is a MarkdownV2 message with an optional inline keyboard.
type Reply struct {
	Text     string
	Keyboard *models.InlineKeyboardMarkup
}

// Handler turns user input into replies. It knows nothing about the
// Telegram transport besides the reply format.
type Handler struct {
	store      Store
	summarizer Summarizer
	verifier   CredentialVerifier
	fetcher    ArticleFetcher
	limiter    *userLimiter
	log        *slog.Logger
}

// NewHandler builds a handler. A nil fetcher disables article extraction.
func NewHandler(
	store Store,
	summarizer Summarizer,
	verifier CredentialVerifier,
	fetcher ArticleFetcher,
	requestsPerMinute int,
	log *slog.Logger,
) *Handler {
	return &Handler{
		store:      store,
		summarizer: summarizer,
		verifier:   verifier,
		fetcher:    fetcher,
		limiter:    newUserLimiter(requestsPerMinute),
		log:        log,
	}
}

// HandleMessage returns the reply for a text message. A non-nil error is
// meant for logs; the reply already tells the user what went wrong.
func (h *Handler) HandleMessage(ctx context.Context, userID int64, text string) (Reply, error) {
	text = strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
		return Reply{Text: welcomeText}, nil
	case strings.HasPrefix(text, "/provider"):
		return h.handleProviderCommand(ctx, userID, strings.TrimPrefix(text, "/provider"))
	case strings.HasPrefix(text, "/key"):
		return h.handleKeyCommand(ctx, userID, strings.TrimPrefix(text, "/key"))
	case strings.HasPrefix(text, "/status"):
		return h.handleStatusCommand(ctx, userID)
	case strings.HasPrefix(text, "/forget"):
		return h.handleForgetCommand(ctx, userID)
	case strings.HasPrefix(text, "/reset"):
		return h.handleResetCommand(ctx, userID)
	default:
		return h.handleRandomText(ctx, userID, text)
	}
}

func (h *Handler) handleRandomText(ctx context.Context, userID int64, text string) (Reply, error) {
	articleURL, ok := findArticleURL(text)
	if !ok {
		return Reply{Text: noLinkText}, nil
	}

	return h.summarize(ctx, userID, articleURL)
}

// findArticleURL returns the first http(s) URL in text.
func findArticleURL(text string) (string, bool) {
	for _, candidate := range xurls.Strict().FindAllString(text, -1) {
		u, err := url.Parse(strings.TrimSpace(candidate))
		if err != nil || u.Host == "" {
			continue
		}

		if scheme := strings.ToLower(u.Scheme); scheme == "http" || scheme == "https" {
			return u.String(), true
		}
	}

	return "", false
}
