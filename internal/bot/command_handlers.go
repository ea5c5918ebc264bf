package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"summarist/internal/database"
	"summarist/internal/domain"
	"summarist/internal/markdown"
)

const (
	// Telegram rejects messages longer than 4096 characters. The limit is
	// applied to the escaped text, which is never shorter than the rendered one.
	maxMessageRunes = 4096
	maxTitleRunes   = 256
	ellipsis        = "…"

	providerCallbackPrefix = "provider_"
)

const welcomeText = `🤖 *Welcome to Summarist\!*

Send me a link to an article and I will reply with a short summary\.

– Choose a provider with /provider
– Set your API key with /key \<key\> \[organization\] \[project\]
– Check your settings with /status
– Remove the key of the selected provider with /forget
– Drop the saved summary with /reset`

const (
	noLinkText           = "✖️ No article link found\\. Send me an http or https URL\\."
	tooManyRequestsText  = "⏳ Too many requests\\. Please try again in a minute\\."
	chooseProviderText   = "Choose the provider used for summaries:"
	keyUsageText         = "Usage: /key \\<key\\> \\[organization\\] \\[project\\]"
	keyRejectedText      = "⚠️ Key is saved, but %s rejected it\\. Please check it\\."
	keyVerifiedText      = "✅ Key is saved and verified for %s\\."
	keyUnverifiedText    = "⚠️ Key is saved, but it could not be verified: %s"
	keyFormatText        = "❌ %s"
	missingKeyText       = "🔑 Please set your %s API key with /key first\\."
	forgetText           = "✅ %s key is removed\\."
	resetText            = "✅ Saved summary is removed\\."
	failedText           = "❌ Failed\\."
	summaryErrorText     = "❌ Error getting summary: %s"
	unknownProviderText  = "❌ Unknown provider\\. Use openai or anthropic\\."
	providerSelectedText = "✅ Provider is set to %s\\."
)

func (h *Handler) handleProviderCommand(ctx context.Context, userID int64, args string) (Reply, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return Reply{Text: chooseProviderText, Keyboard: providerKeyboard()}, nil
	}

	return h.selectProvider(ctx, userID, args)
}

func (h *Handler) selectProvider(ctx context.Context, userID int64, name string) (Reply, error) {
	provider, err := domain.ParseProvider(name)
	if err != nil {
		return Reply{Text: unknownProviderText}, nil
	}

	if err = h.store.SetProvider(ctx, userID, provider); err != nil {
		return Reply{Text: failedText}, fmt.Errorf("set provider: %w", err)
	}

	return Reply{Text: fmt.Sprintf(providerSelectedText, markdown.Bold(provider.String()))}, nil
}

// HandleCallback handles inline keyboard presses.
func (h *Handler) HandleCallback(ctx context.Context, userID int64, data string) (Reply, error) {
	if name, ok := strings.CutPrefix(data, providerCallbackPrefix); ok {
		return h.selectProvider(ctx, userID, name)
	}

	return Reply{Text: failedText}, fmt.Errorf("unknown callback data %q", data)
}

func (h *Handler) handleKeyCommand(ctx context.Context, userID int64, args string) (Reply, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return Reply{Text: keyUsageText}, nil
	}

	if !h.limiter.allow(userID) {
		return Reply{Text: tooManyRequestsText}, nil
	}

	provider, err := h.store.GetProvider(ctx, userID)
	if err != nil {
		return Reply{Text: failedText}, fmt.Errorf("get provider: %w", err)
	}

	c := domain.Credential{
		UserID:   userID,
		Provider: provider,
		Secret:   fields[0],
	}
	if len(fields) > 1 {
		c.OrganizationID = fields[1]
	}
	if len(fields) > 2 {
		c.ProjectID = fields[2]
	}

	status, verifyErr := h.verifier.Verify(ctx, c)
	if domain.KindOf(verifyErr) == domain.FailureInvalidCredentialFormat {
		return Reply{Text: fmt.Sprintf(keyFormatText, markdown.EscapeV2(verifyErr.Error()))}, nil
	}

	c.Status = status
	if err = h.store.SaveCredential(ctx, c); err != nil {
		return Reply{Text: failedText}, fmt.Errorf("save credential: %w", err)
	}

	h.log.InfoContext(ctx, "Credential is saved",
		"userID", userID,
		"provider", provider.String(),
		"credential", domain.MaskSecret(c.Secret),
		"status", string(status))

	switch {
	case verifyErr != nil:
		return Reply{Text: fmt.Sprintf(keyUnverifiedText, markdown.EscapeV2(verifyErr.Error()))}, nil
	case status == domain.CredentialStatusInvalid:
		return Reply{Text: fmt.Sprintf(keyRejectedText, markdown.EscapeV2(provider.String()))}, nil
	default:
		return Reply{Text: fmt.Sprintf(keyVerifiedText, markdown.EscapeV2(provider.String()))}, nil
	}
}

func (h *Handler) handleStatusCommand(ctx context.Context, userID int64) (Reply, error) {
	provider, err := h.store.GetProvider(ctx, userID)
	if err != nil {
		return Reply{Text: failedText}, fmt.Errorf("get provider: %w", err)
	}

	b := strings.Builder{}
	b.WriteString("*⚙️ Settings*\n\n")
	b.WriteString("Provider: " + markdown.Bold(provider.String()) + "\n")

	c, err := h.store.GetCredential(ctx, userID, provider)
	switch {
	case errors.Is(err, database.ErrNotFound):
		b.WriteString("API key: not set\n")
	case err != nil:
		return Reply{Text: failedText}, fmt.Errorf("get credential: %w", err)
	default:
		b.WriteString("API key: " + markdown.Code(domain.MaskSecret(c.Secret)) + "\n")
		b.WriteString("API key status: " + markdown.EscapeV2(string(c.Status)) + "\n")
		if c.OrganizationID != "" {
			b.WriteString("Organization: " + markdown.Code(c.OrganizationID) + "\n")
		}
		if c.ProjectID != "" {
			b.WriteString("Project: " + markdown.Code(c.ProjectID) + "\n")
		}
	}

	s, err := h.store.GetSummary(ctx, userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return Reply{Text: failedText}, fmt.Errorf("get summary: %w", err)
	default:
		b.WriteString("Saved summary: " + markdown.EscapeV2(s.URL) + "\n")
	}

	return Reply{Text: strings.TrimRight(b.String(), "\n")}, nil
}

func (h *Handler) handleForgetCommand(ctx context.Context, userID int64) (Reply, error) {
	provider, err := h.store.GetProvider(ctx, userID)
	if err != nil {
		return Reply{Text: failedText}, fmt.Errorf("get provider: %w", err)
	}

	if err = h.store.RemoveCredential(ctx, userID, provider); err != nil {
		return Reply{Text: failedText}, fmt.Errorf("remove credential: %w", err)
	}

	return Reply{Text: fmt.Sprintf(forgetText, markdown.Bold(provider.String()))}, nil
}

func (h *Handler) handleResetCommand(ctx context.Context, userID int64) (Reply, error) {
	if err := h.store.RemoveSummary(ctx, userID); err != nil {
		return Reply{Text: failedText}, fmt.Errorf("remove summary: %w", err)
	}

	return Reply{Text: resetText}, nil
}

// summarize answers from the saved summary when it belongs to the same URL.
// A saved summary for another URL is stale and gets dropped.
func (h *Handler) summarize(ctx context.Context, userID int64, articleURL string) (Reply, error) {
	saved, err := h.store.GetSummary(ctx, userID)
	switch {
	case err == nil && saved.URL == articleURL:
		return Reply{Text: formatSummary("", saved.Text)}, nil
	case err == nil:
		if err = h.store.RemoveSummary(ctx, userID); err != nil {
			h.log.WarnContext(ctx, "Failed to remove stale summary",
				"error", err,
				"userID", userID,
				"url", saved.URL)
		}
	case !errors.Is(err, database.ErrNotFound):
		h.log.WarnContext(ctx, "Failed to get saved summary",
			"error", err,
			"userID", userID)
	}

	if !h.limiter.allow(userID) {
		return Reply{Text: tooManyRequestsText}, nil
	}

	provider, err := h.store.GetProvider(ctx, userID)
	if err != nil {
		return Reply{Text: failedText}, fmt.Errorf("get provider: %w", err)
	}

	c, err := h.store.GetCredential(ctx, userID, provider)
	if errors.Is(err, database.ErrNotFound) {
		return Reply{Text: fmt.Sprintf(missingKeyText, markdown.EscapeV2(provider.String()))}, nil
	}
	if err != nil {
		return Reply{Text: failedText}, fmt.Errorf("get credential: %w", err)
	}

	req := domain.SummaryRequest{
		Operation:      domain.OperationSummarize,
		URL:            articleURL,
		Provider:       provider,
		Credential:     c.Secret,
		OrganizationID: c.OrganizationID,
		ProjectID:      c.ProjectID,
	}

	title := ""
	if h.fetcher != nil {
		article, fetchErr := h.fetcher.Fetch(ctx, articleURL)
		if fetchErr != nil {
			h.log.WarnContext(ctx, "Failed to extract article so only URL will be sent",
				"error", fetchErr,
				"url", articleURL)
		} else {
			title = article.Title
			req.Excerpt = article.Text
		}
	}

	summary, err := h.summarizer.Summarize(ctx, req)
	if err != nil {
		return Reply{Text: fmt.Sprintf(summaryErrorText, markdown.EscapeV2(err.Error()))},
			fmt.Errorf("summarize: %w", err)
	}

	if err = h.store.SaveSummary(ctx, domain.Summary{UserID: userID, URL: articleURL, Text: summary}); err != nil {
		h.log.WarnContext(ctx, "Failed to save summary",
			"error", err,
			"userID", userID,
			"url", articleURL)
	}

	return Reply{Text: formatSummary(title, summary)}, nil
}

func formatSummary(title, summary string) string {
	header := ""
	if title = strings.TrimSpace(title); title != "" {
		title, _ = truncateEscaped(title, maxTitleRunes)
		header = "📰 " + markdown.Bold(title) + "\n\n"
	}

	budget := maxMessageRunes - utf8.RuneCountInString(header)

	body, cut := truncateEscaped(summary, budget)
	if cut {
		body, _ = truncateEscaped(summary, budget-utf8.RuneCountInString(ellipsis))
		body += ellipsis
	}

	return header + body
}

// truncateEscaped escapes s for MarkdownV2 and keeps as many whole source
// runes as fit into maxRunes escaped runes, so an escape pair is never split.
func truncateEscaped(s string, maxRunes int) (string, bool) {
	escaped := markdown.EscapeV2(s)
	if utf8.RuneCountInString(escaped) <= maxRunes {
		return escaped, false
	}

	var b strings.Builder
	n := 0

	for _, r := range s {
		e := markdown.EscapeV2(string(r))
		width := utf8.RuneCountInString(e)
		if n+width > maxRunes {
			break
		}
		b.WriteString(e)
		n += width
	}

	return b.String(), true
}
