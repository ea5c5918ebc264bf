package database_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"summarist/internal/database"
	"summarist/internal/domain"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.sqlite")

	db, err := database.New(context.Background(), dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err = db.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	return db
}

func TestCredentialLifecycle(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	if _, err := db.GetCredential(ctx, 1, domain.ProviderOpenAI); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	err := db.SaveCredential(ctx, domain.Credential{
		UserID:         1,
		Provider:       domain.ProviderOpenAI,
		Secret:         " sk-one ",
		OrganizationID: "org",
	})
	if err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}

	c, err := db.GetCredential(ctx, 1, domain.ProviderOpenAI)
	if err != nil {
		t.Fatalf("GetCredential: %v", err)
	}
	if c.Secret != "sk-one" || c.OrganizationID != "org" || c.Status != domain.CredentialStatusUnknown {
		t.Fatalf("unexpected credential: %+v", c)
	}

	if err = db.SetCredentialStatus(ctx, 1, domain.ProviderOpenAI, domain.CredentialStatusValid); err != nil {
		t.Fatalf("SetCredentialStatus: %v", err)
	}

	if err = db.SaveCredential(ctx, domain.Credential{
		UserID:   1,
		Provider: domain.ProviderAnthropic,
		Secret:   "sk-ant-two",
	}); err != nil {
		t.Fatalf("SaveCredential: %v", err)
	}

	all, err := db.ListCredentials(ctx)
	if err != nil {
		t.Fatalf("ListCredentials: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(all))
	}
	if all[1].Provider != domain.ProviderOpenAI || all[1].Status != domain.CredentialStatusValid {
		t.Fatalf("unexpected credential order or status: %+v", all)
	}

	if err = db.RemoveCredential(ctx, 1, domain.ProviderOpenAI); err != nil {
		t.Fatalf("RemoveCredential: %v", err)
	}
	if _, err = db.GetCredential(ctx, 1, domain.ProviderOpenAI); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestSaveCredentialRejectsEmptySecret(t *testing.T) {
	db := newTestDatabase(t)

	err := db.SaveCredential(context.Background(), domain.Credential{UserID: 1, Provider: domain.ProviderOpenAI})
	if err == nil {
		t.Fatalf("expected error for empty credential")
	}
}

func TestProviderSelection(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	p, err := db.GetProvider(ctx, 7)
	if err != nil || p != domain.ProviderOpenAI {
		t.Fatalf("expected OpenAI default, got %v (%v)", p, err)
	}

	if err = db.SetProvider(ctx, 7, domain.ProviderAnthropic); err != nil {
		t.Fatalf("SetProvider: %v", err)
	}

	p, err = db.GetProvider(ctx, 7)
	if err != nil || p != domain.ProviderAnthropic {
		t.Fatalf("expected Anthropic, got %v (%v)", p, err)
	}
}

func TestSummaryCache(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	if err := db.SaveSummary(ctx, domain.Summary{UserID: 3, URL: "https://a.example", Text: "A"}); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	if err := db.SaveSummary(ctx, domain.Summary{UserID: 3, URL: "https://b.example", Text: "B"}); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}

	s, err := db.GetSummary(ctx, 3)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if s.URL != "https://b.example" || s.Text != "B" {
		t.Fatalf("expected the latest summary to replace the previous one, got %+v", s)
	}

	if err = db.RemoveSummary(ctx, 3); err != nil {
		t.Fatalf("RemoveSummary: %v", err)
	}
	if _, err = db.GetSummary(ctx, 3); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
