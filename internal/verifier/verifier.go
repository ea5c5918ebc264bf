package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"summarist/internal/domain"
)

type Summarizer interface {
	Summarize(ctx context.Context, req domain.SummaryRequest) (string, error)
}

type Store interface {
	ListCredentials(ctx context.Context) ([]domain.Credential, error)
	SetCredentialStatus(
		ctx context.Context,
		userID int64,
		provider domain.Provider,
		status domain.CredentialStatus,
	) error
}

// Verifier checks credentials against the providers through the broker, so
// verification shares the dispatch spacing with summaries.
type Verifier struct {
	broker Summarizer
	store  Store
	log    *slog.Logger
}

func New(broker Summarizer, store Store, log *slog.Logger) *Verifier {
	return &Verifier{
		broker: broker,
		store:  store,
		log:    log,
	}
}

// Verify returns the credential status implied by the provider's answer.
// A malformed credential is invalid and also returned as an error. Failures
// that say nothing about the credential keep the current status.
func (v *Verifier) Verify(ctx context.Context, c domain.Credential) (domain.CredentialStatus, error) {
	_, err := v.broker.Summarize(ctx, domain.SummaryRequest{
		Operation:      domain.OperationVerify,
		Provider:       c.Provider,
		Credential:     c.Secret,
		OrganizationID: c.OrganizationID,
		ProjectID:      c.ProjectID,
	})

	switch kind := domain.KindOf(err); {
	case err == nil:
		return domain.CredentialStatusValid, nil
	case kind == domain.FailureAuthentication:
		return domain.CredentialStatusInvalid, nil
	case kind == domain.FailureInvalidCredentialFormat:
		return domain.CredentialStatusInvalid, fmt.Errorf("verify credential: %w", err)
	default:
		status := c.Status
		if status == "" {
			status = domain.CredentialStatusUnknown
		}

		return status, fmt.Errorf("verify credential: %w", err)
	}
}

// VerifyAll re-checks every stored credential and persists status changes.
func (v *Verifier) VerifyAll(ctx context.Context) error {
	credentials, err := v.store.ListCredentials(ctx)
	if err != nil {
		return fmt.Errorf("list credentials: %w", err)
	}

	var errs []error
	changed := 0

	for _, c := range credentials {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		status, verifyErr := v.Verify(ctx, c)
		if verifyErr != nil {
			v.log.WarnContext(ctx, "Failed to verify credential",
				"error", verifyErr,
				"userID", c.UserID,
				"provider", c.Provider.String(),
				"credential", domain.MaskSecret(c.Secret))

			errs = append(errs, verifyErr)
		}

		if status == c.Status {
			continue
		}

		if err = v.store.SetCredentialStatus(ctx, c.UserID, c.Provider, status); err != nil {
			errs = append(errs, fmt.Errorf("set credential status: %w", err))
			continue
		}
		changed++
	}

	v.log.InfoContext(ctx, "Credentials are verified",
		"credentialCount", len(credentials),
		"changedCount", changed,
		"errorCount", len(errs))

	return errors.Join(errs...)
}
