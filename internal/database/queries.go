package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"summarist/internal/domain"
)

var ErrNotFound = errors.New("not found")

func (d *Database) SaveCredential(ctx context.Context, c domain.Credential) error {
	secret := strings.TrimSpace(c.Secret)
	if secret == "" {
		return errors.New("credential is empty")
	}

	status := c.Status
	if status == "" {
		status = domain.CredentialStatusUnknown
	}

	query := `insert into credentials
		(user_id, provider, credential, organization_id, project_id, status, updated_at)
		values (?, ?, ?, ?, ?, ?, ?)
		on conflict (user_id, provider) do update set
			credential = excluded.credential,
			organization_id = excluded.organization_id,
			project_id = excluded.project_id,
			status = excluded.status,
			updated_at = excluded.updated_at`

	_, err := d.db.ExecContext(ctx, query,
		c.UserID,
		c.Provider.String(),
		secret,
		strings.TrimSpace(c.OrganizationID),
		strings.TrimSpace(c.ProjectID),
		string(status),
		time.Now().UTC().Unix())

	return err
}

func (d *Database) GetCredential(
	ctx context.Context,
	userID int64,
	provider domain.Provider,
) (domain.Credential, error) {
	query := `select credential, organization_id, project_id, status, updated_at
		from credentials where user_id = ? and provider = ?`

	c := domain.Credential{UserID: userID, Provider: provider}

	var status string
	var updatedAt int64

	err := d.db.QueryRowContext(ctx, query, userID, provider.String()).
		Scan(&c.Secret, &c.OrganizationID, &c.ProjectID, &status, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credential{}, ErrNotFound
	}
	if err != nil {
		return domain.Credential{}, fmt.Errorf("failed to scan row: %w", err)
	}

	c.Status = domain.CredentialStatus(status)
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return c, nil
}

func (d *Database) ListCredentials(ctx context.Context) ([]domain.Credential, error) {
	query := `select user_id, provider, credential, organization_id, project_id, status, updated_at
		from credentials order by user_id, provider`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "ListCredentials")
		}
	}()

	var credentials []domain.Credential
	for rows.Next() {
		var c domain.Credential
		var provider, status string
		var updatedAt int64

		if err = rows.Scan(
			&c.UserID,
			&provider,
			&c.Secret,
			&c.OrganizationID,
			&c.ProjectID,
			&status,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		p, parseErr := domain.ParseProvider(provider)
		if parseErr != nil {
			d.log.WarnContext(ctx, "Skipping credential with unknown provider",
				"error", parseErr,
				"userID", c.UserID)

			continue
		}

		c.Provider = p
		c.Status = domain.CredentialStatus(status)
		c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		credentials = append(credentials, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return credentials, nil
}

func (d *Database) SetCredentialStatus(
	ctx context.Context,
	userID int64,
	provider domain.Provider,
	status domain.CredentialStatus,
) error {
	query := "update credentials set status = ?, updated_at = ? where user_id = ? and provider = ?"

	_, err := d.db.ExecContext(ctx, query, string(status), time.Now().UTC().Unix(), userID, provider.String())

	return err
}

func (d *Database) RemoveCredential(ctx context.Context, userID int64, provider domain.Provider) error {
	query := "delete from credentials where user_id = ? and provider = ?"

	_, err := d.db.ExecContext(ctx, query, userID, provider.String())

	return err
}

func (d *Database) SetProvider(ctx context.Context, userID int64, provider domain.Provider) error {
	query := `insert into user_settings (user_id, provider) values (?, ?)
		on conflict (user_id) do update set provider = excluded.provider`

	_, err := d.db.ExecContext(ctx, query, userID, provider.String())

	return err
}

// GetProvider falls back to OpenAI for users who never picked one.
func (d *Database) GetProvider(ctx context.Context, userID int64) (domain.Provider, error) {
	query := "select provider from user_settings where user_id = ?"

	var provider string
	err := d.db.QueryRowContext(ctx, query, userID).Scan(&provider)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProviderOpenAI, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to scan row: %w", err)
	}

	return domain.ParseProvider(provider)
}

func (d *Database) SaveSummary(ctx context.Context, s domain.Summary) error {
	url := strings.TrimSpace(s.URL)
	if url == "" {
		return errors.New("summary URL is empty")
	}

	query := `insert into summaries (user_id, url, summary, created_at) values (?, ?, ?, ?)
		on conflict (user_id) do update set
			url = excluded.url,
			summary = excluded.summary,
			created_at = excluded.created_at`

	_, err := d.db.ExecContext(ctx, query, s.UserID, url, s.Text, time.Now().UTC().Unix())

	return err
}

func (d *Database) GetSummary(ctx context.Context, userID int64) (domain.Summary, error) {
	query := "select url, summary, created_at from summaries where user_id = ?"

	s := domain.Summary{UserID: userID}

	var createdAt int64
	err := d.db.QueryRowContext(ctx, query, userID).Scan(&s.URL, &s.Text, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Summary{}, ErrNotFound
	}
	if err != nil {
		return domain.Summary{}, fmt.Errorf("failed to scan row: %w", err)
	}

	s.CreatedAt = time.Unix(createdAt, 0).UTC()

	return s, nil
}

func (d *Database) RemoveSummary(ctx context.Context, userID int64) error {
	query := "delete from summaries where user_id = ?"

	_, err := d.db.ExecContext(ctx, query, userID)

	return err
}
