package credentials

import (
	"context"
	"errors"
	"strings"

	"orchestrator/internal/infra"
)

const (
	ProviderFreepik = "freepik"
	ProviderOpenAI  = "openai"
)

const (
	querySelectToken = `
SELECT token FROM integration_tokens WHERE provider = $1;
`
	queryUpsertToken = `
INSERT INTO integration_tokens (provider, token, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (provider) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW();
`
)

// Store resolves provider API keys from the database. The mains consult it
// when the corresponding environment variable is unset.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) FreepikAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderFreepik)
}

func (s *Store) OpenAIAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderOpenAI)
}

// Token returns the stored key for provider, or empty when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, querySelectToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("credentials: token is required")
	}
	_, err := s.sql.Exec(ctx, queryUpsertToken, provider, token)
	return err
}
