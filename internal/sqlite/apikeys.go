package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/clmcore/internal/repository"
)

// tokenPrefix marks generated API keys so they are recognizable in config
// files and logs.
const tokenPrefix = "clm_"

// APIKeyStore resolves bearer tokens to tenants. Only SHA-256 hashes of
// tokens are stored.
type APIKeyStore struct {
	db *DB
}

// NewAPIKeyStore creates an APIKeyStore.
func NewAPIKeyStore(db *DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// ResolveTenant returns the tenant that owns token and stamps the key's
// last_used time.
func (s *APIKeyStore) ResolveTenant(ctx context.Context, token string) (string, error) {
	hash := hashToken(token)
	var tenantID string
	err := s.db.QueryRowContext(ctx, `SELECT tenant_id FROM api_keys WHERE key_hash = ?`, hash).Scan(&tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve api key: %w", err)
	}
	// A failed touch must not reject a valid key.
	_, _ = s.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now(), hash)
	return tenantID, nil
}

// Add registers token for tenantID.
func (s *APIKeyStore) Add(ctx context.Context, token, tenantID, description string) error {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("token and tenant are required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_hash, tenant_id, created_at, description) VALUES (?, ?, ?, ?)`,
		hashToken(token), tenantID, time.Now(), description,
	)
	if err != nil {
		return storageError(err, "failed to add api key")
	}
	return nil
}

// Create generates a new token for tenantID, stores its hash and returns the
// token. The token cannot be recovered later.
func (s *APIKeyStore) Create(ctx context.Context, tenantID, description string) (string, error) {
	token := tokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.Add(ctx, token, tenantID, description); err != nil {
		return "", err
	}
	return token, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
