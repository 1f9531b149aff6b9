package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/existflow/cowork/internal/logger"
	"github.com/existflow/cowork/internal/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidToken = errors.New("invalid token")

// TokenInfo describes an issued token without its secret
type TokenInfo struct {
	ID        string
	Name      string
	CreatedAt string
}

// tokenCache remembers tokens that already passed bcrypt so polling clients
// do not pay for a hash on every request
type tokenCache struct {
	mu sync.Mutex
	ok map[string]string // full token -> id
}

func newTokenCache() *tokenCache {
	return &tokenCache{ok: make(map[string]string)}
}

func (c *tokenCache) get(token string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ok[token]
	return id, ok
}

func (c *tokenCache) put(token, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ok[token] = id
}

func (c *tokenCache) forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, tid := range c.ok {
		if tid == id {
			delete(c.ok, token)
		}
	}
}

// CreateToken issues a token of the form <id>.<secret>. Only a bcrypt hash of
// the secret is stored, so the token cannot be shown again.
func (s *Server) CreateToken(ctx context.Context, name string) (string, error) {
	// Generate secret
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = s.db.ExecContext(ctx,
		s.db.Rebind(`INSERT INTO api_tokens (id, name, secret_hash, created_at) VALUES (?, ?, ?, ?)`),
		id, name, string(hash), model.FormatTimestamp(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	logger.Info("API token created", logger.F("id", id), logger.F("name", name))
	return id + "." + secret, nil
}

// RevokeToken deletes a token by ID
func (s *Server) RevokeToken(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM api_tokens WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("token %s not found", id)
	}
	s.tokens.forget(id)

	logger.Info("API token revoked", logger.F("id", id))
	return nil
}

// ListTokens returns issued tokens, oldest first
func (s *Server) ListTokens(ctx context.Context) ([]TokenInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM api_tokens ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var out []TokenInfo
	for rows.Next() {
		var t TokenInfo
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// verifyToken returns the token's ID if it is valid
func (s *Server) verifyToken(ctx context.Context, token string) (string, error) {
	if id, ok := s.tokens.get(token); ok {
		return id, nil
	}

	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return "", errInvalidToken
	}

	var hash string
	err := s.db.QueryRowContext(ctx,
		s.db.Rebind(`SELECT secret_hash FROM api_tokens WHERE id = ?`), id,
	).Scan(&hash)
	if err != nil {
		return "", errInvalidToken
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return "", errInvalidToken
	}

	s.tokens.put(token, id)
	return id, nil
}
