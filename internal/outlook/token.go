package outlook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrNoToken is returned when no access token is configured.
var ErrNoToken = errors.New("outlook: access token required")

// DefaultTokenTTL is how long CachedTokenSource reuses a token. Exchange
// tokens live for an hour.
const DefaultTokenTTL = 55 * time.Minute

// TokenSource supplies bearer tokens for the REST API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token from the config.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(string(s)), nil
}

// FileToken reads the token from a file on every call, so an external
// process can rotate it.
type FileToken string

func (f FileToken) Token(context.Context) (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("outlook: read token file: %w", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// CachedTokenSource reuses the token of an underlying source for a fixed
// TTL. Each client owns its own cache.
type CachedTokenSource struct {
	src TokenSource
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewCachedTokenSource(src TokenSource, ttl time.Duration) *CachedTokenSource {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &CachedTokenSource{src: src, ttl: ttl, now: time.Now}
}

func (c *CachedTokenSource) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.expiresAt) {
		return c.token, nil
	}
	tok, err := c.src.Token(ctx)
	if err != nil {
		return "", err
	}
	c.token = tok
	c.expiresAt = now.Add(c.ttl)
	return tok, nil
}

// Invalidate drops the cached token, e.g. after a 401.
func (c *CachedTokenSource) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
