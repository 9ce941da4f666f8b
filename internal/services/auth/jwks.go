package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// jwksCache caches one parsed key set
type jwksCache struct {
	keys    jwk.Set
	expires time.Time
	mu      sync.RWMutex
}

// JWKSManager fetches and caches JWKS key sets per URL
type JWKSManager struct {
	cache map[string]*jwksCache
	mu    sync.RWMutex
	ttl   time.Duration
}

// NewJWKSManager creates a new JWKS manager with a 1 hour cache
func NewJWKSManager() *JWKSManager {
	return &JWKSManager{
		cache: make(map[string]*jwksCache),
		ttl:   1 * time.Hour,
	}
}

// GetJWKS retrieves the key set for a JWKS URL, with caching
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.RLock()
	cache, exists := m.cache[jwksURL]
	m.mu.RUnlock()

	if exists {
		cache.mu.RLock()
		if time.Now().Before(cache.expires) && cache.keys != nil {
			keys := cache.keys
			cache.mu.RUnlock()
			return keys, nil
		}
		cache.mu.RUnlock()
	}

	keys, err := m.fetchJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	m.mu.Lock()
	m.cache[jwksURL] = &jwksCache{
		keys:    keys,
		expires: time.Now().Add(m.ttl),
	}
	m.mu.Unlock()

	return keys, nil
}

func (m *JWKSManager) fetchJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read JWKS response: %w", err)
	}

	keys, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	return keys, nil
}
