// Package secrets resolves secret references from the process
// environment. References keep raw key material out of config files;
// the config carries the name of the secret, not its value.
package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// Provider resolves secret references to their values
type Provider interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// EnvProvider reads secrets from environment variables
type EnvProvider struct{}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

func (p *EnvProvider) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return value, nil
}

// CachedProvider caches resolved secrets for a bounded time
type CachedProvider struct {
	provider Provider
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

func NewCachedProvider(provider Provider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		ttl:      ttl,
		cache:    make(map[string]cachedSecret),
	}
}

func (p *CachedProvider) GetSecret(ctx context.Context, key string) (string, error) {
	p.mu.Lock()
	cached, ok := p.cache[key]
	p.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.value, nil
	}

	value, err := p.provider.GetSecret(ctx, key)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.cache[key] = cachedSecret{value: value, expiresAt: time.Now().Add(p.ttl)}
	p.mu.Unlock()
	return value, nil
}
