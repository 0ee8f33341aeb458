package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"risparmi/internal/cache"
)

// CachedCompleter answers repeated prompts from a cache. Only successful
// replies are stored.
type CachedCompleter struct {
	next  Completer
	model string
	cache cache.Cache[string]
}

func NewCachedCompleter(next Completer, model string, c cache.Cache[string]) *CachedCompleter {
	return &CachedCompleter{next: next, model: model, cache: c}
}

func (c *CachedCompleter) key(prompt string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *CachedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	k := c.key(prompt)
	if reply, ok := c.cache.Get(k); ok {
		return reply, nil
	}
	reply, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	c.cache.Set(k, reply)
	return reply, nil
}
