package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"reply-gateway/internal/domain"
)

const DefaultTTL = 5 * time.Minute

type fingerprintInput struct {
	Message string               `json:"message"`
	History []domain.ChatMessage `json:"history"`
}

// Fingerprint derives the cache key for a message and its trailing turns.
// The caller is responsible for trimming turns to the key window.
func Fingerprint(message string, turns []domain.ChatMessage) string {
	if turns == nil {
		turns = []domain.ChatMessage{}
	}
	// Marshal of plain strings cannot fail.
	raw, _ := json.Marshal(fingerprintInput{Message: message, History: turns})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Fingerprints stores successful replies by fingerprint. Entries expire ttl
// after their last write. There is no background sweep: expired entries are
// skipped on lookup and replaced by the next Store.
type Fingerprints struct {
	store *gocache.Cache
	ttl   time.Duration
}

func New(ttl time.Duration) *Fingerprints {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Fingerprints{
		store: gocache.New(ttl, 0),
		ttl:   ttl,
	}
}

func (f *Fingerprints) Lookup(key string) (string, bool) {
	v, ok := f.store.Get(key)
	if !ok {
		return "", false
	}
	reply, ok := v.(string)
	return reply, ok
}

// Store upserts a reply and restarts its expiry clock.
func (f *Fingerprints) Store(key, reply string) {
	f.store.Set(key, reply, f.ttl)
}

func (f *Fingerprints) Len() int {
	return f.store.ItemCount()
}
