// Package cache keeps finished audio around so callers can download it after
// the run that produced it. Entries are keyed by run identity (input text,
// pause, language and format) and expire after a TTL.
package cache

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lexiqai/narrator/internal/codec"
)

// Entry is the encoded audio of one successful run
type Entry struct {
	Key       string
	RunID     string
	FileName  string
	Format    codec.Format
	Audio     []byte
	Duration  time.Duration
	CreatedAt time.Time
}

// Key identifies the inputs of a run
func Key(text string, pauseMS int, language string, format codec.Format) string {
	d := xxhash.New()
	_, _ = d.WriteString(text)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(strconv.Itoa(pauseMS))
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(language)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(string(format))
	return strconv.FormatUint(d.Sum64(), 16)
}

// Results is a bounded, expiring store of finished audio. It is safe for
// concurrent use.
type Results struct {
	lru *expirable.LRU[string, Entry]
}

// New creates a cache holding at most size entries for ttl each
func New(size int, ttl time.Duration) *Results {
	return &Results{
		lru: expirable.NewLRU[string, Entry](size, nil, ttl),
	}
}

// Put stores the audio of a successful run under entry.Key
func (r *Results) Put(entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.lru.Add(entry.Key, entry)
}

// Get returns the entry for key if it has not expired
func (r *Results) Get(key string) (Entry, bool) {
	return r.lru.Get(key)
}

// Forget drops the entry for key. Called when a new run with the same
// identity starts, so stale audio is never served for it.
func (r *Results) Forget(key string) {
	r.lru.Remove(key)
}

// Len returns the number of cached entries
func (r *Results) Len() int {
	return r.lru.Len()
}
