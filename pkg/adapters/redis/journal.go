// Package redis stores the batch journal in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aretw0/cadbridge/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultMaxEntries bounds the journal list.
const DefaultMaxEntries = 1000

// Journal implements ports.JournalStore using a Redis list, newest entry at the head.
type Journal struct {
	client     *backend.Client
	prefix     string
	maxEntries int64
	ttl        time.Duration
}

// Option configures a Journal.
type Option func(*Journal)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(j *Journal) {
		j.prefix = prefix
	}
}

// WithMaxEntries sets how many entries are retained.
func WithMaxEntries(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.maxEntries = int64(n)
		}
	}
}

// WithTTL expires the whole journal after a period without appends.
func WithTTL(ttl time.Duration) Option {
	return func(j *Journal) {
		j.ttl = ttl
	}
}

// New creates a Redis journal with options.
func New(address, password string, db int, opts ...Option) *Journal {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis journal from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Journal {
	j := &Journal{
		client:     client,
		prefix:     "cadbridge:",
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Journal) key() string {
	return j.prefix + "journal"
}

// Append pushes the entry and trims the list to the retention bound.
func (j *Journal) Append(ctx context.Context, entry domain.JournalEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	pipe := j.client.TxPipeline()
	pipe.LPush(ctx, j.key(), data)
	pipe.LTrim(ctx, j.key(), 0, j.maxEntries-1)
	if j.ttl > 0 {
		pipe.Expire(ctx, j.key(), j.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to redis journal: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	vals, err := j.client.LRange(ctx, j.key(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read redis journal: %w", err)
	}

	entries := make([]domain.JournalEntry, 0, len(vals))
	for _, v := range vals {
		var entry domain.JournalEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journal entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Close releases the underlying client.
func (j *Journal) Close() error {
	return j.client.Close()
}
