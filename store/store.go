// Package store persists conversation snapshots between turns. The engine
// itself is stateless; the surrounding service uses a Store to thread
// history and memory from one call into the next.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/flowturn/types"
)

// ErrNotFound is returned when no snapshot exists for a conversation.
var ErrNotFound = errors.New("store: conversation not found")

// Snapshot is the full persisted state of one conversation.
type Snapshot struct {
	ConversationID string            `json:"conversation_id"`
	CurrentNodeID  string            `json:"current_node_id"`
	History        types.History     `json:"history"`
	Memory         types.MemoryState `json:"memory"`
	FlowCompleted  bool              `json:"flow_completed"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Store persists conversation snapshots.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, conversationID string) (*Snapshot, error)
	Delete(ctx context.Context, conversationID string) error
}

// Config holds the Redis store configuration.
type Config struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	// TTL is the snapshot expiry. Zero keeps snapshots forever.
	TTL        time.Duration `yaml:"ttl" json:"ttl"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	PoolSize   int           `yaml:"pool_size" json:"pool_size"`
	KeyPrefix  string        `yaml:"key_prefix" json:"key_prefix"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Addr:       "localhost:6379",
		TTL:        24 * time.Hour,
		MaxRetries: 3,
		PoolSize:   10,
		KeyPrefix:  "flowturn:conv:",
	}
}

// RedisStore persists snapshots as JSON values in Redis.
type RedisStore struct {
	client *redis.Client
	config Config
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(config Config, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:       config.Addr,
		Password:   config.Password,
		DB:         config.DB,
		MaxRetries: config.MaxRetries,
		PoolSize:   config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: connect to redis: %w", err)
	}

	logger.Info("snapshot store initialized", zap.String("addr", config.Addr))
	return &RedisStore{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "store")),
	}, nil
}

// Save writes the snapshot, stamping UpdatedAt.
func (s *RedisStore) Save(ctx context.Context, snap *Snapshot) error {
	if snap.ConversationID == "" {
		return fmt.Errorf("store: snapshot has no conversation id")
	}
	snap.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(snap.ConversationID), raw, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("conversation_id", snap.ConversationID),
		zap.Int("turn_index", snap.Memory.TurnIndex),
	)
	return nil
}

// Load reads a snapshot, returning ErrNotFound for unknown conversations.
func (s *RedisStore) Load(ctx context.Context, conversationID string) (*Snapshot, error) {
	raw, err := s.client.Get(ctx, s.key(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes a conversation's snapshot. Deleting a missing snapshot is
// not an error.
func (s *RedisStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("store: delete snapshot: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(conversationID string) string {
	return s.config.KeyPrefix + conversationID
}
