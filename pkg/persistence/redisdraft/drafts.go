// Package redisdraft provides a Redis-backed draft store. Drafts are small,
// short-lived and overwritten wholesale, which maps cleanly onto string
// keys with a TTL.
package redisdraft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/caseflow-io/caseflow/pkg/persistence"
)

// DefaultTTL bounds how long an untouched draft survives.
const DefaultTTL = 30 * 24 * time.Hour

// DraftRepository implements persistence.DraftRepository on Redis.
type DraftRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewDraftRepository creates a repository for the given Redis URL. A
// non-positive ttl falls back to DefaultTTL.
func NewDraftRepository(url string, ttl time.Duration) (*DraftRepository, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &DraftRepository{client: redis.NewClient(opts), ttl: ttl}, nil
}

// NewDraftRepositoryWithClient wraps an existing client, mainly for tests.
func NewDraftRepositoryWithClient(client redis.UniversalClient, ttl time.Duration) *DraftRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &DraftRepository{client: client, ttl: ttl}
}

func draftKey(instanceID, nodeID string) string {
	return "caseflow:draft:" + instanceID + ":" + nodeID
}

func (dr *DraftRepository) SaveDraft(ctx context.Context, instanceID, nodeID string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}

	return dr.client.Set(ctx, draftKey(instanceID, nodeID), payload, dr.ttl).Err()
}

func (dr *DraftRepository) DraftByInstanceAndNode(ctx context.Context, instanceID, nodeID string) (map[string]any, error) {
	payload, err := dr.client.Get(ctx, draftKey(instanceID, nodeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.ErrDraftNotFound
		}

		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}

	return data, nil
}

func (dr *DraftRepository) DeleteDraft(ctx context.Context, instanceID, nodeID string) error {
	return dr.client.Del(ctx, draftKey(instanceID, nodeID)).Err()
}

// Close releases the underlying client.
func (dr *DraftRepository) Close() error {
	return dr.client.Close()
}
