// Package cache keeps recent negotiation results in process so they can be
// looked up by id after the request that produced them.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agenthands/hagglz/internal/core/model"
	"github.com/dgraph-io/ristretto/v2"
)

var ErrNotCached = errors.New("negotiation not cached")

// Results is a ristretto cache of JSON encoded results bounded by total size.
type Results struct {
	c   *ristretto.Cache[string, []byte]
	ttl time.Duration
}

// New creates a results cache. ttl <= 0 keeps entries until evicted.
func New(maxCostBytes int64, ttl time.Duration) (*Results, error) {
	if maxCostBytes <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxCostBytes)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/100*10, 1000),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Results{c: c, ttl: ttl}, nil
}

// Put stores res under its negotiation id and waits for the write to become
// visible to Get.
func (r *Results) Put(res model.NegotiationResult) error {
	if res.NegotiationID == "" {
		return errors.New("result has no negotiation id")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	r.c.SetWithTTL(res.NegotiationID, data, int64(len(data)), r.ttl)
	r.c.Wait()
	return nil
}

func (r *Results) Get(id string) (model.NegotiationResult, error) {
	data, ok := r.c.Get(id)
	if !ok {
		return model.NegotiationResult{}, ErrNotCached
	}
	var res model.NegotiationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return model.NegotiationResult{}, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return res, nil
}

func (r *Results) Close() {
	r.c.Close()
}
