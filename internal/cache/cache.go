/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"

	"github.com/blnkfinance/settlr/model"
)

// cacheSize defines the size of the local cache (in number of entries) used alongside Redis.
const cacheSize = 10000

const orderKeyPrefix = "settlr:order:"

// errOrderAbsent stops an absent order from being written to the cache.
var errOrderAbsent = errors.New("order absent")

// OrderFetcher loads an order from the platform on a cache miss. A nil order with a nil
// error means the platform has no such order.
type OrderFetcher func(ctx context.Context) (*model.PlatformOrder, error)

// OrderCache keeps short lived order snapshots so that one sync run fetches each order once,
// even when several transactions of a payout point at it.
type OrderCache interface {
	GetOrder(ctx context.Context, orderID string, fetch OrderFetcher) (*model.PlatformOrder, error)
	Forget(ctx context.Context, orderID string) error
}

// RedisOrderCache implements OrderCache on top of Redis with a TinyLFU local tier.
type RedisOrderCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// cachedOrder carries the raw payload alongside the decoded order since Raw is not serialised.
type cachedOrder struct {
	Order model.PlatformOrder `json:"order"`
	Raw   json.RawMessage     `json:"raw,omitempty"`
}

// NewOrderCache builds an order cache over an existing Redis client.
func NewOrderCache(client redis.UniversalClient, ttl time.Duration) *RedisOrderCache {
	c := cache.New(&cache.Options{
		Redis:      client,
		LocalCache: cache.NewTinyLFU(cacheSize, ttl),
		Marshal:    json.Marshal,
		Unmarshal:  json.Unmarshal,
	})
	return &RedisOrderCache{cache: c, ttl: ttl}
}

func orderKey(orderID string) string {
	return fmt.Sprintf("%s%s", orderKeyPrefix, orderID)
}

// GetOrder returns the cached snapshot for orderID, calling fetch at most once per key
// when it is missing. Absent orders and fetch failures are not cached.
func (r *RedisOrderCache) GetOrder(ctx context.Context, orderID string, fetch OrderFetcher) (*model.PlatformOrder, error) {
	var snapshot cachedOrder
	err := r.cache.Once(&cache.Item{
		Ctx:   ctx,
		Key:   orderKey(orderID),
		Value: &snapshot,
		TTL:   r.ttl,
		Do: func(item *cache.Item) (interface{}, error) {
			order, err := fetch(item.Context())
			if err != nil {
				return nil, err
			}
			if order == nil {
				return nil, errOrderAbsent
			}
			return &cachedOrder{Order: *order, Raw: order.Raw}, nil
		},
	})
	if errors.Is(err, errOrderAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	order := snapshot.Order
	order.Raw = snapshot.Raw
	return &order, nil
}

// Forget drops the snapshot for orderID from both tiers.
func (r *RedisOrderCache) Forget(ctx context.Context, orderID string) error {
	err := r.cache.Delete(ctx, orderKey(orderID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
