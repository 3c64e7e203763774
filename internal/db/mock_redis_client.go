package db

import (
	"context"
	"encoding"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient implements the LimitedRedisClient interface.
// Only suitable for testing.
// The value set for the IntCmd or similar results is always 1 regardless of how many records were affected.
// Key expiry times are recorded but never enforced.
type MockRedisClient struct {
	lock      *sync.Mutex
	store     map[string]any
	published map[string][]string
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		lock:      &sync.Mutex{},
		store:     map[string]any{},
		published: map[string][]string{},
	}
}

func convertValuesToMap(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return map[string]any{}, fmt.Errorf("number of provided values must be even")
	}
	output := map[string]any{}
	for i := 0; i < len(values); i += 2 {
		key := values[i].(string)
		val := values[i+1]
		output[key] = val
	}
	return output, nil
}

func (m *MockRedisClient) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.IntCmd{}
	val, err := convertValuesToMap(values...)
	if err != nil {
		res.SetErr(err)
	}
	m.store[key] = val
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.MapStringStringCmd{}
	res.SetVal(map[string]string{})
	val, found := m.store[key]
	if !found {
		return &res
	}
	valMap1 := val.(map[string]any)
	valMap2 := map[string]string{}
	for k, v := range valMap1 {
		valString, ok := v.(string)
		if !ok {
			encodable := v.(encoding.TextMarshaler)
			rawBytes, err := encodable.MarshalText()
			if err != nil {
				res.SetErr(err)
				return &res
			}
			valMap2[k] = string(rawBytes)
		} else {
			valMap2[k] = valString
		}
	}
	res.SetVal(valMap2)
	return &res
}

func (m *MockRedisClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, k := range keys {
		delete(m.store, k)
	}
	res := redis.IntCmd{}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) ExpireAt(_ context.Context, key string, _ time.Time) *redis.BoolCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.BoolCmd{}
	_, found := m.store[key]
	res.SetVal(found)
	return &res
}

func (m *MockRedisClient) Persist(_ context.Context, key string) *redis.BoolCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.BoolCmd{}
	_, found := m.store[key]
	res.SetVal(found)
	return &res
}

func (m *MockRedisClient) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	_, found := m.store[key]
	if !found {
		m.store[key] = []redis.Z{}
	}
	existing := m.store[key].([]redis.Z)
	for _, member := range members {
		replaced := false
		for i := range existing {
			if existing[i].Member == member.Member {
				existing[i].Score = member.Score
				replaced = true
			}
		}
		if !replaced {
			existing = append(existing, member)
		}
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].Score < existing[j].Score })
	m.store[key] = existing
	res := redis.IntCmd{}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) ZRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	res := redis.IntCmd{}
	val, found := m.store[key]
	if !found {
		res.SetVal(0)
		return &res
	}
	valZ := val.([]redis.Z)
	newValZ := []redis.Z{}
	for _, z := range valZ {
		var removeElem = false
		for _, member := range members {
			removeElem = removeElem || (z.Member == member)
		}
		if !removeElem {
			newValZ = append(newValZ, z)
		}
	}
	m.store[key] = newValZ
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) ZRangeArgsWithScores(_ context.Context, zrange redis.ZRangeArgs) *redis.ZSliceCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	output := redis.ZSliceCmd{}
	valRaw, found := m.store[zrange.Key]
	if !found {
		output.SetVal([]redis.Z{})
		return &output
	}
	val := valRaw.([]redis.Z)
	res := []redis.Z{}
	for _, ival := range val {
		if ival.Score <= zrange.Stop.(float64) && ival.Score >= zrange.Start.(float64) {
			res = append(res, ival)
		}
	}
	output.SetVal(res)
	return &output
}

func (m *MockRedisClient) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	msg, ok := message.(string)
	if !ok {
		msg = fmt.Sprintf("%v", message)
	}
	m.published[channel] = append(m.published[channel], msg)
	res := redis.IntCmd{}
	res.SetVal(1)
	return &res
}

// Published returns the messages published on a channel, used in tests.
func (m *MockRedisClient) Published(channel string) []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return append([]string{}, m.published[channel]...)
}
