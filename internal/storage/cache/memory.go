// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"deck-agent/pkg/errors"
)

// MemoryStore 内存缓存存储实现
type MemoryStore struct {
	items map[string]*cacheItem
	lists map[string]*listItem
	mu    sync.RWMutex
	now   func() time.Time
}

// cacheItem 缓存项
type cacheItem struct {
	value      []byte
	expiration time.Time
}

type listItem struct {
	values     [][]byte
	expiration time.Time
}

func expired(exp, now time.Time) bool {
	return !exp.IsZero() && !now.Before(exp)
}

func (s *MemoryStore) deadline(d time.Duration) time.Time {
	if d <= 0 {
		return time.Time{}
	}
	return s.now().Add(d)
}

// NewMemoryStore 创建新的内存缓存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*cacheItem),
		lists: make(map[string]*listItem),
		now:   time.Now,
	}
}

// Set 设置缓存
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = &cacheItem{value: data, expiration: s.deadline(expiration)}
	return nil
}

// Get 获取缓存
func (s *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok || expired(item.expiration, s.now()) {
		return errors.Wrapf(errors.ErrNotFound, "cache key %s", key)
	}
	if err := json.Unmarshal(item.value, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// Delete 删除缓存
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	delete(s.lists, key)
	return nil
}

// Exists 检查缓存是否存在
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	if item, ok := s.items[key]; ok && !expired(item.expiration, now) {
		return true, nil
	}
	if l, ok := s.lists[key]; ok && !expired(l.expiration, now) {
		return true, nil
	}
	return false, nil
}

// SetNX 键不存在（或已过期）时写入
func (s *MemoryStore) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[key]; ok && !expired(item.expiration, s.now()) {
		return false, nil
	}
	s.items[key] = &cacheItem{value: []byte(value), expiration: s.deadline(expiration)}
	return true, nil
}

// CompareAndDelete 值匹配时删除
func (s *MemoryStore) CompareAndDelete(ctx context.Context, key string, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok || expired(item.expiration, s.now()) || string(item.value) != value {
		return false, nil
	}
	delete(s.items, key)
	return true, nil
}

// ListAppend 追加列表
func (s *MemoryStore) ListAppend(ctx context.Context, key string, expiration time.Duration, values ...[]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[key]
	if !ok || expired(l.expiration, s.now()) {
		l = &listItem{}
		s.lists[key] = l
	}
	for _, v := range values {
		l.values = append(l.values, append([]byte(nil), v...))
	}
	l.expiration = s.deadline(expiration)
	return nil
}

// ListRange 读取列表区间，语义同 Redis LRANGE
func (s *MemoryStore) ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lists[key]
	if !ok || expired(l.expiration, s.now()) {
		return nil, nil
	}
	n := int64(len(l.values))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([][]byte, 0, stop-start+1)
	for _, v := range l.values[start : stop+1] {
		out = append(out, append([]byte(nil), v...))
	}
	return out, nil
}

// Close 关闭缓存连接
func (s *MemoryStore) Close() error {
	return nil
}
