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

package conversation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"deck-agent/internal/storage/cache"
)

// CachedStore 在 Store 之上用 Redis 列表缓存最近消息（conv:{id}:history），
// 缓存不可用或为空时回退到底层存储
type CachedStore struct {
	Store
	cache  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore 包装底层存储
func NewCachedStore(store Store, c cache.Store, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: store, cache: c, ttl: ttl, logger: logger}
}

// HistoryKey 历史缓存键
func HistoryKey(conversationID string) string {
	return "conv:" + conversationID + ":history"
}

func (s *CachedStore) AppendMessage(ctx context.Context, m *Message) (*Message, error) {
	saved, err := s.Store.AppendMessage(ctx, m)
	if err != nil {
		return nil, err
	}
	// 空缓存不追加，避免只含最新一条的残缺列表遮住数据库中的历史
	if exists, err := s.cache.Exists(ctx, HistoryKey(m.ConversationID)); err == nil && exists {
		if data, err := json.Marshal(saved); err == nil {
			if err := s.cache.ListAppend(ctx, HistoryKey(m.ConversationID), s.ttl, data); err != nil {
				s.logger.Warn("写入历史缓存失败", "conversation_id", m.ConversationID, "error", err)
			}
		}
	}
	return saved, nil
}

func (s *CachedStore) History(ctx context.Context, conversationID string, window int) ([]*Message, error) {
	key := HistoryKey(conversationID)
	start := int64(0)
	if window > 0 {
		start = -int64(window)
	}
	raw, err := s.cache.ListRange(ctx, key, start, -1)
	if err != nil {
		s.logger.Warn("读取历史缓存失败，回退数据库", "conversation_id", conversationID, "error", err)
	}
	if err == nil && len(raw) > 0 {
		out := make([]*Message, 0, len(raw))
		for _, b := range raw {
			var m Message
			if err := json.Unmarshal(b, &m); err != nil {
				out = nil
				break
			}
			out = append(out, &m)
		}
		if out != nil {
			return out, nil
		}
	}

	msgs, err := s.Store.History(ctx, conversationID, window)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		vals := make([][]byte, 0, len(msgs))
		for _, m := range msgs {
			b, _ := json.Marshal(m)
			vals = append(vals, b)
		}
		_ = s.cache.Delete(ctx, key)
		if err := s.cache.ListAppend(ctx, key, s.ttl, vals...); err != nil {
			s.logger.Warn("回填历史缓存失败", "conversation_id", conversationID, "error", err)
		}
	}
	return msgs, nil
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, HistoryKey(id))
	return nil
}
