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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"deck-agent/pkg/errors"
)

type memoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]*Message
	now           func() time.Time
}

// NewMemoryStore 创建内存对话存储
func NewMemoryStore() Store {
	return &memoryStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
		now:           time.Now,
	}
}

func cloneContext(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memoryStore) Create(_ context.Context, c *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := s.now()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Context == nil {
		c.Context = map[string]any{}
	}
	cp := *c
	cp.Context = cloneContext(c.Context)
	s.conversations[c.ID] = &cp
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "conversation %s", id)
	}
	cp := *c
	cp.Context = cloneContext(c.Context)
	return &cp, nil
}

func (s *memoryStore) List(_ context.Context, limit int) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "conversation %s", id)
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return nil
}

func (s *memoryStore) UpdateContext(_ context.Context, id string, ctxMap map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "conversation %s", id)
	}
	c.Context = cloneContext(ctxMap)
	c.UpdatedAt = s.now()
	return nil
}

func (s *memoryStore) AppendMessage(_ context.Context, m *Message) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[m.ConversationID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "conversation %s", m.ConversationID)
	}
	cp := *m
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = s.now()
	s.messages[m.ConversationID] = append(s.messages[m.ConversationID], &cp)
	c.UpdatedAt = cp.CreatedAt
	out := cp
	return &out, nil
}

func (s *memoryStore) Messages(_ context.Context, conversationID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]*Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *memoryStore) History(_ context.Context, conversationID string, window int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if window > 0 && len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	out := make([]*Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *memoryStore) Close() {}
