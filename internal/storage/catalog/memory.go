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

package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"deck-agent/internal/deck"
	"deck-agent/pkg/errors"
)

// memoryStore 内存实现，用于开发与测试
type memoryStore struct {
	mu      sync.RWMutex
	cards   map[string]*deck.Card
	leaders map[string]*deck.Leader
	decks   map[string]*deck.Deck
}

// NewMemoryStore 创建内存卡牌库
func NewMemoryStore() Store {
	return &memoryStore{
		cards:   make(map[string]*deck.Card),
		leaders: make(map[string]*deck.Leader),
		decks:   make(map[string]*deck.Deck),
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func matchCard(f CardFilter, c *deck.Card) bool {
	if f.Name != "" && !containsFold(c.Name, f.Name) {
		return false
	}
	if f.Color != "" && !containsFold(c.Color, f.Color) {
		return false
	}
	if f.Type != "" && !strings.EqualFold(c.Type, f.Type) {
		return false
	}
	if f.Category != "" && !containsFold(c.Category, f.Category) {
		return false
	}
	if f.SetCode != "" && c.SetCode != f.SetCode {
		return false
	}
	if f.TextContains != "" && !containsFold(c.Text, f.TextContains) {
		return false
	}
	if f.CostMin != nil && (c.Cost == nil || *c.Cost < *f.CostMin) {
		return false
	}
	if f.CostMax != nil && (c.Cost == nil || *c.Cost > *f.CostMax) {
		return false
	}
	if f.PowerMin != nil && (c.Power == nil || *c.Power < *f.PowerMin) {
		return false
	}
	return true
}

func matchLeader(f LeaderFilter, l *deck.Leader) bool {
	if f.Name != "" && !containsFold(l.Name, f.Name) {
		return false
	}
	if f.Color != "" {
		found := false
		for _, c := range l.Colors {
			if c == f.Color {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Category != "" && !containsFold(l.Category, f.Category) {
		return false
	}
	if f.SetCode != "" && l.SetCode != f.SetCode {
		return false
	}
	if f.PowerMin != nil && (l.Power == nil || *l.Power < *f.PowerMin) {
		return false
	}
	return true
}

func (m *memoryStore) SearchCards(_ context.Context, f CardFilter) ([]*deck.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*deck.Card
	for _, c := range m.cards {
		if matchCard(f, c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit := NormalizeLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) SearchLeaders(_ context.Context, f LeaderFilter) ([]*deck.Leader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*deck.Leader
	for _, l := range m.leaders {
		if matchLeader(f, l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit := NormalizeLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) LeaderByID(_ context.Context, id string) (*deck.Leader, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leaders[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return l, nil
}

func (m *memoryStore) CardsByIDs(_ context.Context, ids []string) (map[string]*deck.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*deck.Card, len(ids))
	for _, id := range ids {
		if c, ok := m.cards[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (m *memoryStore) Deck(_ context.Context, id string) (*deck.Deck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decks[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *d
	cp.Leader = m.leaders[d.LeaderID]
	cp.Cards = make([]deck.DeckCard, 0, len(d.Cards))
	for _, dc := range d.Cards {
		card := dc.Card
		if card != nil {
			if stored, ok := m.cards[card.ID]; ok {
				card = stored
			}
		}
		cp.Cards = append(cp.Cards, deck.DeckCard{Card: card, Quantity: dc.Quantity})
	}
	deck.Summarize(&cp)
	return &cp, nil
}

func (m *memoryStore) Begin(_ context.Context) (Session, error) {
	return &memorySession{memoryStore: m}, nil
}

func (m *memoryStore) UpsertCards(_ context.Context, cards []*deck.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cards {
		m.cards[c.ID] = c
	}
	return nil
}

func (m *memoryStore) UpsertLeaders(_ context.Context, leaders []*deck.Leader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range leaders {
		m.leaders[l.ID] = l
	}
	return nil
}

func (m *memoryStore) SaveDeck(_ context.Context, d *deck.Deck) error {
	if d.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "deck id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.decks[d.ID] = &cp
	return nil
}

func (m *memoryStore) Close() {}

// memorySession 内存会话，无事务语义；记录回滚次数便于观察
type memorySession struct {
	*memoryStore
	rollbacks int
}

func (s *memorySession) Rollback(context.Context) error {
	s.rollbacks++
	return nil
}

func (s *memorySession) Close(context.Context) error { return nil }
