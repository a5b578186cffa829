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

package cardsync

import (
	"context"
	"fmt"
	"strings"

	"deck-agent/internal/deck"
	"deck-agent/internal/storage/catalog"
)

const (
	leaderType      = "Leader"
	defaultCardType = "Character"
	defaultLife     = 5
	upsertBatch     = 500
)

// Stats 一次同步的统计
type Stats struct {
	Cards   int `json:"cards_synced"`
	Leaders int `json:"leaders_synced"`
	Errors  int `json:"errors"`
}

// SetCode "OP-01" -> "OP01"
func SetCode(setID string) string {
	return strings.ReplaceAll(strings.TrimSpace(setID), "-", "")
}

// MapCard 非 Leader 记录
func MapCard(r RawCard) (*deck.Card, error) {
	if r.CardSetID == "" {
		return nil, fmt.Errorf("记录缺少 card_set_id")
	}
	typ := r.CardType
	if typ == "" {
		typ = defaultCardType
	}
	return &deck.Card{
		ID:        r.CardSetID,
		Name:      r.CardName,
		Type:      typ,
		Color:     r.CardColor,
		Cost:      r.CardCost.Value,
		Power:     r.CardPower.Value,
		Counter:   r.Counter.Value,
		Attribute: r.Attribute,
		Text:      r.CardText,
		Rarity:    r.Rarity,
		Category:  r.SubTypes,
		SetCode:   SetCode(r.SetID),
		ImageURL:  r.CardImage,
	}, nil
}

// MapLeader Leader 记录；life 缺失或为 0 时取 5
func MapLeader(r RawCard) (*deck.Leader, error) {
	if r.CardSetID == "" {
		return nil, fmt.Errorf("记录缺少 card_set_id")
	}
	life := defaultLife
	if r.Life.Value != nil && *r.Life.Value > 0 {
		life = *r.Life.Value
	}
	return &deck.Leader{
		ID:        r.CardSetID,
		Name:      r.CardName,
		Life:      life,
		Power:     r.CardPower.Value,
		Colors:    deck.ParseColors(r.CardColor),
		Attribute: r.Attribute,
		Text:      r.CardText,
		Category:  r.SubTypes,
		SetCode:   SetCode(r.SetID),
		ImageURL:  r.CardImage,
	}, nil
}

// Split 把原始记录拆成卡牌与 Leader；同 id 后出现的覆盖先出现的
func Split(raw []RawCard) (cards []*deck.Card, leaders []*deck.Leader, errs int) {
	cardIdx := map[string]int{}
	leaderIdx := map[string]int{}
	for _, r := range raw {
		if r.CardType == leaderType {
			l, err := MapLeader(r)
			if err != nil {
				errs++
				continue
			}
			if i, ok := leaderIdx[l.ID]; ok {
				leaders[i] = l
				continue
			}
			leaderIdx[l.ID] = len(leaders)
			leaders = append(leaders, l)
			continue
		}
		c, err := MapCard(r)
		if err != nil {
			errs++
			continue
		}
		if i, ok := cardIdx[c.ID]; ok {
			cards[i] = c
			continue
		}
		cardIdx[c.ID] = len(cards)
		cards = append(cards, c)
	}
	return cards, leaders, errs
}

// Sync 拉取并写入 store
func (c *Client) Sync(ctx context.Context, store catalog.Store) (*Stats, error) {
	raw, err := c.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		c.logger.Warn("optcgapi 未返回任何卡牌")
		return &Stats{}, nil
	}
	cards, leaders, errs := Split(raw)
	for start := 0; start < len(cards); start += upsertBatch {
		if err := store.UpsertCards(ctx, cards[start:min(start+upsertBatch, len(cards))]); err != nil {
			return nil, fmt.Errorf("写入卡牌失败: %w", err)
		}
	}
	for start := 0; start < len(leaders); start += upsertBatch {
		if err := store.UpsertLeaders(ctx, leaders[start:min(start+upsertBatch, len(leaders))]); err != nil {
			return nil, fmt.Errorf("写入 Leader 失败: %w", err)
		}
	}
	stats := &Stats{Cards: len(cards), Leaders: len(leaders), Errors: errs}
	c.logger.Info("卡牌同步完成", "cards", stats.Cards, "leaders", stats.Leaders, "errors", stats.Errors)
	return stats, nil
}
