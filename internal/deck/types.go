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

// Package deck 卡组领域模型：卡牌、Leader、卡组、规划，以及校验、统计与变更执行
package deck

import "time"

// MaxCopies 同名卡最大张数
const MaxCopies = 4

// DeckSize 卡组（不含 Leader）固定张数
const DeckSize = 50

// Card 普通卡（Character / Event / Stage）
type Card struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Color     string `json:"color,omitempty"`
	Cost      *int   `json:"cost"`
	Power     *int   `json:"power"`
	Counter   *int   `json:"counter"`
	Attribute string `json:"attribute,omitempty"`
	Text      string `json:"text,omitempty"`
	Trigger   string `json:"trigger,omitempty"`
	Rarity    string `json:"rarity,omitempty"`
	Category  string `json:"category,omitempty"`
	SetCode   string `json:"set_code,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// Leader Leader 卡，决定卡组颜色
type Leader struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Life      int      `json:"life"`
	Power     *int     `json:"power"`
	Colors    []string `json:"colors"`
	Attribute string   `json:"attribute,omitempty"`
	Text      string   `json:"text,omitempty"`
	Category  string   `json:"category,omitempty"`
	SetCode   string   `json:"set_code,omitempty"`
	ImageURL  string   `json:"image_url,omitempty"`
}

// DeckCard 卡组中的一张卡及数量
type DeckCard struct {
	Card     *Card `json:"card"`
	Quantity int   `json:"quantity"`
}

// Deck 已保存的卡组
type Deck struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	LeaderID          string         `json:"leader_id,omitempty"`
	Leader            *Leader        `json:"leader,omitempty"`
	Cards             []DeckCard     `json:"cards"`
	TotalCards        int            `json:"total_cards"`
	AvgCost           *float64       `json:"avg_cost,omitempty"`
	ColorDistribution map[string]int `json:"color_distribution,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// PlanCard 规划中待加入的卡
type PlanCard struct {
	CardID   string `json:"card_id" mapstructure:"card_id"`
	Quantity int    `json:"quantity" mapstructure:"quantity"`
}

// Plan 策略规划结果，尚未执行；由 Executor.ExecutePlan 消费一次
type Plan struct {
	LeaderToSet   string     `json:"leader_to_set,omitempty"`
	CardsToAdd    []PlanCard `json:"cards_to_add"`
	CardsToRemove []string   `json:"cards_to_remove"`
	LeaderColors  []string   `json:"leader_colors,omitempty"`
	Reasoning     string     `json:"reasoning"`
}

// Empty 规划是否不含任何变更
func (p *Plan) Empty() bool {
	return p == nil || (p.LeaderToSet == "" && len(p.CardsToAdd) == 0 && len(p.CardsToRemove) == 0)
}

// BuilderState 前端卡组编辑器快照（AgentContext.deck_builder_state）
type BuilderState struct {
	Leader     *StateLeader `json:"leader,omitempty" mapstructure:"leader"`
	Cards      []StateCard  `json:"cards" mapstructure:"cards"`
	TotalCards int          `json:"total_cards" mapstructure:"total_cards"`
}

// StateLeader 快照中的 Leader
type StateLeader struct {
	ID     string   `json:"id" mapstructure:"id"`
	Name   string   `json:"name" mapstructure:"name"`
	Colors []string `json:"colors" mapstructure:"colors"`
}

// StateCard 快照中的卡
type StateCard struct {
	ID       string `json:"id" mapstructure:"id"`
	Name     string `json:"name" mapstructure:"name"`
	Type     string `json:"type" mapstructure:"type"`
	Cost     *int   `json:"cost" mapstructure:"cost"`
	Color    string `json:"color" mapstructure:"color"`
	Quantity int    `json:"quantity" mapstructure:"quantity"`
}

// LeaderColors 快照中 Leader 的颜色，未设置 Leader 时为 nil
func (s *BuilderState) LeaderColors() []string {
	if s == nil || s.Leader == nil {
		return nil
	}
	return s.Leader.Colors
}

// ClampQuantity 数量限制到 [1, MaxCopies]
func ClampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	if q > MaxCopies {
		return MaxCopies
	}
	return q
}

// IntPtr 便于构造可空整数字段
func IntPtr(v int) *int { return &v }
