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

package deck

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "deck-agent/pkg/errors"
)

// Lookup 执行器所需的只读卡牌查询；找不到 Leader 时返回 pkg/errors.ErrNotFound
type Lookup interface {
	LeaderByID(ctx context.Context, id string) (*Leader, error)
	CardsByIDs(ctx context.Context, ids []string) (map[string]*Card, error)
}

// 动作类型
const (
	ActionSetLeader   = "set_leader"
	ActionAddCards    = "add_cards"
	ActionRemoveCards = "remove_cards"
	ActionBatch       = "batch_deck_update"
)

// Action 交给前端执行的单个卡组动作
type Action map[string]any

// Name 动作名
func (a Action) Name() string {
	s, _ := a["action"].(string)
	return s
}

// Modification 一次或多次变更的合并结果；Errors 非空时调用方不得视为已生效
type Modification struct {
	Actions []Action
	Summary string
	Errors  []string
}

// OK 无校验错误
func (m *Modification) OK() bool { return len(m.Errors) == 0 }

// ActionData 合并为单个前端载荷：无动作为 nil，单个原样返回，多个包成 batch_deck_update
func (m *Modification) ActionData() map[string]any {
	var payloads []Action
	for _, a := range m.Actions {
		if len(a) > 0 {
			payloads = append(payloads, a)
		}
	}
	switch len(payloads) {
	case 0:
		return nil
	case 1:
		return payloads[0]
	default:
		return map[string]any{"action": ActionBatch, "actions": payloads}
	}
}

func (m *Modification) merge(o *Modification) {
	m.Actions = append(m.Actions, o.Actions...)
	if o.Summary != "" {
		if m.Summary != "" {
			m.Summary += "\n"
		}
		m.Summary += o.Summary
	}
	m.Errors = append(m.Errors, o.Errors...)
}

func failed(msg string) *Modification {
	return &Modification{Errors: []string{msg}}
}

// AddedCard add_cards 载荷中的一项
type AddedCard struct {
	Card     *Card `json:"card"`
	Quantity int   `json:"quantity"`
}

// Executor 确定性的卡组变更执行器，不调用 LLM。
// 校验失败体现在 Modification.Errors；返回的 error 只表示存储层失败。
type Executor struct {
	lookup Lookup
}

// NewExecutor 创建执行器
func NewExecutor(lookup Lookup) *Executor {
	return &Executor{lookup: lookup}
}

// SetLeader 设置 Leader
func (e *Executor) SetLeader(ctx context.Context, leaderID string) (*Modification, error) {
	leader, err := e.lookup.LeaderByID(ctx, leaderID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return failed(fmt.Sprintf("Leader '%s' not found in the database.", leaderID)), nil
		}
		return nil, err
	}
	summary := fmt.Sprintf("Leader set to %s (%s) — Colors: %s | Life: %d | Power: %s",
		leader.Name, leader.ID, strings.Join(leader.Colors, ", "), leader.Life, optional(leader.Power))
	return &Modification{
		Actions: []Action{{"action": ActionSetLeader, "leader": leader}},
		Summary: summary,
	}, nil
}

// AddCards 加入卡牌。重复 id 保留首次出现的位置、最后一次的数量；
// 任一 id 不存在或（给定 leaderColors 时）任一卡颜色越界都整体失败，不部分生效。
func (e *Executor) AddCards(ctx context.Context, items []PlanCard, leaderColors []string) (*Modification, error) {
	if len(items) == 0 {
		return failed("No cards specified."), nil
	}

	var ids []string
	qty := map[string]int{}
	for _, it := range items {
		if _, seen := qty[it.CardID]; !seen {
			ids = append(ids, it.CardID)
		}
		qty[it.CardID] = ClampQuantity(it.Quantity)
	}

	found, err := e.lookup.CardsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return failed(fmt.Sprintf("Cards not found: %s. Use search_cards to find valid card IDs.", strings.Join(missing, ", "))), nil
	}

	if len(leaderColors) > 0 {
		var violations []string
		for _, id := range ids {
			c := found[id]
			if c.Color == "" {
				continue
			}
			if !Subset(ParseColors(c.Color), leaderColors) {
				violations = append(violations, fmt.Sprintf("%s (%s) is %s — not in leader colors %s",
					c.Name, c.ID, c.Color, strings.Join(leaderColors, ", ")))
			}
		}
		if len(violations) > 0 {
			return failed("Color identity violations:\n" + strings.Join(violations, "\n") +
				"\nThese cards don't match the leader's color identity."), nil
		}
	}

	added := make([]AddedCard, 0, len(ids))
	lines := make([]string, 0, len(ids))
	total := 0
	for _, id := range ids {
		c, q := found[id], qty[id]
		total += q
		added = append(added, AddedCard{Card: c, Quantity: q})
		typ := c.Type
		if typ == "" {
			typ = "?"
		}
		lines = append(lines, fmt.Sprintf("  %dx %s (%s) — %s, Cost %s", q, c.Name, c.ID, typ, optional(c.Cost)))
	}
	return &Modification{
		Actions: []Action{{"action": ActionAddCards, "cards": added}},
		Summary: fmt.Sprintf("Added %d card(s) to deck:\n%s", total, strings.Join(lines, "\n")),
	}, nil
}

// RemoveCards 移除卡牌；只生成前端动作，不检查是否存在
func (e *Executor) RemoveCards(_ context.Context, ids []string) (*Modification, error) {
	if len(ids) == 0 {
		return failed("No card IDs specified."), nil
	}
	return &Modification{
		Actions: []Action{{"action": ActionRemoveCards, "card_ids": ids}},
		Summary: fmt.Sprintf("Removed %d card(s) from deck: %s", len(ids), strings.Join(ids, ", ")),
	}, nil
}

// ExecutePlan 依次执行 设置 Leader → 移除 → 加入；前一步的校验错误不阻止后续步骤
func (e *Executor) ExecutePlan(ctx context.Context, plan *Plan) (*Modification, error) {
	out := &Modification{}
	if plan == nil {
		return out, nil
	}
	if plan.LeaderToSet != "" {
		m, err := e.SetLeader(ctx, plan.LeaderToSet)
		if err != nil {
			return nil, err
		}
		out.merge(m)
	}
	if len(plan.CardsToRemove) > 0 {
		m, err := e.RemoveCards(ctx, plan.CardsToRemove)
		if err != nil {
			return nil, err
		}
		out.merge(m)
	}
	if len(plan.CardsToAdd) > 0 {
		m, err := e.AddCards(ctx, plan.CardsToAdd, plan.LeaderColors)
		if err != nil {
			return nil, err
		}
		out.merge(m)
	}
	return out, nil
}

func optional(p *int) string {
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *p)
}
