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

// Package state 回合内贯穿各层循环的 AgentContext
package state

import (
	"github.com/mitchellh/mapstructure"

	"deck-agent/internal/deck"
)

// AgentContext 中约定的键
const (
	KeyDeckID       = "deck_id"
	KeyPage         = "page"
	KeyBuilderState = "deck_builder_state"
)

// AgentContext 按键组织的上下文。每个回合持有一份私有拷贝：
// 对话持久化的上下文与本次请求覆盖项合并而来，不会被并发修改。
type AgentContext map[string]any

// Clone 浅拷贝
func (c AgentContext) Clone() AgentContext {
	out := make(AgentContext, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge 返回合并后的新上下文；overrides 中的 nil 值不覆盖
func (c AgentContext) Merge(overrides map[string]any) AgentContext {
	out := c.Clone()
	for k, v := range overrides {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

func (c AgentContext) str(key string) string {
	s, _ := c[key].(string)
	return s
}

// DeckID 当前卡组 id
func (c AgentContext) DeckID() string { return c.str(KeyDeckID) }

// Page 当前页面
func (c AgentContext) Page() string { return c.str(KeyPage) }

// BuilderState 解码卡组编辑器快照，不存在时返回 nil
func (c AgentContext) BuilderState() (*deck.BuilderState, error) {
	raw, ok := c[KeyBuilderState]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case *deck.BuilderState:
		return v, nil
	case deck.BuilderState:
		return &v, nil
	}
	var out deck.BuilderState
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return &out, nil
}

// LeaderColors 快照中 Leader 的颜色；快照缺失或无法解码时为 nil
func (c AgentContext) LeaderColors() []string {
	s, err := c.BuilderState()
	if err != nil {
		return nil
	}
	return s.LeaderColors()
}
