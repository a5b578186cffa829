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

package agent

import (
	"fmt"
	"strings"

	"deck-agent/internal/agent/prompts"
	"deck-agent/internal/agent/state"
	"deck-agent/internal/agent/tools"
	"deck-agent/internal/deck"
	"deck-agent/internal/knowledge"
)

const (
	maxMemories      = 5
	memoryPreviewLen = 300
	deckPreviewCards = 30
)

// BuildSystemPrompt 主循环系统提示词：角色、规则、工具说明、沟通、技巧、上下文、召回知识
func BuildSystemPrompt(set *tools.Set, ctx state.AgentContext, memories []knowledge.Entry) string {
	return prompts.Join(
		prompts.Load(prompts.SystemRole),
		prompts.Load(prompts.SystemRules),
		"## Available Tools\n\n"+set.Describe(),
		prompts.Load(prompts.SystemCommunication),
		prompts.Load(prompts.SystemTips),
		ContextBlock(ctx),
		MemoriesBlock(memories),
	)
}

// SubAgentPrompt 子代理系统提示词：模板、规则与当前卡组快照
func SubAgentPrompt(template string, ctx state.AgentContext) string {
	var deckBlock string
	if s, err := ctx.BuilderState(); err == nil && s != nil {
		deckBlock = DeckStateBlock(s)
	}
	return prompts.Join(prompts.Load(template), prompts.Load(prompts.SystemRules), ContextBlock(ctx), deckBlock)
}

// ContextBlock 当前卡组与页面
func ContextBlock(ctx state.AgentContext) string {
	var parts []string
	if id := ctx.DeckID(); id != "" {
		parts = append(parts, "- Active deck ID: "+id)
	}
	if p := ctx.Page(); p != "" {
		parts = append(parts, "- User is on page: "+p)
	}
	if len(parts) == 0 {
		return ""
	}
	return "## Current Context\n" + strings.Join(parts, "\n")
}

// MemoriesBlock 最多 5 条召回知识，每条截断到 300 字符
func MemoriesBlock(memories []knowledge.Entry) string {
	if len(memories) == 0 {
		return ""
	}
	if len(memories) > maxMemories {
		memories = memories[:maxMemories]
	}
	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		src := m.Source
		if src == "" {
			src = "unknown"
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s", src, truncateRunes(m.Text, memoryPreviewLen)))
	}
	return "## Recalled Knowledge\n" + strings.Join(lines, "\n")
}

// DeckStateBlock 卡组编辑器快照：Leader、张数、前 30 张卡
func DeckStateBlock(s *deck.BuilderState) string {
	if s == nil {
		return ""
	}
	parts := []string{"## Current Deck State"}
	if s.Leader != nil {
		parts = append(parts, fmt.Sprintf("- Leader: %s (%s) — Colors: %s",
			orUnknown(s.Leader.Name), orUnknown(s.Leader.ID), strings.Join(s.Leader.Colors, ", ")))
	} else {
		parts = append(parts, "- Leader: Not set")
	}
	parts = append(parts, fmt.Sprintf("- Total cards: %d/%d — %d slots remaining", s.TotalCards, deck.DeckSize, deck.DeckSize-s.TotalCards))
	if len(s.Cards) > 0 {
		parts = append(parts, "- Cards in deck:")
		for i, c := range s.Cards {
			if i == deckPreviewCards {
				parts = append(parts, fmt.Sprintf("  - ... and %d more", len(s.Cards)-deckPreviewCards))
				break
			}
			qty := c.Quantity
			if qty == 0 {
				qty = 1
			}
			cost := "?"
			if c.Cost != nil {
				cost = fmt.Sprint(*c.Cost)
			}
			parts = append(parts, fmt.Sprintf("  - %dx %s (%s) [%s, Cost %s, %s]",
				qty, orUnknown(c.Name), orUnknown(c.ID), orUnknown(c.Type), cost, orUnknown(c.Color)))
		}
	}
	return strings.Join(parts, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
