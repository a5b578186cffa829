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
	"fmt"
	"strings"

	"deck-agent/internal/deck"
)

const effectPreview = 150

// FormatCards 将卡牌结果渲染为工具返回文本
func FormatCards(cards []*deck.Card) string {
	if len(cards) == 0 {
		return "No cards found matching your criteria."
	}
	lines := []string{fmt.Sprintf("Found %d card(s):\n", len(cards))}
	for _, c := range cards {
		parts := []string{fmt.Sprintf("**%s** (%s)", c.Name, c.ID)}
		typ := c.Type
		if typ == "" {
			typ = "?"
		}
		parts = append(parts, "Type: "+typ)
		if c.Color != "" {
			parts = append(parts, "Color: "+c.Color)
		}
		if c.Cost != nil {
			parts = append(parts, fmt.Sprintf("Cost: %d", *c.Cost))
		}
		if c.Power != nil {
			parts = append(parts, fmt.Sprintf("Power: %d", *c.Power))
		}
		if c.Counter != nil {
			parts = append(parts, fmt.Sprintf("Counter: %d", *c.Counter))
		}
		if c.Category != "" {
			parts = append(parts, "Category: "+c.Category)
		}
		if c.Text != "" {
			parts = append(parts, "Effect: "+preview(c.Text))
		}
		lines = append(lines, strings.Join(parts, " | "))
	}
	return strings.Join(lines, "\n")
}

// FormatLeaders 将 Leader 结果渲染为工具返回文本
func FormatLeaders(leaders []*deck.Leader) string {
	if len(leaders) == 0 {
		return "No leaders found matching your criteria."
	}
	lines := []string{fmt.Sprintf("Found %d leader(s):\n", len(leaders))}
	for _, l := range leaders {
		parts := []string{fmt.Sprintf("**%s** (%s)", l.Name, l.ID), "Type: Leader"}
		if len(l.Colors) > 0 {
			parts = append(parts, "Colors: "+strings.Join(l.Colors, ", "))
		}
		parts = append(parts, fmt.Sprintf("Life: %d", l.Life))
		if l.Power != nil {
			parts = append(parts, fmt.Sprintf("Power: %d", *l.Power))
		}
		if l.Category != "" {
			parts = append(parts, "Category: "+l.Category)
		}
		if l.Text != "" {
			parts = append(parts, "Effect: "+preview(l.Text))
		}
		lines = append(lines, strings.Join(parts, " | "))
	}
	return strings.Join(lines, "\n")
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= effectPreview {
		return s
	}
	return string(r[:effectPreview])
}
