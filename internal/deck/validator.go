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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Validate 按构筑规则校验卡组：必须有 Leader、恰好 50 张、同名最多 4 张、颜色符合 Leader
func Validate(d *Deck) (bool, []string) {
	var errs []string
	if d.LeaderID == "" {
		errs = append(errs, "Deck must have a leader")
	}

	total := 0
	for _, dc := range d.Cards {
		total += dc.Quantity
	}
	if total != DeckSize {
		errs = append(errs, fmt.Sprintf("Deck must have exactly %d cards (currently has %d)", DeckSize, total))
	}

	for _, dc := range d.Cards {
		if dc.Quantity > MaxCopies {
			errs = append(errs, fmt.Sprintf("Max %d copies allowed of '%s' (has %d)", MaxCopies, dc.Card.Name, dc.Quantity))
		}
	}

	if d.Leader != nil {
		allowed := d.Leader.Colors
		for _, dc := range d.Cards {
			colors := ParseColors(dc.Card.Color)
			if !Subset(colors, allowed) {
				errs = append(errs, fmt.Sprintf(
					"'%s' has invalid color(s) for this leader. Leader allows: %s, Card has: %s",
					dc.Card.Name, strings.Join(allowed, ", "), strings.Join(colors, ", ")))
			}
		}
	}
	return len(errs) == 0, errs
}

// Stats 卡组统计
type Stats struct {
	TotalCards        int            `json:"total_cards"`
	AvgCost           float64        `json:"avg_cost"`
	ColorDistribution map[string]int `json:"color_distribution"`
	CostCurve         map[int]int    `json:"cost_curve"`
	TypeCounts        map[string]int `json:"type_counts"`
	PowerBuckets      map[string]int `json:"power_buckets"`
	CounterCounts     map[int]int    `json:"counter_counts"`
	KeywordCounts     map[string]int `json:"keyword_counts"`
}

// PowerBucketOrder 力量分档顺序
var PowerBucketOrder = []string{"0-3000", "4000-5000", "6000-7000", "8000+"}

// Keywords 统计的效果关键字
var Keywords = []string{"blocker", "rush", "double attack", "banish", "on play", "on k.o."}

func powerBucket(p int) string {
	switch {
	case p <= 3000:
		return "0-3000"
	case p <= 5000:
		return "4000-5000"
	case p <= 7000:
		return "6000-7000"
	default:
		return "8000+"
	}
}

// CalculateStats 计算卡组统计
func CalculateStats(d *Deck) Stats {
	s := Stats{
		ColorDistribution: map[string]int{},
		CostCurve:         map[int]int{},
		TypeCounts:        map[string]int{},
		PowerBuckets:      map[string]int{},
		CounterCounts:     map[int]int{},
		KeywordCounts:     map[string]int{},
	}
	totalCost := 0
	for _, dc := range d.Cards {
		c, q := dc.Card, dc.Quantity
		s.TotalCards += q

		cost := 0
		if c.Cost != nil {
			cost = *c.Cost
			totalCost += cost * q
		}
		s.CostCurve[cost] += q

		for _, color := range ParseColors(c.Color) {
			s.ColorDistribution[color] += q
		}

		t := c.Type
		if t == "" {
			t = "Unknown"
		}
		s.TypeCounts[t] += q

		if c.Counter != nil {
			s.CounterCounts[*c.Counter] += q
		}
		if c.Power != nil {
			s.PowerBuckets[powerBucket(*c.Power)] += q
		}
		if c.Text != "" {
			lower := strings.ToLower(c.Text)
			for _, kw := range Keywords {
				if strings.Contains(lower, kw) {
					s.KeywordCounts[kw] += q
				}
			}
		}
	}
	if s.TotalCards > 0 {
		s.AvgCost = math.Round(float64(totalCost)/float64(s.TotalCards)*100) / 100
	}
	return s
}

// FormatStats 统计结果渲染为 markdown
func FormatStats(name string, s Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Deck Statistics: %s\n\n", name)
	fmt.Fprintf(&b, "**Total cards:** %d\n", s.TotalCards)
	fmt.Fprintf(&b, "**Average cost:** %s\n\n", formatFloat(s.AvgCost))

	b.WriteString("## Cost Curve\n")
	for _, cost := range sortedIntKeys(s.CostCurve) {
		n := s.CostCurve[cost]
		fmt.Fprintf(&b, "  %d: %s (%d)\n", cost, strings.Repeat("█", n), n)
	}
	b.WriteString("\n## Color Distribution\n")
	for _, kv := range byCountDesc(s.ColorDistribution) {
		fmt.Fprintf(&b, "  %s: %d\n", kv.key, kv.n)
	}
	b.WriteString("\n## Type Breakdown\n")
	for _, kv := range byCountDesc(s.TypeCounts) {
		fmt.Fprintf(&b, "  %s: %d\n", kv.key, kv.n)
	}
	if len(s.PowerBuckets) > 0 {
		b.WriteString("\n## Power Distribution\n")
		for _, bucket := range PowerBucketOrder {
			if n, ok := s.PowerBuckets[bucket]; ok {
				fmt.Fprintf(&b, "  %s: %d\n", bucket, n)
			}
		}
	}
	if len(s.CounterCounts) > 0 {
		b.WriteString("\n## Counter Values\n")
		for _, v := range sortedIntKeys(s.CounterCounts) {
			fmt.Fprintf(&b, "  +%d: %d cards\n", v, s.CounterCounts[v])
		}
	}
	if len(s.KeywordCounts) > 0 {
		b.WriteString("\n## Keywords\n")
		for _, kv := range byCountDesc(s.KeywordCounts) {
			fmt.Fprintf(&b, "  %s: %d\n", kv.key, kv.n)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatInfo 卡组详情渲染为 markdown，卡牌按类型分组、组内按费用与名称排序
func FormatInfo(d *Deck) string {
	var lines []string
	lines = append(lines, "# "+d.Name)
	if d.Description != "" {
		lines = append(lines, "*"+d.Description+"*\n")
	}
	if l := d.Leader; l != nil {
		lines = append(lines, fmt.Sprintf("**Leader:** %s (%s)", l.Name, l.ID))
		lines = append(lines, fmt.Sprintf("  Life: %d | Colors: %s", l.Life, strings.Join(l.Colors, ", ")))
		if l.Text != "" {
			lines = append(lines, "  Effect: "+truncate(l.Text, 200))
		}
		lines = append(lines, "")
	}
	lines = append(lines, fmt.Sprintf("**Total cards:** %d", d.TotalCards))
	if d.AvgCost != nil {
		lines = append(lines, fmt.Sprintf("**Avg cost:** %.2f", *d.AvgCost))
	}
	if len(d.ColorDistribution) > 0 {
		var parts []string
		for _, kv := range byCountDesc(d.ColorDistribution) {
			parts = append(parts, fmt.Sprintf("%s: %d", kv.key, kv.n))
		}
		lines = append(lines, "**Colors:** "+strings.Join(parts, ", "))
	}
	lines = append(lines, "")

	byType := map[string][]DeckCard{}
	for _, dc := range d.Cards {
		t := dc.Card.Type
		if t == "" {
			t = "Unknown"
		}
		byType[t] = append(byType[t], dc)
	}
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		cards := byType[t]
		sort.SliceStable(cards, func(i, j int) bool {
			ci, cj := intOr(cards[i].Card.Cost), intOr(cards[j].Card.Cost)
			if ci != cj {
				return ci < cj
			}
			return cards[i].Card.Name < cards[j].Card.Name
		})
		n := 0
		for _, dc := range cards {
			n += dc.Quantity
		}
		lines = append(lines, fmt.Sprintf("### %ss (%d)", t, n))
		for _, dc := range cards {
			var stats []string
			if dc.Card.Cost != nil {
				stats = append(stats, fmt.Sprintf("Cost %d", *dc.Card.Cost))
			}
			if dc.Card.Power != nil {
				stats = append(stats, fmt.Sprintf("Power %d", *dc.Card.Power))
			}
			lines = append(lines, fmt.Sprintf("- %dx %s (%s) [%s]", dc.Quantity, dc.Card.Name, dc.Card.ID, strings.Join(stats, " | ")))
		}
		lines = append(lines, "")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// Summarize 根据卡牌重新计算 TotalCards / AvgCost / ColorDistribution
func Summarize(d *Deck) {
	s := CalculateStats(d)
	d.TotalCards = s.TotalCards
	d.ColorDistribution = s.ColorDistribution
	if s.TotalCards > 0 {
		avg := s.AvgCost
		d.AvgCost = &avg
	} else {
		d.AvgCost = nil
	}
}

type keyCount struct {
	key string
	n   int
}

func byCountDesc(m map[string]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, n := range m {
		out = append(out, keyCount{k, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].key < out[j].key
	})
	return out
}

func sortedIntKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func intOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
