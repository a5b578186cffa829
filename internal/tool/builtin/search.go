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

package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"deck-agent/internal/agent"
	"deck-agent/internal/agent/tools"
	"deck-agent/internal/storage/catalog"
)

const (
	knowledgeLimit   = 5
	labelPreviewLen  = 80
	resultCardsType  = "card_results"
	leaderTypeFilter = "leader"
)

// Response 最终回答
func Response() *tools.Capability {
	return &tools.Capability{
		Name: ToolResponse,
		Description: "Deliver your final answer to the user. You MUST call this tool to send your response. " +
			"Use markdown formatting for readability.",
		Kind: tools.KindFinalAnswer,
		Params: []tools.Param{
			{Name: "text", Type: schema.String, Desc: "Your final response to the user in markdown format.", Required: true},
		},
		Execute: func(_ context.Context, _ *tools.Env, args tools.Args) (*tools.Result, error) {
			return &tools.Result{Message: args.String("text")}, nil
		},
	}
}

func session(env *tools.Env) (catalog.Session, error) {
	if env == nil || env.Catalog == nil {
		return nil, fmt.Errorf("no catalog session for this turn")
	}
	return env.Catalog, nil
}

func cardFilter(args tools.Args) catalog.CardFilter {
	return catalog.CardFilter{
		Name:         args.String("name"),
		Color:        args.String("color"),
		Type:         args.String("type"),
		Category:     args.String("category"),
		SetCode:      args.String("set_code"),
		TextContains: args.String("text_contains"),
		CostMin:      args.IntPtr("cost_min"),
		CostMax:      args.IntPtr("cost_max"),
		PowerMin:     args.IntPtr("power_min"),
		Limit:        catalog.NormalizeLimit(args.Int("limit", 0)),
	}
}

func leaderFilter(args tools.Args) catalog.LeaderFilter {
	return catalog.LeaderFilter{
		Name:     args.String("name"),
		Color:    args.String("color"),
		Category: args.String("category"),
		SetCode:  args.String("set_code"),
		PowerMin: args.IntPtr("power_min"),
		Limit:    catalog.NormalizeLimit(args.Int("limit", 0)),
	}
}

// SearchCards 卡牌搜索；type 为 Leader 时改查 Leader
func SearchCards() *tools.Capability {
	return &tools.Capability{
		Name: ToolSearchCards,
		Description: "Search the card database for One Piece TCG cards and leaders. " +
			"Filter by name, color, cost range, type, category, power, set code, or effect text. " +
			"Set type to 'Leader' to search for leader cards specifically. " +
			"Returns up to 15 matching results with their details.",
		Kind: tools.KindQuery,
		Params: []tools.Param{
			{Name: "name", Type: schema.String, Desc: "Card name or partial name to search for."},
			{Name: "color", Type: schema.String, Desc: "Card color (Red, Green, Blue, Purple, Black, Yellow)."},
			{Name: "cost_min", Type: schema.Integer, Desc: "Minimum cost filter."},
			{Name: "cost_max", Type: schema.Integer, Desc: "Maximum cost filter."},
			{Name: "type", Type: schema.String, Desc: "Card type (Character, Event, Stage, Leader)."},
			{Name: "category", Type: schema.String, Desc: "Card category / trait (e.g. Straw Hat Crew, Navy)."},
			{Name: "power_min", Type: schema.Integer, Desc: "Minimum power filter."},
			{Name: "set_code", Type: schema.String, Desc: "Set code filter (e.g. OP01, OP02)."},
			{Name: "text_contains", Type: schema.String, Desc: "Search within card effect text."},
			{Name: "limit", Type: schema.Integer, Desc: "Max results to return (default 15)."},
		},
		Annotate: func(args tools.Args) string {
			return "Searching cards: " + args.StringOr("name", args.String("type"))
		},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			s, err := session(env)
			if err != nil {
				return nil, err
			}
			if strings.EqualFold(args.String("type"), leaderTypeFilter) {
				leaders, err := s.SearchLeaders(ctx, leaderFilter(args))
				if err != nil {
					return nil, err
				}
				return &tools.Result{
					Message: catalog.FormatLeaders(leaders),
					Data:    map[string]any{"type": resultCardsType, "cards": leaders},
				}, nil
			}
			cards, err := s.SearchCards(ctx, cardFilter(args))
			if err != nil {
				return nil, err
			}
			return &tools.Result{
				Message: catalog.FormatCards(cards),
				Data:    map[string]any{"type": resultCardsType, "cards": cards},
			}, nil
		},
	}
}

// SearchLeaders Leader 搜索，仅供策略规划器使用
func SearchLeaders() *tools.Capability {
	return &tools.Capability{
		Name:        ToolSearchLeaders,
		Description: "Search for leader cards.",
		Kind:        tools.KindQuery,
		Params: []tools.Param{
			{Name: "name", Type: schema.String, Desc: "Leader name or partial name."},
			{Name: "color", Type: schema.String, Desc: "Leader color."},
			{Name: "category", Type: schema.String, Desc: "Leader category/trait."},
		},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			s, err := session(env)
			if err != nil {
				return nil, err
			}
			leaders, err := s.SearchLeaders(ctx, leaderFilter(args))
			if err != nil {
				return nil, err
			}
			return &tools.Result{Message: catalog.FormatLeaders(leaders)}, nil
		},
	}
}

// SearchKnowledge 规则知识检索；检索失败降级为提示文本
func SearchKnowledge(kb agent.Recaller) *tools.Capability {
	return &tools.Capability{
		Name: ToolSearchKnowledge,
		Description: "Search the One Piece TCG rules and keyword knowledge base. " +
			"Use this for rules questions, keyword definitions, game mechanics, " +
			"turn structure, and any official game rules.",
		Kind: tools.KindQuery,
		Params: []tools.Param{
			{Name: "query", Type: schema.String, Desc: "The rules question or topic to search for.", Required: true},
		},
		Annotate: func(args tools.Args) string {
			return "Looking up rules: " + truncate(args.String("query"), labelPreviewLen)
		},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			query := args.String("query")
			if query == "" {
				return &tools.Result{Message: "Please provide a search query."}, nil
			}
			if kb == nil {
				return &tools.Result{Message: "Knowledge base search failed: knowledge base is not configured. " +
					"The knowledge base may not be indexed yet."}, nil
			}
			entries, err := kb.Query(ctx, query, knowledgeLimit)
			if err != nil {
				return &tools.Result{Message: fmt.Sprintf("Knowledge base search failed: %s. "+
					"The knowledge base may not be indexed yet.", err)}, nil
			}
			if len(entries) == 0 {
				return &tools.Result{Message: "No relevant knowledge found. I'll answer based on my general knowledge of OPTCG."}, nil
			}
			lines := []string{"Relevant knowledge from the rules database:\n"}
			for i, e := range entries {
				src := e.Source
				if src == "" {
					src = "unknown"
				}
				lines = append(lines, fmt.Sprintf("**[%d] %s** (relevance: %.2f)", i+1, src, e.Score), e.Text, "")
			}
			return &tools.Result{Message: strings.Join(lines, "\n")}, nil
		},
	}
}
