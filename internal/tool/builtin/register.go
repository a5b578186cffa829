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

// Package builtin 卡组助手内置的工具能力
package builtin

import (
	"log/slog"

	"deck-agent/internal/agent"
	"deck-agent/internal/agent/planner"
	"deck-agent/internal/agent/tools"
)

// 能力名
const (
	ToolResponse        = "response"
	ToolSearchCards     = "search_cards"
	ToolSearchLeaders   = "search_leaders"
	ToolSearchKnowledge = "search_knowledge"
	ToolManageDeck      = "manage_deck"
	ToolAnalyzeStrategy = "analyze_strategy"
	ToolQueryData       = "query_data"
	ToolModifyDeck      = "modify_deck"
	ToolGetDeckInfo     = "get_deck_info"
	ToolValidateDeck    = "validate_deck"
	ToolCalculateStats  = "calculate_stats"
	ToolSetDeckLeader   = "set_deck_leader"
	ToolAddCards        = "add_cards_to_deck"
	ToolRemoveCards     = "remove_cards_from_deck"
)

// DataTools query_data 子代理可用的只读能力
var DataTools = []string{ToolSearchCards, ToolGetDeckInfo, ToolValidateDeck, ToolCalculateStats, ToolSearchKnowledge}

// UITools modify_deck 子代理可用的变更能力
var UITools = []string{ToolSetDeckLeader, ToolAddCards, ToolRemoveCards}

// Deps 内置能力的依赖
type Deps struct {
	// Knowledge 规则知识库，为空时 search_knowledge 返回降级提示
	Knowledge agent.Recaller
	// SubAgentIterations query_data / modify_deck 的预算，<=0 用默认值
	SubAgentIterations int
	// PlannerIterations analyze_strategy 的预算，<=0 用默认值
	PlannerIterations int
	Logger            *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Register 注册全部内置能力。叶子能力先注册，委派能力随后按名称从 reg 中解析自己的子集；
// 调用方在装配结束后 Seal。
func Register(reg *tools.Registry, deps Deps) error {
	leaves := []*tools.Capability{
		Response(),
		SearchCards(),
		SearchKnowledge(deps.Knowledge),
		ManageDeck(),
		GetDeckInfo(),
		ValidateDeck(),
		CalculateStats(),
		SetDeckLeader(),
		AddCardsToDeck(),
		RemoveCardsFromDeck(),
	}
	for _, c := range leaves {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	logger := deps.logger()
	p, err := planner.New([]*tools.Capability{SearchCards(), SearchLeaders()},
		planner.WithIterations(deps.PlannerIterations),
		planner.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if err := reg.Register(AnalyzeStrategy(p)); err != nil {
		return err
	}

	data, err := agent.NewRunner(ToolQueryData, reg.Resolve(DataTools...),
		agent.WithRunnerIterations(deps.SubAgentIterations), agent.WithRunnerLogger(logger))
	if err != nil {
		return err
	}
	if err := reg.Register(QueryData(data)); err != nil {
		return err
	}

	ui, err := agent.NewRunner(ToolModifyDeck, reg.Resolve(UITools...),
		agent.WithRunnerIterations(deps.SubAgentIterations), agent.WithRunnerLogger(logger))
	if err != nil {
		return err
	}
	return reg.Register(ModifyDeck(ui))
}

// NewRegistry 注册全部内置能力并 Seal
func NewRegistry(deps Deps) (*tools.Registry, error) {
	reg := tools.NewRegistry()
	if err := Register(reg, deps); err != nil {
		return nil, err
	}
	reg.Seal()
	return reg, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
