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
	"strings"

	"github.com/cloudwego/eino/schema"

	"deck-agent/internal/agent"
	"deck-agent/internal/agent/planner"
	"deck-agent/internal/agent/prompts"
	"deck-agent/internal/agent/tools"
	"deck-agent/internal/deck"
)

func taskParam(desc string) []tools.Param {
	return []tools.Param{{Name: "task", Type: schema.String, Desc: desc, Required: true}}
}

// QueryData 把信息检索委派给只读子代理，只返回子代理的文本
func QueryData(runner *agent.Runner) *tools.Capability {
	return &tools.Capability{
		Name: ToolQueryData,
		Description: "Query card data, deck information, rules, or statistics. " +
			"Delegates to a data retrieval agent that can search cards, " +
			"get deck info, validate decks, calculate stats, and look up rules. " +
			"Use this for ANY information gathering before making deck modifications.",
		Kind: tools.KindDelegate,
		Params: taskParam("Description of the data to retrieve. Be specific about what you need, " +
			"e.g. 'Search for red characters with cost 3 or less' or 'Get the current deck info and validate it'."),
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			res := runner.Run(ctx, env, agent.SubAgentPrompt(prompts.DataAgent, env.Context), args.String("task"))
			return &tools.Result{Message: res.Message}, nil
		},
	}
}

// ModifyDeck 把卡组变更委派给变更子代理，子代理产生的前端载荷合并后上抛
func ModifyDeck(runner *agent.Runner) *tools.Capability {
	return &tools.Capability{
		Name: ToolModifyDeck,
		Description: "Modify the deck in the deck builder: set leader, add cards, or remove cards. " +
			"Delegates to a deck modification agent. You MUST provide specific card IDs " +
			"(obtained from query_data), never guess IDs. Include leader colors for validation.",
		Kind: tools.KindDelegate,
		Params: taskParam("Description of the deck modification to perform. Include specific card IDs and quantities, " +
			"e.g. 'Add 4x OP01-006 and 4x OP01-016 to the deck. Leader colors are Red.' or 'Set leader to OP01-001'."),
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			res := runner.Run(ctx, env, agent.SubAgentPrompt(prompts.UIAgent, env.Context), args.String("task"))
			return &tools.Result{Message: res.Message, Data: res.CombinedActionData()}, nil
		},
	}
}

// AnalyzeStrategy 运行策略规划并立即执行规划出的变更
func AnalyzeStrategy(p *planner.Planner) *tools.Capability {
	return &tools.Capability{
		Name: ToolAnalyzeStrategy,
		Description: "Analyze deck strategy and build a deck plan. Use this for complex tasks like " +
			"'help me finish my deck', 'build a competitive red aggro deck', " +
			"'suggest improvements', or 'fill my remaining slots'. " +
			"The strategy agent will search for real cards, create a plan, and auto-execute it. " +
			"Do NOT use this for simple card additions; use manage_deck directly for those.",
		Kind: tools.KindDelegate,
		Params: taskParam("Description of the strategy task. Be specific about the user's goals, " +
			"e.g. 'Build an aggressive red rush deck that wins fast' or " +
			"'Fill the remaining 30 slots with cards that synergize with the Straw Hat Crew archetype'."),
		Annotate: func(args tools.Args) string {
			return "Analyzing strategy: " + truncate(args.String("task"), labelPreviewLen)
		},
		Execute: func(ctx context.Context, env *tools.Env, args tools.Args) (*tools.Result, error) {
			plan := p.Plan(ctx, env, args.String("task"))
			if plan.Empty() {
				return &tools.Result{Message: plan.Reasoning}, nil
			}
			ex, err := executor(env)
			if err != nil {
				return nil, err
			}
			m, err := ex.ExecutePlan(ctx, plan)
			if err != nil {
				return nil, err
			}
			return planResult(plan, m), nil
		},
	}
}

func planResult(plan *deck.Plan, m *deck.Modification) *tools.Result {
	if !m.OK() {
		msg := plan.Reasoning + "\n\n**Issues encountered:**\n" + strings.Join(m.Errors, "\n")
		return &tools.Result{Message: msg, Data: m.ActionData()}
	}
	msg := plan.Reasoning
	if m.Summary != "" {
		msg += "\n\n**Changes applied:**\n" + m.Summary
	}
	return &tools.Result{Message: msg, Data: m.ActionData()}
}
