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

// Package planner 策略规划子代理：只读搜索后提交结构化的卡组变更计划，自身不执行计划
package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/schema"

	"deck-agent/internal/agent"
	"deck-agent/internal/agent/prompts"
	"deck-agent/internal/agent/tools"
	"deck-agent/internal/deck"
)

// 规划默认值与兜底文案
const (
	DefaultIterations = 8
	SubmitPlanTool    = "submit_plan"
	LoopName          = "strategy"

	NoPlanText        = "No plan generated."
	LimitReachedText  = "Strategy analysis reached iteration limit. Please try a more specific request."
	failedTextPrefix  = "Strategy planning failed: "
	planSubmittedText = "Plan submitted."
)

// Option 可选配置
type Option func(*config)

type config struct {
	iterations int
	logger     *slog.Logger
}

// WithIterations 规划预算
func WithIterations(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.iterations = n
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Planner 策略规划器
type Planner struct {
	runner *agent.Runner
	logger *slog.Logger
}

// New search 为只读的卡牌与 Leader 搜索能力，submit_plan 由规划器自行注册
func New(search []*tools.Capability, opts ...Option) (*Planner, error) {
	cfg := config{iterations: DefaultIterations, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}

	reg := tools.NewRegistry()
	names := make([]string, 0, len(search)+1)
	for _, c := range search {
		if c.Kind != tools.KindQuery {
			return nil, fmt.Errorf("planner tool %s must be a query, got %s", c.Name, c.Kind)
		}
		if err := reg.Register(c); err != nil {
			return nil, err
		}
		names = append(names, c.Name)
	}
	if err := reg.Register(SubmitPlan()); err != nil {
		return nil, err
	}
	names = append(names, SubmitPlanTool)
	reg.Seal()

	runner, err := agent.NewRunner(LoopName, reg.Resolve(names...),
		agent.WithRunnerIterations(cfg.iterations),
		agent.WithCallPrefix("strategy_"),
		agent.WithRunnerLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}
	return &Planner{runner: runner, logger: cfg.logger}, nil
}

// Tools 规划器可用的能力名
func (p *Planner) Tools() []string { return p.runner.Tools().Names() }

// Plan 运行规划子代理；任何情况下都返回计划，失败体现在空变更与 Reasoning 中
func (p *Planner) Plan(ctx context.Context, env *tools.Env, task string) *deck.Plan {
	var snapshot *deck.BuilderState
	if env != nil {
		s, err := env.Context.BuilderState()
		if err != nil {
			p.logger.Warn("卡组快照解析失败，按空快照规划", "error", err)
		}
		snapshot = s
	}

	res := p.runner.Run(ctx, env, SystemPrompt(snapshot), task)
	switch {
	case res.Final != nil:
		plan := ParsePlan(res.Final.Args, snapshot)
		p.logger.Info("strategy plan submitted",
			"leader", plan.LeaderToSet, "add", len(plan.CardsToAdd), "remove", len(plan.CardsToRemove), "iterations", res.Iterations)
		return plan
	case res.Err != nil:
		return &deck.Plan{Reasoning: failedTextPrefix + res.Err.Error()}
	case res.Exhausted:
		return &deck.Plan{Reasoning: LimitReachedText}
	default:
		p.logger.Warn("strategy agent responded with text instead of a plan")
		if res.Message == "" {
			return &deck.Plan{Reasoning: NoPlanText}
		}
		return &deck.Plan{Reasoning: res.Message}
	}
}

// SystemPrompt 策略模板、规则与卡组快照
func SystemPrompt(snapshot *deck.BuilderState) string {
	var state string
	if snapshot != nil {
		state = agent.DeckStateBlock(snapshot)
	}
	return prompts.Join(prompts.Load(prompts.StrategyAgent), prompts.Load(prompts.SystemRules), state)
}

// ParsePlan 解析 submit_plan 参数；数量限制到 [1,4]，Leader 颜色只取自快照
func ParsePlan(args tools.Args, snapshot *deck.BuilderState) *deck.Plan {
	plan := &deck.Plan{
		LeaderToSet:   args.String("leader_to_set"),
		CardsToAdd:    []deck.PlanCard{},
		CardsToRemove: args.Strings("cards_to_remove"),
		LeaderColors:  snapshot.LeaderColors(),
		Reasoning:     args.String("reasoning"),
	}
	if plan.CardsToRemove == nil {
		plan.CardsToRemove = []string{}
	}
	for _, item := range args.Objects("cards_to_add") {
		id := item.String("card_id")
		if id == "" {
			continue
		}
		plan.CardsToAdd = append(plan.CardsToAdd, deck.PlanCard{
			CardID:   id,
			Quantity: deck.ClampQuantity(item.Int("quantity", 1)),
		})
	}
	return plan
}

// SubmitPlan 规划器唯一的终止能力；结果由 Plan 从调用参数中解析
func SubmitPlan() *tools.Capability {
	return &tools.Capability{
		Name:        SubmitPlanTool,
		Description: "Submit your final deck building plan. Call this exactly once when done.",
		Kind:        tools.KindFinalAnswer,
		Params: []tools.Param{
			{Name: "leader_to_set", Type: schema.String, Desc: "Leader card ID to set, or empty to keep the current leader."},
			{
				Name: "cards_to_add", Type: schema.Array, Desc: "Cards to add to the deck.", Required: true,
				Elem: &tools.Param{Type: schema.Object, Fields: []tools.Param{
					{Name: "card_id", Type: schema.String, Required: true},
					{Name: "quantity", Type: schema.Integer, Desc: "Copies to add, 1-4.", Required: true},
					{Name: "name", Type: schema.String},
					{Name: "reason", Type: schema.String},
				}},
			},
			{Name: "cards_to_remove", Type: schema.Array, Desc: "Card IDs to remove from the deck.", Elem: &tools.Param{Type: schema.String}},
			{Name: "reasoning", Type: schema.String, Desc: "Overall strategy explanation in markdown.", Required: true},
		},
		Execute: func(context.Context, *tools.Env, tools.Args) (*tools.Result, error) {
			return &tools.Result{Message: planSubmittedText}, nil
		},
	}
}
