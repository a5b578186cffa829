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
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/schema"

	"deck-agent/internal/agent/tools"
	"deck-agent/internal/deck"
	"deck-agent/pkg/errors"
	"deck-agent/pkg/metrics"
	"deck-agent/pkg/tracing"
)

// 子代理默认配置
const (
	DefaultSubAgentIterations = 5
	subAgentExhaustedText     = "Sub-agent reached maximum iterations."
)

// RunResult 子代理结果
type RunResult struct {
	// Message 后端最终返回的文本，或终止能力的结果消息，或失败说明
	Message    string
	ToolCalls  []tools.Invocation
	ActionData []map[string]any
	// Final 子集中最终回答能力被调用时的那次调用
	Final      *tools.Invocation
	Iterations int
	Exhausted  bool
	Err        error
}

// CombinedActionData 合并副作用载荷：无则 nil，一个原样返回，多个包成 batch_deck_update
func (r *RunResult) CombinedActionData() map[string]any {
	switch len(r.ActionData) {
	case 0:
		return nil
	case 1:
		return r.ActionData[0]
	default:
		return map[string]any{"action": deck.ActionBatch, "actions": r.ActionData}
	}
}

// Runner 子代理：受限能力子集上的小型决策循环，预算独立于父循环
type Runner struct {
	name          string
	tools         *tools.Set
	maxIterations int
	callPrefix    string
	logger        *slog.Logger
}

// RunnerOption 可选配置
type RunnerOption func(*Runner)

// WithRunnerIterations 子代理最大迭代数
func WithRunnerIterations(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// WithCallPrefix 合成调用 id 的前缀，默认 sub_
func WithCallPrefix(p string) RunnerOption {
	return func(r *Runner) { r.callPrefix = p }
}

// WithRunnerLogger 设置日志
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner 创建子代理；set 中最多一个最终回答能力
func NewRunner(name string, set *tools.Set, opts ...RunnerOption) (*Runner, error) {
	if err := set.Validate(0, 1); err != nil {
		return nil, err
	}
	r := &Runner{
		name:          name,
		tools:         set,
		maxIterations: DefaultSubAgentIterations,
		callPrefix:    "sub_",
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Tools 子代理可用的能力
func (r *Runner) Tools() *tools.Set { return r.tools }

// Run 执行子代理。env 与父循环共享（同一存储会话）；env.Model 为本回合的后端
func (r *Runner) Run(ctx context.Context, env *tools.Env, systemPrompt, task string) *RunResult {
	ctx, span := tracing.StartSubAgentSpan(ctx, r.name, r.maxIterations)
	defer span.End()
	logger := r.logger.With("sub_agent", r.name)
	if env != nil && env.Logger != nil {
		logger = env.Logger.With("sub_agent", r.name)
	}

	res := &RunResult{}
	defer func() {
		metrics.LoopIterations.WithLabelValues(r.name).Observe(float64(res.Iterations))
	}()

	if env == nil || env.Model == nil {
		res.Err = fmt.Errorf("no chat model configured")
		res.Message = "Sub-agent error: " + res.Err.Error()
		return res
	}
	chat, err := env.Model.WithTools(r.tools.Infos())
	if err != nil {
		res.Err = err
		res.Message = "Sub-agent error: " + err.Error()
		return res
	}

	msgs := []*schema.Message{schema.SystemMessage(systemPrompt), schema.UserMessage(task)}
	for i := 0; i < r.maxIterations; i++ {
		res.Iterations = i + 1
		logger.Info("sub-agent iteration", "iteration", i+1, "max", r.maxIterations)

		resp, err := chat.Generate(ctx, msgs)
		if err != nil {
			logger.Error("sub-agent backend error", "error", err)
			res.Err = err
			res.Message = "Sub-agent error: " + err.Error()
			return res
		}
		dec := Accumulate([]Delta{Normalize(resp)})
		if len(dec.Dropped) > 0 {
			logger.Debug("同一轮返回多个工具调用，仅执行第一个", "tool", dec.Call.Name, "dropped", dec.Dropped)
		}
		if !dec.IsToolCall() {
			res.Message = dec.Text
			return res
		}

		inv := tools.Invocation{
			ID:   fmt.Sprintf("%s%d", r.callPrefix, i),
			Name: tools.StripProxyPrefix(dec.Call.Name),
			Args: tools.RepairJSONStrings(dec.Call.Args),
		}
		res.ToolCalls = append(res.ToolCalls, inv)
		logger.Info("sub-agent calling tool", "tool", inv.Name)

		text, final := r.dispatch(ctx, env, inv, res, logger)
		if final {
			res.Final = &inv
			res.Message = text
			return res
		}
		msgs = append(msgs, toolExchange(inv, text)...)
	}

	logger.Warn("sub-agent reached maximum iterations")
	res.Exhausted = true
	res.Message = subAgentExhaustedText
	return res
}

func (r *Runner) dispatch(ctx context.Context, env *tools.Env, inv tools.Invocation, res *RunResult, logger *slog.Logger) (string, bool) {
	c, ok := r.tools.Get(inv.Name)
	if !ok {
		logger.Warn("sub-agent unknown tool", "tool", inv.Name, "available", r.tools.Names())
		return r.tools.UnknownMessage(inv.Name), false
	}
	out := tools.Dispatch(ctx, c, env, inv)
	switch out.Kind {
	case tools.Failed:
		logger.Error("sub-agent tool failed", "tool", inv.Name, "error", out.Err)
		if errors.IsStorage(out.Err) && env.Catalog != nil {
			if err := env.Catalog.Rollback(ctx); err != nil {
				logger.Warn("回滚存储会话失败", "error", err)
			}
		}
		return out.Result.Message, false
	case tools.Terminate:
		if out.Result.Data != nil {
			res.ActionData = append(res.ActionData, out.Result.Data)
		}
		return out.Result.Message, true
	default:
		if out.Result.Data != nil {
			res.ActionData = append(res.ActionData, out.Result.Data)
		}
		return out.Result.Message, false
	}
}
