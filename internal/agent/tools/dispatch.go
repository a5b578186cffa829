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

package tools

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"deck-agent/pkg/metrics"
	"deck-agent/pkg/tracing"
)

// OutcomeKind 分发结果
type OutcomeKind int

const (
	// Continue 结果消息回填给模型，循环继续
	Continue OutcomeKind = iota + 1
	// Terminate 结果消息即最终回答
	Terminate
	// Failed 执行失败，Result.Message 为给模型的错误说明
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Terminate:
		return "terminate"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome 一次分发的结果，Result 总是非空
type Outcome struct {
	Kind   OutcomeKind
	Result *Result
	Err    error
}

type handler func(ctx context.Context, c *Capability, env *Env, args Args) Outcome

var dispatchTable = map[Kind]handler{
	KindFinalAnswer: runFinalAnswer,
	KindQuery:       runStep,
	KindMutation:    runMutation,
	KindDelegate:    runDelegate,
}

// Dispatch 执行一次调用：按变体分发，统计耗时，panic 转为 Failed
func Dispatch(ctx context.Context, c *Capability, env *Env, inv Invocation) (out Outcome) {
	ctx, span := tracing.StartToolSpan(ctx, c.Name, inv.ID)
	span.SetAttributes(attribute.String("tool.kind", c.Kind.String()))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = failed(fmt.Errorf("tool %s panicked: %v", c.Name, r))
		}
		metrics.ToolDuration.WithLabelValues(c.Name).Observe(time.Since(start).Seconds())
		if out.Kind == Failed {
			metrics.ToolFailTotal.WithLabelValues(c.Name).Inc()
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
		span.SetAttributes(attribute.String("tool.outcome", out.Kind.String()))
		span.End()
	}()

	h, ok := dispatchTable[c.Kind]
	if !ok {
		return failed(fmt.Errorf("unknown capability kind %s", c.Kind))
	}
	args := inv.Args
	if args == nil {
		args = Args{}
	}
	return h(ctx, c, env, args)
}

func failed(err error) Outcome {
	return Outcome{Kind: Failed, Err: err, Result: &Result{Message: "Tool error: " + err.Error()}}
}

func execute(ctx context.Context, c *Capability, env *Env, args Args) (*Result, error) {
	res, err := c.Execute(ctx, env, args)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &Result{}
	}
	return res, nil
}

func runFinalAnswer(ctx context.Context, c *Capability, env *Env, args Args) Outcome {
	res, err := execute(ctx, c, env, args)
	if err != nil {
		return failed(err)
	}
	res.Terminal = true
	return Outcome{Kind: Terminate, Result: res}
}

func runStep(ctx context.Context, c *Capability, env *Env, args Args) Outcome {
	res, err := execute(ctx, c, env, args)
	if err != nil {
		return failed(err)
	}
	res.Terminal = false
	return Outcome{Kind: Continue, Result: res}
}

func runMutation(ctx context.Context, c *Capability, env *Env, args Args) Outcome {
	out := runStep(ctx, c, env, args)
	if out.Kind == Continue && out.Result.Data != nil {
		env.logger().Info("卡组变更", "tool", c.Name, "action", out.Result.Data["action"])
	}
	return out
}

func runDelegate(ctx context.Context, c *Capability, env *Env, args Args) Outcome {
	var sub Env
	if env != nil {
		sub = *env
	}
	sub.Logger = env.logger().With("delegate", c.Name)
	return runStep(ctx, c, &sub, args)
}
