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
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"deck-agent/internal/agent/tools"
	"deck-agent/pkg/metrics"
)

// ToolCallDelta 一个工具调用候选的片段
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Delta 后端一次增量输出的内部表示
type Delta struct {
	Text      string
	ToolCalls []ToolCallDelta
	// Complete 为 true 时 ToolCalls 是完整调用，替换此前累积的片段
	Complete bool
}

// Normalize 把后端消息块转为 Delta；未带 Index 的调用视为完整调用
func Normalize(msg *schema.Message) Delta {
	if msg == nil {
		return Delta{}
	}
	d := Delta{Text: msg.Content}
	if len(msg.ToolCalls) == 0 {
		return d
	}
	d.Complete = true
	for i, tc := range msg.ToolCalls {
		idx := i
		if tc.Index != nil {
			idx = *tc.Index
			d.Complete = false
		}
		d.ToolCalls = append(d.ToolCalls, ToolCallDelta{
			Index:     idx,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return d
}

type partialCall struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// Accumulator 把增量序列合并为一个决策：完整文本或一个工具调用
type Accumulator struct {
	text  strings.Builder
	calls []*partialCall
}

// Add 合并一个增量
func (a *Accumulator) Add(d Delta) {
	a.text.WriteString(d.Text)
	if d.Complete && len(d.ToolCalls) > 0 {
		a.calls = nil
	}
	for _, tc := range d.ToolCalls {
		if tc.Index < 0 {
			continue
		}
		for len(a.calls) <= tc.Index {
			a.calls = append(a.calls, &partialCall{})
		}
		p := a.calls[tc.Index]
		if tc.ID != "" && p.id == "" {
			p.id = tc.ID
		}
		p.name.WriteString(tc.Name)
		p.args.WriteString(tc.Arguments)
	}
}

// Decision 累加结果。Call 非空时为工具调用，否则 Text 为回答
type Decision struct {
	Text string
	Call *tools.Invocation
	// Dropped 同一轮中被丢弃的其余工具调用名
	Dropped []string
}

// IsToolCall 是否为工具调用
func (d Decision) IsToolCall() bool { return d.Call != nil }

// Decision 返回当前决策：第一个有名字的调用胜出，同时丢弃文本
func (a *Accumulator) Decision() Decision {
	var out Decision
	for _, p := range a.calls {
		name := p.name.String()
		if name == "" {
			continue
		}
		if out.Call == nil {
			out.Call = &tools.Invocation{ID: p.id, Name: name, Args: tools.ParseArgs(p.args.String())}
			continue
		}
		out.Dropped = append(out.Dropped, name)
	}
	if out.Call == nil {
		out.Text = a.text.String()
	}
	return out
}

// Accumulate 对整个增量序列求决策
func Accumulate(deltas []Delta) Decision {
	var a Accumulator
	for _, d := range deltas {
		a.Add(d)
	}
	return a.Decision()
}

// Drain 读完后端流并求决策，读完后关闭流
func Drain(ctx context.Context, stream *schema.StreamReader[*schema.Message], logger *slog.Logger) (Decision, error) {
	defer stream.Close()
	var (
		a     Accumulator
		usage *schema.TokenUsage
	)
	for {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Decision{}, err
		}
		if msg != nil && msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
			usage = msg.ResponseMeta.Usage
		}
		a.Add(Normalize(msg))
	}
	recordUsage(usage)
	dec := a.Decision()
	if len(dec.Dropped) > 0 && logger != nil {
		logger.Debug("同一轮返回多个工具调用，仅执行第一个", "tool", dec.Call.Name, "dropped", dec.Dropped)
	}
	return dec, nil
}

func recordUsage(u *schema.TokenUsage) {
	if u == nil {
		return
	}
	metrics.LLMTokensTotal.WithLabelValues("prompt").Add(float64(u.PromptTokens))
	metrics.LLMTokensTotal.WithLabelValues("completion").Add(float64(u.CompletionTokens))
}
