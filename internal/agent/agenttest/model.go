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

// Package agenttest 按脚本回放的聊天模型，供编排核心与工具的测试使用
package agenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ScriptedModel 每次调用依次返回下一段脚本；Repeat 为 true 时脚本用尽后重复最后一段
type ScriptedModel struct {
	mu     sync.Mutex
	script [][]*schema.Message
	errs   map[int]error
	Repeat bool

	calls  int
	inputs [][]*schema.Message
	bound  [][]*schema.ToolInfo
}

// NewScriptedModel 每个参数是一次调用返回的消息块序列
func NewScriptedModel(turns ...[]*schema.Message) *ScriptedModel {
	return &ScriptedModel{script: turns, errs: map[int]error{}}
}

// FailOn 第 call 次调用（从 0 计）返回 err
func (m *ScriptedModel) FailOn(call int, err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[call] = err
	return m
}

func (m *ScriptedModel) next(input []*schema.Message) ([]*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls
	m.calls++
	m.inputs = append(m.inputs, append([]*schema.Message(nil), input...))
	if err, ok := m.errs[n]; ok {
		return nil, err
	}
	switch {
	case n < len(m.script):
		return m.script[n], nil
	case m.Repeat && len(m.script) > 0:
		return m.script[len(m.script)-1], nil
	default:
		return nil, fmt.Errorf("agenttest: script exhausted at call %d", n)
	}
}

// Generate 返回合并后的整段消息
func (m *ScriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	chunks, err := m.next(input)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 1 {
		return chunks[0], nil
	}
	return schema.ConcatMessages(chunks)
}

// Stream 逐块返回
func (m *ScriptedModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	chunks, err := m.next(input)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray(chunks), nil
}

// WithTools 记录绑定的工具并返回自身
func (m *ScriptedModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = append(m.bound, infos)
	return m, nil
}

// Calls 已发生的调用次数
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Input 第 i 次调用的输入
func (m *ScriptedModel) Input(i int) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.inputs) {
		return nil
	}
	return m.inputs[i]
}

// BoundTools 最近一次绑定的工具名
func (m *ScriptedModel) BoundTools() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bound) == 0 {
		return nil
	}
	last := m.bound[len(m.bound)-1]
	out := make([]string, len(last))
	for i, t := range last {
		out[i] = t.Name
	}
	return out
}

var _ model.ToolCallingChatModel = (*ScriptedModel)(nil)

// Text 纯文本回答，按给定片段分块
func Text(fragments ...string) []*schema.Message {
	out := make([]*schema.Message, len(fragments))
	for i, f := range fragments {
		out[i] = &schema.Message{Role: schema.Assistant, Content: f}
	}
	return out
}

// Call 一次完整给出的工具调用（未带 Index）
func Call(name, args string) []*schema.Message {
	return []*schema.Message{{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "backend_" + name,
			Type:     "function",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}}
}

// StreamedCall 分片流式给出的工具调用：第一块带名字，其余块为参数片段
func StreamedCall(index int, name string, argFragments ...string) []*schema.Message {
	idx := index
	out := []*schema.Message{{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Index:    &idx,
			ID:       fmt.Sprintf("backend_%d", index),
			Type:     "function",
			Function: schema.FunctionCall{Name: name},
		}},
	}}
	for _, f := range argFragments {
		out = append(out, &schema.Message{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				Index:    &idx,
				Function: schema.FunctionCall{Arguments: f},
			}},
		})
	}
	return out
}
