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

// Package protocol 把独白循环的内部事件投影为对外的 SSE 协议：
// 逐事件透传的 plain 协议，与带框架事件的 AG-UI 协议。
package protocol

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hertz-contrib/sse"

	"deck-agent/internal/agent"
)

// 协议名，同时用作指标标签
const (
	NamePlain = "plain"
	NameAGUI  = "agui"
)

// Publisher SSE 写出方；*sse.Stream 满足该接口
type Publisher interface {
	Publish(e *sse.Event) error
}

// PublisherFunc 函数形式的 Publisher
type PublisherFunc func(e *sse.Event) error

// Publish 实现 Publisher
func (f PublisherFunc) Publish(e *sse.Event) error { return f(e) }

// writer 同步写出；首次写失败后（客户端断开）丢弃后续事件，回合本身继续执行
type writer struct {
	pub    Publisher
	logger *slog.Logger
	err    error
}

func (w *writer) publish(event string, payload any) {
	if w.err != nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("序列化 SSE 事件失败", "event", event, "error", err)
		return
	}
	if err := w.pub.Publish(&sse.Event{Event: event, Data: data}); err != nil {
		w.err = err
		w.logger.Warn("SSE 写出失败，后续事件丢弃", "event", event, "error", err)
	}
}

// Plain 内部事件一对一透传：事件名为事件类型，数据为事件 JSON
type Plain struct {
	w writer
}

// NewPlain 创建 plain 协议适配器
func NewPlain(pub Publisher, logger *slog.Logger) *Plain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plain{w: writer{pub: pub, logger: logger}}
}

// Emit 实现 agent.EventSink
func (p *Plain) Emit(e agent.Event) {
	p.w.publish(e.Type(), e)
}

// Err 首个写出错误
func (p *Plain) Err() error { return p.w.err }

// Run 执行回合；回合返回错误或 panic 时补发 error 事件
func (p *Plain) Run(turn func(sink agent.EventSink) error) {
	defer func() {
		if r := recover(); r != nil {
			p.w.logger.Error("回合 panic", "panic", r)
			p.Emit(agent.ErrorEvent{Detail: fmt.Sprintf("Agent error: %v", r)})
		}
	}()
	if err := turn(p); err != nil {
		p.w.logger.Error("回合失败", "error", err)
		p.Emit(agent.ErrorEvent{Detail: "Agent error: " + err.Error()})
	}
}
