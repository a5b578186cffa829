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

// Package agent 对话回合的编排核心：流式累加、独白循环与子代理运行器。
package agent

// 内部事件类型
const (
	EventThinking   = "thinking"
	EventToolUse    = "tool_use"
	EventToolResult = "tool_result"
	EventToken      = "token"
	EventDone       = "done"
	EventError      = "error"
)

// Event 独白循环产出的内部事件，封闭集合
type Event interface {
	Type() string
	isEvent()
}

// ThinkingEvent 工具调用前的推理标签，仅用于界面展示
type ThinkingEvent struct {
	Thoughts []string `json:"thoughts"`
}

// ToolUseEvent 即将执行的工具调用
type ToolUseEvent struct {
	CallID string         `json:"-"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
}

// ToolResultEvent 工具结果；Result 为截断后的预览
type ToolResultEvent struct {
	CallID     string         `json:"-"`
	Tool       string         `json:"tool"`
	Result     string         `json:"result"`
	ActionData map[string]any `json:"action_data,omitempty"`
}

// TokenEvent 回答文本
type TokenEvent struct {
	Text string `json:"text"`
}

// DoneEvent 回合结束，携带已持久化的助手消息
type DoneEvent struct {
	MessageID string `json:"message_id"`
	FullText  string `json:"full_text"`
}

// ErrorEvent 迭代失败
type ErrorEvent struct {
	Detail string `json:"detail"`
}

func (ThinkingEvent) Type() string   { return EventThinking }
func (ToolUseEvent) Type() string    { return EventToolUse }
func (ToolResultEvent) Type() string { return EventToolResult }
func (TokenEvent) Type() string      { return EventToken }
func (DoneEvent) Type() string       { return EventDone }
func (ErrorEvent) Type() string      { return EventError }

func (ThinkingEvent) isEvent()   {}
func (ToolUseEvent) isEvent()    {}
func (ToolResultEvent) isEvent() {}
func (TokenEvent) isEvent()      {}
func (DoneEvent) isEvent()       {}
func (ErrorEvent) isEvent()      {}

// EventSink 事件接收方，按产生顺序同步调用
type EventSink interface {
	Emit(e Event)
}

// SinkFunc 函数形式的 EventSink
type SinkFunc func(e Event)

// Emit 实现 EventSink
func (f SinkFunc) Emit(e Event) { f(e) }

// Recorder 记录全部事件，测试与非流式接口使用
type Recorder struct {
	Events []Event
}

// Emit 实现 EventSink
func (r *Recorder) Emit(e Event) { r.Events = append(r.Events, e) }

// OfType 按类型过滤
func (r *Recorder) OfType(t string) []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

// Tee 把事件依次写给多个接收方
func Tee(sinks ...EventSink) EventSink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}
