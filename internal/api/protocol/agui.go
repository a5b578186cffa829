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

package protocol

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"deck-agent/internal/agent"
)

// AG-UI 事件类型
const (
	AGUIRunStarted         = "RUN_STARTED"
	AGUIRunFinished        = "RUN_FINISHED"
	AGUIRunError           = "RUN_ERROR"
	AGUIStateSnapshot      = "STATE_SNAPSHOT"
	AGUITextMessageStart   = "TEXT_MESSAGE_START"
	AGUITextMessageContent = "TEXT_MESSAGE_CONTENT"
	AGUITextMessageEnd     = "TEXT_MESSAGE_END"
	AGUIToolCallStart      = "TOOL_CALL_START"
	AGUIToolCallArgs       = "TOOL_CALL_ARGS"
	AGUIToolCallEnd        = "TOOL_CALL_END"
	AGUIToolCallResult     = "TOOL_CALL_RESULT"
	AGUICustom             = "CUSTOM"
)

// CUSTOM 事件名
const (
	CustomThinking   = "thinking"
	CustomDeckAction = "deck_action"
)

// State 适配器状态
type State int

const (
	StateIdle State = iota
	StateStarted
	StateStreaming
	StateEnded
)

// AGUIEvent AG-UI 事件；字段按类型选填
type AGUIEvent struct {
	Type            string `json:"type"`
	ThreadID        string `json:"threadId,omitempty"`
	RunID           string `json:"runId,omitempty"`
	MessageID       string `json:"messageId,omitempty"`
	ParentMessageID string `json:"parentMessageId,omitempty"`
	Role            string `json:"role,omitempty"`
	Delta           string `json:"delta,omitempty"`
	ToolCallID      string `json:"toolCallId,omitempty"`
	ToolCallName    string `json:"toolCallName,omitempty"`
	Content         string `json:"content,omitempty"`
	Message         string `json:"message,omitempty"`
	Name            string `json:"name,omitempty"`
	Value           any    `json:"value,omitempty"`
	Snapshot        any    `json:"snapshot,omitempty"`
}

// AGUI 单回合的 AG-UI 投影状态机：Started → Streaming → Ended。
// 事件只写 data 行，不带 SSE 事件名。
type AGUI struct {
	w         writer
	threadID  string
	runID     string
	messageID string
	toolIndex int
	state     State
}

// NewAGUI 创建适配器；threadID 为对话 ID
func NewAGUI(pub Publisher, threadID string, logger *slog.Logger) *AGUI {
	if logger == nil {
		logger = slog.Default()
	}
	return &AGUI{
		w:         writer{pub: pub, logger: logger},
		threadID:  threadID,
		runID:     uuid.New().String(),
		messageID: uuid.New().String(),
	}
}

// RunID 本次运行 ID
func (a *AGUI) RunID() string { return a.runID }

// State 当前状态
func (a *AGUI) State() State { return a.state }

// Err 首个写出错误
func (a *AGUI) Err() error { return a.w.err }

func (a *AGUI) send(e AGUIEvent) {
	a.w.publish("", e)
}

// Start 发出 RUN_STARTED、STATE_SNAPSHOT 与 TEXT_MESSAGE_START
func (a *AGUI) Start(snapshot map[string]any) {
	if a.state != StateIdle {
		return
	}
	if snapshot == nil {
		snapshot = map[string]any{}
	}
	a.send(AGUIEvent{Type: AGUIRunStarted, ThreadID: a.threadID, RunID: a.runID})
	a.send(AGUIEvent{Type: AGUIStateSnapshot, Snapshot: snapshot})
	a.state = StateStarted
	a.send(AGUIEvent{Type: AGUITextMessageStart, MessageID: a.messageID, Role: "assistant"})
	a.state = StateStreaming
}

// Emit 实现 agent.EventSink；Streaming 之外的事件丢弃
func (a *AGUI) Emit(e agent.Event) {
	if a.state != StateStreaming {
		return
	}
	switch ev := e.(type) {
	case agent.TokenEvent:
		if ev.Text != "" {
			a.send(AGUIEvent{Type: AGUITextMessageContent, MessageID: a.messageID, Delta: ev.Text})
		}
	case agent.ThinkingEvent:
		a.send(AGUIEvent{Type: AGUICustom, Name: CustomThinking, Value: map[string]any{"thoughts": ev.Thoughts}})
	case agent.ToolUseEvent:
		id := a.toolCallID()
		args, err := json.Marshal(ev.Args)
		if err != nil {
			args = []byte("{}")
		}
		a.send(AGUIEvent{Type: AGUIToolCallStart, ToolCallID: id, ToolCallName: ev.Tool, ParentMessageID: a.messageID})
		a.send(AGUIEvent{Type: AGUIToolCallArgs, ToolCallID: id, Delta: string(args)})
		a.send(AGUIEvent{Type: AGUIToolCallEnd, ToolCallID: id})
	case agent.ToolResultEvent:
		a.send(AGUIEvent{
			Type:       AGUIToolCallResult,
			MessageID:  uuid.New().String(),
			ToolCallID: a.toolCallID(),
			Content:    ev.Result,
			Role:       "tool",
		})
		if len(ev.ActionData) > 0 {
			a.send(AGUIEvent{Type: AGUICustom, Name: CustomDeckAction, Value: ev.ActionData})
		}
		a.toolIndex++
	case agent.ErrorEvent:
		a.send(AGUIEvent{Type: AGUIRunError, Message: ev.Detail})
	case agent.DoneEvent:
		// 文本已经通过 TEXT_MESSAGE_CONTENT 发出
	}
}

// tool_use 与随后的 tool_result 共用同一个 ID，结果发出后序号递增
func (a *AGUI) toolCallID() string {
	return fmt.Sprintf("tc_%d", a.toolIndex)
}

// Fail 发出 RUN_ERROR
func (a *AGUI) Fail(message string) {
	if a.state == StateEnded {
		return
	}
	a.send(AGUIEvent{Type: AGUIRunError, Message: message})
}

// Finish 关闭消息并发出 RUN_FINISHED，可重复调用
func (a *AGUI) Finish() {
	if a.state == StateEnded {
		return
	}
	if a.state == StateIdle {
		a.Start(nil)
	}
	a.send(AGUIEvent{Type: AGUITextMessageEnd, MessageID: a.messageID})
	a.send(AGUIEvent{Type: AGUIRunFinished, ThreadID: a.threadID, RunID: a.runID})
	a.state = StateEnded
}

// Run 完整的一次运行：Start、执行回合、Finish。
// 回合返回错误或 panic 时先发 RUN_ERROR，收尾事件总会发出。
func (a *AGUI) Run(snapshot map[string]any, turn func(sink agent.EventSink) error) {
	a.Start(snapshot)
	defer a.Finish()
	defer func() {
		if r := recover(); r != nil {
			a.w.logger.Error("回合 panic", "panic", r)
			a.Fail(fmt.Sprintf("Agent error: %v", r))
		}
	}()
	if err := turn(a); err != nil {
		a.w.logger.Error("回合失败", "error", err)
		a.Fail("Agent error: " + err.Error())
	}
}
