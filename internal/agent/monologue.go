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
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"deck-agent/internal/agent/state"
	"deck-agent/internal/agent/tools"
	"deck-agent/internal/knowledge"
	"deck-agent/internal/storage/catalog"
	"deck-agent/internal/storage/conversation"
	"deck-agent/pkg/metrics"
)

// MainTools 主循环可用的能力
var MainTools = []string{"search_cards", "manage_deck", "analyze_strategy", "search_knowledge", "response"}

// 固定文案
const (
	BudgetExhaustedText = "I've reached the maximum number of reasoning steps. Here's what I found so far — please try a more specific question."
	errorTextPrefix     = "I encountered an error: "
)

// 默认配置
const (
	DefaultMaxIterations = 15
	DefaultHistoryWindow = 20
	DefaultResultPreview = 500
	DefaultRecallLimit   = 3
)

// 回合结束原因
const (
	ReasonAnswer   = "answer"
	ReasonTerminal = "terminal"
	ReasonBudget   = "budget"
	ReasonError    = "error"
)

// Recaller 知识召回
type Recaller interface {
	Query(ctx context.Context, text string, limit int) ([]knowledge.Entry, error)
}

// Turn 一个回合的输入。Context 为本回合私有拷贝，Catalog 为本回合独占的会话
type Turn struct {
	ConversationID string
	Message        string
	Context        state.AgentContext
	Model          model.ToolCallingChatModel
	Catalog        catalog.Session
}

// TurnResult 回合结果
type TurnResult struct {
	MessageID  string
	FinalText  string
	Iterations int
	Reason     string
	Duration   time.Duration
}

// Monologue 主独白循环：每轮要么得到回答，要么执行一个工具并把结果回填
type Monologue struct {
	tools         *tools.Set
	store         conversation.Store
	recall        Recaller
	maxIterations int
	historyWindow int
	resultPreview int
	recallLimit   int
	logger        *slog.Logger
}

// MonologueOption 可选配置
type MonologueOption func(*Monologue)

// WithMaxIterations 最大迭代数
func WithMaxIterations(n int) MonologueOption {
	return func(m *Monologue) {
		if n > 0 {
			m.maxIterations = n
		}
	}
}

// WithHistoryWindow 历史窗口
func WithHistoryWindow(n int) MonologueOption {
	return func(m *Monologue) {
		if n > 0 {
			m.historyWindow = n
		}
	}
}

// WithResultPreview tool_result 事件中结果的截断长度
func WithResultPreview(n int) MonologueOption {
	return func(m *Monologue) {
		if n > 0 {
			m.resultPreview = n
		}
	}
}

// WithRecall 注入知识召回，limit<=0 使用默认值
func WithRecall(r Recaller, limit int) MonologueOption {
	return func(m *Monologue) {
		m.recall = r
		if limit > 0 {
			m.recallLimit = limit
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) MonologueOption {
	return func(m *Monologue) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMonologue 创建主循环；set 中必须恰好有一个最终回答能力
func NewMonologue(set *tools.Set, store conversation.Store, opts ...MonologueOption) (*Monologue, error) {
	if err := set.Validate(1, 1); err != nil {
		return nil, err
	}
	m := &Monologue{
		tools:         set,
		store:         store,
		maxIterations: DefaultMaxIterations,
		historyWindow: DefaultHistoryWindow,
		resultPreview: DefaultResultPreview,
		recallLimit:   DefaultRecallLimit,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Run 执行一个回合。事件按产生顺序同步写入 sink；
// 返回 error 仅表示消息持久化失败。
func (m *Monologue) Run(ctx context.Context, turn Turn, sink EventSink) (*TurnResult, error) {
	start := time.Now()
	logger := m.logger.With("conversation_id", turn.ConversationID)
	if turn.Context == nil {
		turn.Context = state.AgentContext{}
	}

	var memories []knowledge.Entry
	if m.recall != nil {
		mem, err := m.recall.Query(ctx, turn.Message, m.recallLimit)
		if err != nil {
			logger.Warn("知识召回失败，继续执行", "error", err)
		} else {
			memories = mem
		}
	}

	msgs := []*schema.Message{schema.SystemMessage(BuildSystemPrompt(m.tools, turn.Context, memories))}
	history, err := m.store.History(ctx, turn.ConversationID, m.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("加载对话历史失败: %w", err)
	}
	msgs = append(msgs, historyMessages(history)...)
	msgs = append(msgs, schema.UserMessage(turn.Message))

	if _, err := m.store.AppendMessage(ctx, &conversation.Message{
		ConversationID: turn.ConversationID,
		Role:           conversation.RoleUser,
		Content:        turn.Message,
	}); err != nil {
		return nil, fmt.Errorf("保存用户消息失败: %w", err)
	}

	env := &tools.Env{
		ConversationID: turn.ConversationID,
		Context:        turn.Context,
		Catalog:        turn.Catalog,
		Model:          turn.Model,
		Logger:         logger,
	}

	res := &TurnResult{Reason: ReasonBudget}
	var calls []conversation.ToolCall
	var chat model.ToolCallingChatModel
	finished := false
	for i := 0; i < m.maxIterations && !finished; i++ {
		res.Iterations = i + 1
		logger.Info("agent iteration", "iteration", i+1, "max", m.maxIterations)

		step, err := m.iterate(ctx, turn, &chat, env, msgs, i, sink, logger)
		if err != nil {
			logger.Error("agent iteration failed", "iteration", i+1, "error", err)
			sink.Emit(ErrorEvent{Detail: err.Error()})
			res.FinalText = errorTextPrefix + err.Error()
			res.Reason = ReasonError
			finished = true
			break
		}
		if step.invoked != nil {
			calls = append(calls, conversation.ToolCall{ID: step.invoked.ID, Name: step.invoked.Name, Args: step.invoked.Args})
		}
		switch {
		case step.final != nil:
			res.FinalText = *step.final
			res.Reason = step.reason
			if res.FinalText != "" {
				sink.Emit(TokenEvent{Text: res.FinalText})
			}
			finished = true
		default:
			msgs = append(msgs, step.followUp...)
		}
	}
	if !finished {
		res.FinalText = BudgetExhaustedText
		sink.Emit(TokenEvent{Text: res.FinalText})
	}
	metrics.LoopIterations.WithLabelValues("main").Observe(float64(res.Iterations))

	saved, err := m.store.AppendMessage(ctx, &conversation.Message{
		ConversationID: turn.ConversationID,
		Role:           conversation.RoleAssistant,
		Content:        res.FinalText,
		ToolCalls:      calls,
		Metadata:       map[string]any{"reason": res.Reason, "iterations": res.Iterations},
	})
	if err != nil {
		return res, fmt.Errorf("保存助手消息失败: %w", err)
	}
	res.MessageID = saved.ID
	res.Duration = time.Since(start)
	sink.Emit(DoneEvent{MessageID: saved.ID, FullText: res.FinalText})
	logger.Info("agent turn finished", "reason", res.Reason, "iterations", res.Iterations, "duration", res.Duration)
	return res, nil
}

type iteration struct {
	invoked  *tools.Invocation
	final    *string
	reason   string
	followUp []*schema.Message
}

// iterate 一轮：求决策，必要时执行工具。panic 视为本轮失败
func (m *Monologue) iterate(ctx context.Context, turn Turn, chat *model.ToolCallingChatModel, env *tools.Env,
	msgs []*schema.Message, i int, sink EventSink, logger *slog.Logger) (step iteration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if *chat == nil {
		if turn.Model == nil {
			return step, fmt.Errorf("no chat model configured")
		}
		bound, err := turn.Model.WithTools(m.tools.Infos())
		if err != nil {
			return step, fmt.Errorf("bind tools: %w", err)
		}
		*chat = bound
	}

	stream, err := (*chat).Stream(ctx, msgs)
	if err != nil {
		return step, err
	}
	dec, err := Drain(ctx, stream, logger)
	if err != nil {
		return step, err
	}

	if !dec.IsToolCall() {
		text := dec.Text
		return iteration{final: &text, reason: ReasonAnswer}, nil
	}

	inv := *dec.Call
	inv.ID = fmt.Sprintf("call_%d", i)
	c, known := m.tools.Get(inv.Name)

	label := fmt.Sprintf("Using %s tool...", inv.Name)
	if known {
		label = c.Label(inv.Args)
	}
	sink.Emit(ThinkingEvent{Thoughts: []string{label}})
	sink.Emit(ToolUseEvent{CallID: inv.ID, Tool: inv.Name, Args: inv.Args})

	var out tools.Outcome
	if known {
		out = tools.Dispatch(ctx, c, env, inv)
	} else {
		logger.Warn("unknown tool", "tool", inv.Name)
		out = tools.Outcome{Kind: tools.Continue, Result: &tools.Result{Message: m.tools.UnknownMessage(inv.Name)}}
	}
	if out.Kind == tools.Failed {
		logger.Error("tool failed", "tool", inv.Name, "error", out.Err)
	}

	sink.Emit(ToolResultEvent{
		CallID:     inv.ID,
		Tool:       inv.Name,
		Result:     truncateRunes(out.Result.Message, m.resultPreview),
		ActionData: out.Result.Data,
	})

	switch out.Kind {
	case tools.Terminate:
		text := out.Result.Message
		return iteration{invoked: &inv, final: &text, reason: ReasonTerminal}, nil
	case tools.Continue, tools.Failed:
		return iteration{invoked: &inv, followUp: toolExchange(inv, out.Result.Message)}, nil
	default:
		return step, fmt.Errorf("unexpected outcome %s", out.Kind)
	}
}

// toolExchange 合成的 assistant 工具调用 + tool 结果消息对
func toolExchange(inv tools.Invocation, result string) []*schema.Message {
	call := schema.ToolCall{
		ID:   inv.ID,
		Type: "function",
		Function: schema.FunctionCall{
			Name:      inv.Name,
			Arguments: inv.Args.JSON(),
		},
	}
	return []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{call}),
		schema.ToolMessage(result, inv.ID),
	}
}

func historyMessages(history []*conversation.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, h := range history {
		switch h.Role {
		case conversation.RoleUser:
			out = append(out, schema.UserMessage(h.Content))
		case conversation.RoleAssistant:
			out = append(out, schema.AssistantMessage(h.Content, nil))
		case conversation.RoleSystem:
			out = append(out, schema.SystemMessage(h.Content))
		}
	}
	return out
}
