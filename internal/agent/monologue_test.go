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
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck-agent/internal/agent/agenttest"
	"deck-agent/internal/agent/state"
	"deck-agent/internal/agent/tools"
	"deck-agent/internal/knowledge"
	"deck-agent/internal/storage/conversation"
	"deck-agent/pkg/log"
)

type fixture struct {
	store    conversation.Store
	convID   string
	registry *tools.Registry
}

func newFixture(t *testing.T, extra ...*tools.Capability) *fixture {
	t.Helper()
	store := conversation.NewMemoryStore()
	c := &conversation.Conversation{Title: "test"}
	require.NoError(t, store.Create(context.Background(), c))

	r := tools.NewRegistry()
	r.MustRegister(&tools.Capability{
		Name: "response", Description: "final answer", Kind: tools.KindFinalAnswer,
		Params: []tools.Param{{Name: "message", Type: schema.String, Required: true}},
		Execute: func(_ context.Context, _ *tools.Env, a tools.Args) (*tools.Result, error) {
			return &tools.Result{Message: a.String("message")}, nil
		},
	}, &tools.Capability{
		Name: "search_cards", Description: "search", Kind: tools.KindQuery,
		Annotate: func(a tools.Args) string { return "Searching cards: " + a.String("name") },
		Execute: func(_ context.Context, _ *tools.Env, a tools.Args) (*tools.Result, error) {
			return &tools.Result{Message: "Found 1 card(s): " + a.String("name")}, nil
		},
	})
	r.MustRegister(extra...)
	r.Seal()
	return &fixture{store: store, convID: c.ID, registry: r}
}

func (f *fixture) monologue(t *testing.T, names []string, opts ...MonologueOption) *Monologue {
	t.Helper()
	opts = append([]MonologueOption{WithLogger(log.Discard())}, opts...)
	m, err := NewMonologue(f.registry.Resolve(names...), f.store, opts...)
	require.NoError(t, err)
	return m
}

func (f *fixture) run(t *testing.T, m *Monologue, llm *agenttest.ScriptedModel, msg string) (*TurnResult, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	res, err := m.Run(context.Background(), Turn{ConversationID: f.convID, Message: msg, Model: llm}, rec)
	require.NoError(t, err)
	return res, rec
}

func (f *fixture) lastAssistant(t *testing.T) *conversation.Message {
	t.Helper()
	msgs, err := f.store.Messages(context.Background(), f.convID)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, conversation.RoleAssistant, last.Role)
	return last
}

func TestNewMonologue_RequiresExactlyOneFinalAnswer(t *testing.T) {
	f := newFixture(t)
	_, err := NewMonologue(f.registry.Resolve("search_cards"), f.store)
	assert.Error(t, err)
}

func TestMonologue_PlainText(t *testing.T) {
	f := newFixture(t)
	llm := agenttest.NewScriptedModel(agenttest.Text("Zoro is ", "a red leader."))
	res, rec := f.run(t, f.monologue(t, []string{"search_cards", "response"}), llm, "who is zoro?")

	assert.Equal(t, ReasonAnswer, res.Reason)
	assert.Empty(t, rec.OfType(EventToolUse))
	require.Len(t, rec.Events, 2)
	assert.Equal(t, TokenEvent{Text: "Zoro is a red leader."}, rec.Events[0])
	done := rec.Events[1].(DoneEvent)
	assert.Equal(t, "Zoro is a red leader.", done.FullText)
	assert.Equal(t, res.MessageID, done.MessageID)

	all, _ := f.store.Messages(context.Background(), f.convID)
	require.Len(t, all, 2)
	assert.Equal(t, conversation.RoleUser, all[0].Role)
	assert.Equal(t, "who is zoro?", all[0].Content)
	assert.Equal(t, []string{"search_cards", "response"}, llm.BoundTools())
}

func TestMonologue_NonTerminalToolIssuesOneMoreCall(t *testing.T) {
	f := newFixture(t)
	llm := agenttest.NewScriptedModel(
		agenttest.StreamedCall(0, "search_cards", `{"name":`, `"Nami"}`),
		agenttest.Text("Nami is blue."),
	)
	res, rec := f.run(t, f.monologue(t, []string{"search_cards", "response"}), llm, "find nami")

	assert.Equal(t, 2, llm.Calls())
	assert.Equal(t, 2, res.Iterations)
	types := make([]string, len(rec.Events))
	for i, e := range rec.Events {
		types[i] = e.Type()
	}
	assert.Equal(t, []string{EventThinking, EventToolUse, EventToolResult, EventToken, EventDone}, types)
	assert.Equal(t, ThinkingEvent{Thoughts: []string{"Searching cards: Nami"}}, rec.Events[0])

	second := llm.Input(1)
	require.GreaterOrEqual(t, len(second), 4)
	call, result := second[len(second)-2], second[len(second)-1]
	require.Len(t, call.ToolCalls, 1)
	assert.Equal(t, "call_0", call.ToolCalls[0].ID)
	assert.JSONEq(t, `{"name":"Nami"}`, call.ToolCalls[0].Function.Arguments)
	assert.Equal(t, schema.Tool, result.Role)
	assert.Equal(t, "call_0", result.ToolCallID)
	assert.Equal(t, "Found 1 card(s): Nami", result.Content)
}

func TestMonologue_TerminalToolStopsImmediately(t *testing.T) {
	f := newFixture(t)
	llm := agenttest.NewScriptedModel(agenttest.Call("response", `{"message":"All done."}`))
	res, rec := f.run(t, f.monologue(t, []string{"search_cards", "response"}), llm, "hi")

	assert.Equal(t, 1, llm.Calls())
	assert.Equal(t, ReasonTerminal, res.Reason)
	assert.Equal(t, "All done.", res.FinalText)
	assert.Len(t, rec.OfType(EventToken), 1)
	assert.Equal(t, "All done.", f.lastAssistant(t).Content)
}

func TestMonologue_BudgetExhausted(t *testing.T) {
	f := newFixture(t)
	llm := agenttest.NewScriptedModel(agenttest.Call("search_cards", `{"name":"x"}`))
	llm.Repeat = true
	res, rec := f.run(t, f.monologue(t, []string{"search_cards", "response"}), llm, "loop forever")

	assert.Equal(t, DefaultMaxIterations, llm.Calls())
	assert.Equal(t, DefaultMaxIterations, res.Iterations)
	assert.Equal(t, ReasonBudget, res.Reason)
	assert.Equal(t, BudgetExhaustedText, res.FinalText)
	assert.Len(t, rec.OfType(EventToolUse), DefaultMaxIterations)
	assert.Equal(t, BudgetExhaustedText, f.lastAssistant(t).Content)
	done := rec.Events[len(rec.Events)-1].(DoneEvent)
	assert.Equal(t, BudgetExhaustedText, done.FullText)
}

func TestMonologue_CustomBudget(t *testing.T) {
	f := newFixture(t)
	llm := agenttest.NewScriptedModel(agenttest.Call("search_cards", `{}`))
	llm.Repeat = true
	res, _ := f.run(t, f.monologue(t, []string{"search_cards", "response"}, WithMaxIterations(3)), llm, "x")
	assert.Equal(t, 3, llm.Calls())
	assert.Equal(t, ReasonBudget, res.Reason)
}

func TestMonologue_BackendErrorEndsTurn(t *testing.T) {
	f := newFixture(t)
	llm := agenttest.NewScriptedModel(agenttest.Call("search_cards", `{}`)).FailOn(1, errors.New("rate limited"))
	res, rec := f.run(t, f.monologue(t, []string{"search_cards", "response"}), llm, "x")

	assert.Equal(t, ReasonError, res.Reason)
	assert.Equal(t, "I encountered an error: rate limited", res.FinalText)
	errs := rec.OfType(EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrorEvent{Detail: "rate limited"}, errs[0])
	assert.Equal(t, EventDone, rec.Events[len(rec.Events)-1].Type())
	assert.Equal(t, "I encountered an error: rate limited", f.lastAssistant(t).Content)
	assert.Equal(t, 2, llm.Calls(), "failing iteration is not retried")
}

func TestMonologue_ToolErrorContinues(t *testing.T) {
	f := newFixture(t, &tools.Capability{
		Name: "manage_deck", Kind: tools.KindMutation,
		Execute: func(context.Context, *tools.Env, tools.Args) (*tools.Result, error) {
			return nil, errors.New("constraint violated")
		},
	})
	llm := agenttest.NewScriptedModel(agenttest.Call("manage_deck", `{}`), agenttest.Text("Sorry, that failed."))
	res, rec := f.run(t, f.monologue(t, []string{"manage_deck", "response"}), llm, "x")

	assert.Equal(t, ReasonAnswer, res.Reason)
	tr := rec.OfType(EventToolResult)[0].(ToolResultEvent)
	assert.Equal(t, "Tool error: constraint violated", tr.Result)
	assert.Equal(t, "Tool error: constraint violated", llm.Input(1)[len(llm.Input(1))-1].Content)
}

func TestMonologue_UnknownTool(t *testing.T) {
	f := newFixture(t)
	llm := agenttest.NewScriptedModel(agenttest.Call("drop_table", `{}`), agenttest.Text("ok"))
	_, rec := f.run(t, f.monologue(t, []string{"search_cards", "response"}), llm, "x")

	assert.Equal(t, ThinkingEvent{Thoughts: []string{"Using drop_table tool..."}}, rec.Events[0])
	tr := rec.OfType(EventToolResult)[0].(ToolResultEvent)
	assert.Equal(t, "Unknown tool: drop_table. Available tools: search_cards, response", tr.Result)
}

func TestMonologue_ResultPreviewTruncatedButFullResultFedBack(t *testing.T) {
	long := strings.Repeat("é", 800)
	f := newFixture(t, &tools.Capability{
		Name: "get_deck_info", Kind: tools.KindQuery,
		Execute: func(context.Context, *tools.Env, tools.Args) (*tools.Result, error) {
			return &tools.Result{Message: long, Data: map[string]any{"action": "noop"}}, nil
		},
	})
	llm := agenttest.NewScriptedModel(agenttest.Call("get_deck_info", `{}`), agenttest.Text("done"))
	_, rec := f.run(t, f.monologue(t, []string{"get_deck_info", "response"}), llm, "x")

	tr := rec.OfType(EventToolResult)[0].(ToolResultEvent)
	assert.Equal(t, DefaultResultPreview, len([]rune(tr.Result)))
	assert.Equal(t, map[string]any{"action": "noop"}, tr.ActionData)
	assert.Equal(t, long, llm.Input(1)[len(llm.Input(1))-1].Content)
}

func TestMonologue_HistoryWindowAndPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		role := conversation.RoleUser
		if i%2 == 1 {
			role = conversation.RoleAssistant
		}
		_, err := f.store.AppendMessage(ctx, &conversation.Message{ConversationID: f.convID, Role: role, Content: fmt.Sprintf("h%d", i)})
		require.NoError(t, err)
	}
	llm := agenttest.NewScriptedModel(agenttest.Text("ok"))
	m := f.monologue(t, []string{"search_cards", "response"}, WithRecall(recallFunc(func(string, int) ([]knowledge.Entry, error) {
		return []knowledge.Entry{{Source: "rules.md", Text: "Blocker lets a character redirect an attack."}}, nil
	}), 3))
	rec := &Recorder{}
	_, err := m.Run(ctx, Turn{
		ConversationID: f.convID,
		Message:        "new",
		Model:          llm,
		Context:        state.AgentContext{state.KeyDeckID: "deck-1", state.KeyPage: "deck-builder"},
	}, rec)
	require.NoError(t, err)

	in := llm.Input(0)
	require.Len(t, in, 1+DefaultHistoryWindow+1)
	assert.Equal(t, "h10", in[1].Content, "oldest messages discarded")
	assert.Equal(t, "new", in[len(in)-1].Content)
	sys := in[0].Content
	assert.Contains(t, sys, "## Available Tools")
	assert.Contains(t, sys, "**search_cards** — search")
	assert.Contains(t, sys, "- Active deck ID: deck-1")
	assert.Contains(t, sys, "- User is on page: deck-builder")
	assert.Contains(t, sys, "- [rules.md] Blocker lets")
}

func TestMonologue_RecallFailureIgnored(t *testing.T) {
	f := newFixture(t)
	llm := agenttest.NewScriptedModel(agenttest.Text("ok"))
	m := f.monologue(t, []string{"search_cards", "response"}, WithRecall(recallFunc(func(string, int) ([]knowledge.Entry, error) {
		return nil, errors.New("vector store down")
	}), 0))
	res, _ := f.run(t, m, llm, "x")
	assert.Equal(t, "ok", res.FinalText)
}

func TestMonologue_PanicInToolIsReportedAsToolError(t *testing.T) {
	f := newFixture(t, &tools.Capability{
		Name: "validate_deck", Kind: tools.KindQuery,
		Execute: func(context.Context, *tools.Env, tools.Args) (*tools.Result, error) { panic("nil deck") },
	})
	llm := agenttest.NewScriptedModel(agenttest.Call("validate_deck", `{}`), agenttest.Text("recovered"))
	res, _ := f.run(t, f.monologue(t, []string{"validate_deck", "response"}), llm, "x")
	assert.Equal(t, "recovered", res.FinalText)
}

func TestMonologue_AssistantMessageRecordsToolCalls(t *testing.T) {
	f := newFixture(t)
	llm := agenttest.NewScriptedModel(agenttest.Call("search_cards", `{"name":"Luffy"}`), agenttest.Call("response", `{"message":"bye"}`))
	f.run(t, f.monologue(t, []string{"search_cards", "response"}), llm, "x")
	last := f.lastAssistant(t)
	require.Len(t, last.ToolCalls, 2)
	assert.Equal(t, "search_cards", last.ToolCalls[0].Name)
	assert.Equal(t, "call_1", last.ToolCalls[1].ID)
}

type recallFunc func(text string, limit int) ([]knowledge.Entry, error)

func (f recallFunc) Query(_ context.Context, text string, limit int) ([]knowledge.Entry, error) {
	return f(text, limit)
}
