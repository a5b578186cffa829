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

package builtin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck-agent/internal/agent"
	"deck-agent/internal/agent/agenttest"
	"deck-agent/internal/agent/state"
	"deck-agent/internal/agent/tools"
	"deck-agent/internal/deck"
	"deck-agent/internal/knowledge"
	"deck-agent/internal/storage/catalog"
	"deck-agent/internal/storage/conversation"
	"deck-agent/pkg/log"
)

const testDeckID = "7b0f7a4e-3c55-4a55-9d3c-0d6a9b0c1e11"

func seedCatalog(t *testing.T) catalog.Store {
	t.Helper()
	ctx := context.Background()
	s := catalog.NewMemoryStore()
	require.NoError(t, s.UpsertLeaders(ctx, []*deck.Leader{
		{ID: "OP01-001", Name: "Roronoa Zoro", Life: 5, Power: deck.IntPtr(5000), Colors: []string{"Red"}},
		{ID: "OP01-060", Name: "Donquixote Doflamingo", Life: 5, Power: deck.IntPtr(5000), Colors: []string{"Blue"}},
	}))
	law := &deck.Card{ID: "OP01-002", Name: "Trafalgar Law", Type: "Character", Color: "Red", Cost: deck.IntPtr(2), Power: deck.IntPtr(3000), Counter: deck.IntPtr(1000), Text: "[Blocker]"}
	usopp := &deck.Card{ID: "OP01-040", Name: "Usopp", Type: "Character", Color: "Green Red", Cost: deck.IntPtr(5), Power: deck.IntPtr(6000)}
	require.NoError(t, s.UpsertCards(ctx, []*deck.Card{law, usopp}))
	require.NoError(t, s.SaveDeck(ctx, &deck.Deck{
		ID: testDeckID, Name: "Zoro Rush", LeaderID: "OP01-001",
		Cards: []deck.DeckCard{{Card: law, Quantity: 4}, {Card: usopp, Quantity: 2}},
	}))
	return s
}

func newEnv(t *testing.T, s catalog.Store, llm *agenttest.ScriptedModel) *tools.Env {
	t.Helper()
	sess, err := s.Begin(context.Background())
	require.NoError(t, err)
	env := &tools.Env{Context: state.AgentContext{}, Catalog: sess, Logger: log.Discard()}
	if llm != nil {
		env.Model = llm
	}
	return env
}

func newRegistry(t *testing.T, kb agent.Recaller) *tools.Registry {
	t.Helper()
	reg, err := NewRegistry(Deps{Knowledge: kb, Logger: log.Discard()})
	require.NoError(t, err)
	return reg
}

func call(t *testing.T, reg *tools.Registry, env *tools.Env, name string, args tools.Args) tools.Outcome {
	t.Helper()
	c, ok := reg.Resolve(name).Get(name)
	require.True(t, ok, "capability %s not registered", name)
	return tools.Dispatch(context.Background(), c, env, tools.Invocation{ID: "t", Name: name, Args: args})
}

func TestRegister(t *testing.T) {
	reg := newRegistry(t, nil)
	assert.Len(t, reg.Names(), 13)
	assert.NotContains(t, reg.Names(), ToolSearchLeaders)

	main := reg.Resolve(agent.MainTools...)
	assert.Equal(t, agent.MainTools, main.Names())
	assert.Equal(t, 1, main.FinalAnswers())

	assert.Error(t, Register(reg, Deps{}), "sealed registry rejects a second registration")
}

func TestAnnotations(t *testing.T) {
	reg := newRegistry(t, nil)
	label := func(name string, args tools.Args) string {
		c, _ := reg.Resolve(name).Get(name)
		return c.Label(args)
	}
	assert.Equal(t, "Searching cards: Law", label(ToolSearchCards, tools.Args{"name": "Law", "type": "Character"}))
	assert.Equal(t, "Searching cards: Leader", label(ToolSearchCards, tools.Args{"type": "Leader"}))
	assert.Equal(t, "Modifying deck: add_cards", label(ToolManageDeck, tools.Args{"action": "add_cards"}))
	assert.Equal(t, "Using get_deck_info tool...", label(ToolGetDeckInfo, tools.Args{}))

	long := strings.Repeat("x", 100)
	assert.Len(t, []rune(label(ToolAnalyzeStrategy, tools.Args{"task": long})), len("Analyzing strategy: ")+80)
}

func TestResponse_IsTerminal(t *testing.T) {
	out := call(t, newRegistry(t, nil), &tools.Env{}, ToolResponse, tools.Args{"text": "**done**"})
	assert.Equal(t, tools.Terminate, out.Kind)
	assert.Equal(t, "**done**", out.Result.Message)
}

func TestSearchCards(t *testing.T) {
	reg := newRegistry(t, nil)
	env := newEnv(t, seedCatalog(t), nil)

	out := call(t, reg, env, ToolSearchCards, tools.Args{"name": "law", "limit": float64(100)})
	require.Equal(t, tools.Continue, out.Kind)
	assert.Contains(t, out.Result.Message, "Found 1 card(s)")
	assert.Equal(t, "card_results", out.Result.Data["type"])
	cards, ok := out.Result.Data["cards"].([]*deck.Card)
	require.True(t, ok)
	assert.Equal(t, "OP01-002", cards[0].ID)

	out = call(t, reg, env, ToolSearchCards, tools.Args{"type": "leader", "color": "Blue"})
	require.Equal(t, tools.Continue, out.Kind)
	leaders, ok := out.Result.Data["cards"].([]*deck.Leader)
	require.True(t, ok)
	require.Len(t, leaders, 1)
	assert.Equal(t, "OP01-060", leaders[0].ID)

	out = call(t, reg, env, ToolSearchCards, tools.Args{"name": "nobody"})
	assert.Equal(t, "No cards found matching your criteria.", out.Result.Message)
}

func TestSearchCards_NoSession(t *testing.T) {
	out := call(t, newRegistry(t, nil), &tools.Env{}, ToolSearchCards, tools.Args{})
	assert.Equal(t, tools.Failed, out.Kind)
	assert.Contains(t, out.Result.Message, "Tool error: ")
}

type recallStub struct {
	entries []knowledge.Entry
	err     error
	limit   int
}

func (r *recallStub) Query(_ context.Context, _ string, limit int) ([]knowledge.Entry, error) {
	r.limit = limit
	return r.entries, r.err
}

func TestSearchKnowledge(t *testing.T) {
	kb := &recallStub{entries: []knowledge.Entry{
		{Source: "rules.md", Text: "Blocker lets this card block.", Score: 0.8123},
		{Text: "Rush lets it attack.", Score: 0.5},
	}}
	reg := newRegistry(t, kb)

	out := call(t, reg, &tools.Env{}, ToolSearchKnowledge, tools.Args{"query": "what is blocker"})
	assert.Equal(t, 5, kb.limit)
	assert.Contains(t, out.Result.Message, "Relevant knowledge from the rules database:")
	assert.Contains(t, out.Result.Message, "**[1] rules.md** (relevance: 0.81)")
	assert.Contains(t, out.Result.Message, "**[2] unknown** (relevance: 0.50)")

	out = call(t, reg, &tools.Env{}, ToolSearchKnowledge, tools.Args{})
	assert.Equal(t, "Please provide a search query.", out.Result.Message)

	kb.entries = nil
	out = call(t, reg, &tools.Env{}, ToolSearchKnowledge, tools.Args{"query": "x"})
	assert.Contains(t, out.Result.Message, "No relevant knowledge found.")

	kb.err = errors.New("redis down")
	out = call(t, reg, &tools.Env{}, ToolSearchKnowledge, tools.Args{"query": "x"})
	assert.Equal(t, tools.Continue, out.Kind)
	assert.Contains(t, out.Result.Message, "Knowledge base search failed: redis down.")
}

func TestDeckQueries(t *testing.T) {
	reg := newRegistry(t, nil)
	env := newEnv(t, seedCatalog(t), nil)

	out := call(t, reg, env, ToolGetDeckInfo, tools.Args{})
	assert.Equal(t, "No deck_id provided. Please specify a deck or open one first.", out.Result.Message)

	out = call(t, reg, env, ToolValidateDeck, tools.Args{"deck_id": "not-a-uuid"})
	assert.Equal(t, "Invalid deck_id format: not-a-uuid", out.Result.Message)

	out = call(t, reg, env, ToolCalculateStats, tools.Args{"deck_id": "00000000-0000-0000-0000-000000000000"})
	assert.Equal(t, "Deck not found: 00000000-0000-0000-0000-000000000000", out.Result.Message)

	env.Context = state.AgentContext{state.KeyDeckID: testDeckID}
	out = call(t, reg, env, ToolGetDeckInfo, tools.Args{})
	assert.Contains(t, out.Result.Message, "# Zoro Rush")
	assert.Contains(t, out.Result.Message, "**Leader:** Roronoa Zoro (OP01-001)")

	out = call(t, reg, env, ToolValidateDeck, tools.Args{})
	assert.Contains(t, out.Result.Message, "**validation errors**")
	assert.Contains(t, out.Result.Message, "- Deck must have exactly 50 cards (currently has 6)")
	assert.Contains(t, out.Result.Message, "'Usopp' has invalid color(s)")

	out = call(t, reg, env, ToolCalculateStats, tools.Args{})
	assert.Contains(t, out.Result.Message, "# Deck Statistics: Zoro Rush")
	assert.Contains(t, out.Result.Message, "blocker: 4")
}

func TestManageDeck(t *testing.T) {
	reg := newRegistry(t, nil)
	env := newEnv(t, seedCatalog(t), nil)

	out := call(t, reg, env, ToolManageDeck, tools.Args{
		"action": "add_cards",
		"cards":  `[{"card_id":"OP01-002","quantity":9}]`,
	})
	require.Equal(t, tools.Continue, out.Kind)
	assert.Equal(t, deck.ActionAddCards, out.Result.Data["action"])
	added := out.Result.Data["cards"].([]deck.AddedCard)
	assert.Equal(t, 4, added[0].Quantity)

	out = call(t, reg, env, ToolManageDeck, tools.Args{
		"action":        "add_cards",
		"cards":         []any{map[string]any{"card_id": "OP01-040", "quantity": float64(1)}},
		"leader_colors": []any{"Red"},
	})
	assert.Nil(t, out.Result.Data)
	assert.Contains(t, out.Result.Message, "Color identity violations:")

	out = call(t, reg, env, ToolManageDeck, tools.Args{"action": "set_leader"})
	assert.Equal(t, "leader_id is required for set_leader action.", out.Result.Message)

	out = call(t, reg, env, ToolManageDeck, tools.Args{"action": "remove_cards", "card_ids": `["OP01-002"]`})
	assert.Equal(t, map[string]any{"action": deck.ActionRemoveCards, "card_ids": []string{"OP01-002"}}, out.Result.Data)

	out = call(t, reg, env, ToolManageDeck, tools.Args{"action": "shuffle"})
	assert.Equal(t, "Unknown action: shuffle. Use 'set_leader', 'add_cards', or 'remove_cards'.", out.Result.Message)
}

func TestSetDeckLeader(t *testing.T) {
	reg := newRegistry(t, nil)
	env := newEnv(t, seedCatalog(t), nil)

	out := call(t, reg, env, ToolSetDeckLeader, tools.Args{"leader_id": "OP99-999"})
	assert.Equal(t, "Leader 'OP99-999' not found in the database. Use search_cards to find valid leaders.", out.Result.Message)

	out = call(t, reg, env, ToolSetDeckLeader, tools.Args{"leader_id": "OP01-001"})
	assert.Equal(t, deck.ActionSetLeader, out.Result.Data["action"])
	assert.Contains(t, out.Result.Message, "Leader set to Roronoa Zoro (OP01-001)")
}

func TestModifyDeck_CombinesActionData(t *testing.T) {
	reg := newRegistry(t, nil)
	llm := agenttest.NewScriptedModel(
		agenttest.Call("proxy_set_deck_leader", `{"leader_id":"OP01-001"}`),
		agenttest.Call("add_cards_to_deck", `{"cards":"[{\"card_id\":\"OP01-002\",\"quantity\":4}]","leader_colors":["Red"]}`),
		agenttest.Text("Leader set and 4 cards added."),
	)
	env := newEnv(t, seedCatalog(t), llm)

	out := call(t, reg, env, ToolModifyDeck, tools.Args{"task": "Set leader OP01-001 and add 4x OP01-002"})
	require.Equal(t, tools.Continue, out.Kind)
	assert.Equal(t, "Leader set and 4 cards added.", out.Result.Message)
	assert.Equal(t, deck.ActionBatch, out.Result.Data["action"])
	assert.Len(t, out.Result.Data["actions"], 2)
	assert.ElementsMatch(t, UITools, llm.BoundTools())
}

func TestQueryData_DropsActionData(t *testing.T) {
	reg := newRegistry(t, nil)
	llm := agenttest.NewScriptedModel(
		agenttest.Call("search_cards", `{"name":"law"}`),
		agenttest.Text("OP01-002 Trafalgar Law costs 2."),
	)
	env := newEnv(t, seedCatalog(t), llm)

	out := call(t, reg, env, ToolQueryData, tools.Args{"task": "find law"})
	assert.Equal(t, "OP01-002 Trafalgar Law costs 2.", out.Result.Message)
	assert.Nil(t, out.Result.Data)
	assert.ElementsMatch(t, DataTools, llm.BoundTools())
}

func TestAnalyzeStrategy_ExecutesPlan(t *testing.T) {
	reg := newRegistry(t, nil)
	llm := agenttest.NewScriptedModel(
		agenttest.Call("search_cards", `{"color":"Red"}`),
		agenttest.Call("submit_plan", `{"cards_to_add":[{"card_id":"OP01-002","quantity":7}],"cards_to_remove":["OP01-013"],"reasoning":"Add blockers."}`),
	)
	env := newEnv(t, seedCatalog(t), llm)
	env.Context = state.AgentContext{state.KeyBuilderState: map[string]any{
		"leader": map[string]any{"id": "OP01-001", "name": "Roronoa Zoro", "colors": []any{"Red"}},
	}}

	out := call(t, reg, env, ToolAnalyzeStrategy, tools.Args{"task": "fill my deck"})
	require.Equal(t, tools.Continue, out.Kind)
	assert.Contains(t, out.Result.Message, "Add blockers.\n\n**Changes applied:**\n")
	assert.Contains(t, out.Result.Message, "Removed 1 card(s) from deck: OP01-013")
	assert.Contains(t, out.Result.Message, "Added 4 card(s) to deck:")
	assert.Equal(t, deck.ActionBatch, out.Result.Data["action"])
}

func TestAnalyzeStrategy_ReportsIssues(t *testing.T) {
	reg := newRegistry(t, nil)
	llm := agenttest.NewScriptedModel(
		agenttest.Call("submit_plan", `{"leader_to_set":"OP99-999","cards_to_add":[{"card_id":"OP01-002","quantity":2}],"reasoning":"Swap leader."}`),
	)
	env := newEnv(t, seedCatalog(t), llm)

	out := call(t, reg, env, ToolAnalyzeStrategy, tools.Args{"task": "new leader"})
	assert.Contains(t, out.Result.Message, "Swap leader.\n\n**Issues encountered:**\nLeader 'OP99-999' not found in the database.")
	assert.Equal(t, deck.ActionAddCards, out.Result.Data["action"], "later steps still apply")
}

func TestAnalyzeStrategy_AnalysisOnly(t *testing.T) {
	reg := newRegistry(t, nil)
	llm := agenttest.NewScriptedModel(agenttest.Text("Your deck already looks strong."))
	env := newEnv(t, seedCatalog(t), llm)

	out := call(t, reg, env, ToolAnalyzeStrategy, tools.Args{"task": "review"})
	assert.Equal(t, "Your deck already looks strong.", out.Result.Message)
	assert.Nil(t, out.Result.Data)
}

func TestMainLoop_AddFourCopies(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, nil)
	store := conversation.NewMemoryStore()
	c := &conversation.Conversation{Title: "deck"}
	require.NoError(t, store.Create(ctx, c))

	m, err := agent.NewMonologue(reg.Resolve(agent.MainTools...), store, agent.WithLogger(log.Discard()))
	require.NoError(t, err)

	llm := agenttest.NewScriptedModel(
		agenttest.StreamedCall(0, "manage_deck", `{"action":"add_cards",`, `"cards":[{"card_id":"OP01-002","quantity":4}],`, `"leader_colors":["Red"]}`),
		agenttest.Call("response", `{"text":"Added 4x Trafalgar Law."}`),
	)
	sess, err := seedCatalog(t).Begin(ctx)
	require.NoError(t, err)

	rec := &agent.Recorder{}
	res, err := m.Run(ctx, agent.Turn{ConversationID: c.ID, Message: "add 4x OP01-002", Model: llm, Catalog: sess}, rec)
	require.NoError(t, err)
	assert.Equal(t, "Added 4x Trafalgar Law.", res.FinalText)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, llm.Calls())

	results := rec.OfType(agent.EventToolResult)
	require.Len(t, results, 2)
	tr := results[0].(agent.ToolResultEvent)
	assert.Equal(t, "manage_deck", tr.Tool)
	assert.Equal(t, deck.ActionAddCards, tr.ActionData["action"])
	added := tr.ActionData["cards"].([]deck.AddedCard)
	require.Len(t, added, 1)
	assert.Equal(t, "OP01-002", added[0].Card.ID)
	assert.Equal(t, 4, added[0].Quantity)

	thinking := rec.OfType(agent.EventThinking)
	require.NotEmpty(t, thinking)
	assert.Equal(t, []string{"Modifying deck: add_cards"}, thinking[0].(agent.ThinkingEvent).Thoughts)
}

func TestMainLoop_AddFourCopiesThenSummaryText(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, nil)
	store := conversation.NewMemoryStore()
	c := &conversation.Conversation{Title: "deck"}
	require.NoError(t, store.Create(ctx, c))

	m, err := agent.NewMonologue(reg.Resolve(agent.MainTools...), store, agent.WithLogger(log.Discard()))
	require.NoError(t, err)

	summary := "Added 4 card(s) to deck:\n  4x Trafalgar Law (OP01-002) — Character, Cost 2"
	llm := agenttest.NewScriptedModel(
		agenttest.Call("manage_deck", `{"action":"add_cards","cards":[{"card_id":"OP01-002","quantity":4}]}`),
		agenttest.Text(summary),
	)
	sess, err := seedCatalog(t).Begin(ctx)
	require.NoError(t, err)

	rec := &agent.Recorder{}
	res, err := m.Run(ctx, agent.Turn{ConversationID: c.ID, Message: "add 4x OP01-002", Model: llm, Catalog: sess}, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, llm.Calls())

	uses := rec.OfType(agent.EventToolUse)
	require.Len(t, uses, 1)
	assert.Equal(t, "manage_deck", uses[0].(agent.ToolUseEvent).Tool)

	results := rec.OfType(agent.EventToolResult)
	require.Len(t, results, 1)
	tr := results[0].(agent.ToolResultEvent)
	assert.Equal(t, summary, tr.Result)
	assert.Equal(t, deck.ActionAddCards, tr.ActionData["action"])
	added := tr.ActionData["cards"].([]deck.AddedCard)
	require.Len(t, added, 1)
	assert.Equal(t, "OP01-002", added[0].Card.ID)
	assert.Equal(t, 4, added[0].Quantity)

	done := rec.OfType(agent.EventDone)
	require.Len(t, done, 1)
	assert.Equal(t, summary, done[0].(agent.DoneEvent).FullText)
	assert.Equal(t, summary, res.FinalText)
}
