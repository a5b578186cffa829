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

package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck-agent/internal/agent/agenttest"
	"deck-agent/internal/agent/state"
	"deck-agent/internal/agent/tools"
	"deck-agent/internal/deck"
)

func searchStub(name string, calls *int) *tools.Capability {
	return &tools.Capability{
		Name: name, Kind: tools.KindQuery, Description: "search " + name,
		Params: []tools.Param{{Name: "name", Type: schema.String}},
		Execute: func(_ context.Context, _ *tools.Env, a tools.Args) (*tools.Result, error) {
			*calls++
			return &tools.Result{Message: "Found 1 card(s):\n**Nami** (OP01-016) for " + a.String("name")}, nil
		},
	}
}

func newPlanner(t *testing.T, calls *int) *Planner {
	t.Helper()
	p, err := New([]*tools.Capability{searchStub("search_cards", calls), searchStub("search_leaders", calls)})
	require.NoError(t, err)
	return p
}

func redSnapshot() state.AgentContext {
	return state.AgentContext{
		state.KeyBuilderState: map[string]any{
			"leader":      map[string]any{"id": "OP01-001", "name": "Zoro", "colors": []any{"Red"}},
			"total_cards": 10,
			"cards": []any{
				map[string]any{"id": "OP01-006", "name": "Otama", "type": "Character", "cost": 1, "color": "Green", "quantity": 10},
			},
		},
	}
}

func TestPlanner_SubmitPlanAfterSearch(t *testing.T) {
	calls := 0
	p := newPlanner(t, &calls)
	assert.Equal(t, []string{"search_cards", "search_leaders", SubmitPlanTool}, p.Tools())

	m := agenttest.NewScriptedModel(
		agenttest.Call("search_cards", `{"name":"Nami"}`),
		agenttest.Call("proxy_submit_plan", `{
			"leader_to_set": null,
			"cards_to_add": "[{\"card_id\":\"OP01-016\",\"quantity\":9},{\"card_id\":\"OP01-017\",\"quantity\":0},{\"quantity\":2}]",
			"cards_to_remove": ["OP01-006"],
			"leader_colors": ["Blue"],
			"reasoning": "Swap Otama for Nami."
		}`),
	)
	env := &tools.Env{Context: redSnapshot(), Model: m}

	plan := p.Plan(context.Background(), env, "make it aggro")
	assert.Equal(t, &deck.Plan{
		CardsToAdd: []deck.PlanCard{
			{CardID: "OP01-016", Quantity: 4},
			{CardID: "OP01-017", Quantity: 1},
		},
		CardsToRemove: []string{"OP01-006"},
		LeaderColors:  []string{"Red"},
		Reasoning:     "Swap Otama for Nami.",
	}, plan)
	assert.Equal(t, 1, calls)
	assert.ElementsMatch(t, []string{"search_cards", "search_leaders", SubmitPlanTool}, m.BoundTools())

	first := m.Input(0)
	require.Len(t, first, 2)
	assert.Contains(t, first[0].Content, "## Current Deck State")
	assert.Contains(t, first[0].Content, "Total cards: 10/50")
	assert.Contains(t, first[0].Content, "Otama (OP01-006)")
	assert.Equal(t, "make it aggro", first[1].Content)

	second := m.Input(1)
	require.Len(t, second, 4)
	assert.Equal(t, "strategy_0", second[2].ToolCalls[0].ID)
	assert.Equal(t, schema.Tool, second[3].Role)
	assert.Contains(t, second[3].Content, "Nami")
}

func TestPlanner_TextInsteadOfPlan(t *testing.T) {
	calls := 0
	p := newPlanner(t, &calls)

	plan := p.Plan(context.Background(), &tools.Env{Model: agenttest.NewScriptedModel(agenttest.Text("Play more blockers."))}, "advice")
	assert.Equal(t, "Play more blockers.", plan.Reasoning)
	assert.True(t, plan.Empty())

	plan = p.Plan(context.Background(), &tools.Env{Model: agenttest.NewScriptedModel(agenttest.Text(""))}, "advice")
	assert.Equal(t, NoPlanText, plan.Reasoning)
}

func TestPlanner_IterationLimit(t *testing.T) {
	calls := 0
	p := newPlanner(t, &calls)
	m := agenttest.NewScriptedModel(agenttest.Call("search_cards", `{"name":"Luffy"}`))
	m.Repeat = true

	plan := p.Plan(context.Background(), &tools.Env{Model: m}, "build a deck")
	assert.Equal(t, LimitReachedText, plan.Reasoning)
	assert.True(t, plan.Empty())
	assert.Equal(t, DefaultIterations, m.Calls())
	assert.Equal(t, DefaultIterations, calls)
}

func TestPlanner_CustomIterations(t *testing.T) {
	calls := 0
	p, err := New([]*tools.Capability{searchStub("search_cards", &calls)}, WithIterations(2))
	require.NoError(t, err)
	m := agenttest.NewScriptedModel(agenttest.Call("search_cards", `{}`))
	m.Repeat = true

	plan := p.Plan(context.Background(), &tools.Env{Model: m}, "x")
	assert.Equal(t, LimitReachedText, plan.Reasoning)
	assert.Equal(t, 2, m.Calls())
}

func TestPlanner_BackendError(t *testing.T) {
	calls := 0
	p := newPlanner(t, &calls)
	m := agenttest.NewScriptedModel().FailOn(0, errors.New("rate limited"))

	plan := p.Plan(context.Background(), &tools.Env{Model: m}, "x")
	assert.Equal(t, "Strategy planning failed: rate limited", plan.Reasoning)
	assert.True(t, plan.Empty())
}

func TestNew_RejectsMutatingSearch(t *testing.T) {
	_, err := New([]*tools.Capability{{
		Name: "add_cards_to_deck", Kind: tools.KindMutation,
		Execute: func(context.Context, *tools.Env, tools.Args) (*tools.Result, error) { return nil, nil },
	}})
	assert.Error(t, err)
}

func TestParsePlan_NoSnapshot(t *testing.T) {
	plan := ParsePlan(tools.Args{"leader_to_set": "OP01-060", "reasoning": "Blue tempo"}, nil)
	assert.Equal(t, "OP01-060", plan.LeaderToSet)
	assert.Nil(t, plan.LeaderColors)
	assert.Empty(t, plan.CardsToAdd)
	assert.Empty(t, plan.CardsToRemove)
}

func TestSystemPrompt_WithoutSnapshot(t *testing.T) {
	s := SystemPrompt(nil)
	assert.NotContains(t, s, "## Current Deck State")
	assert.Contains(t, s, "submit_plan")
}
