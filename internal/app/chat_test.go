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

package app

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/hertz-contrib/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck-agent/internal/agent"
	"deck-agent/internal/agent/agenttest"
	"deck-agent/internal/api/protocol"
	"deck-agent/internal/storage/cache"
	"deck-agent/internal/storage/catalog"
	"deck-agent/internal/storage/conversation"
	"deck-agent/internal/tool/builtin"
	"deck-agent/pkg/errors"
	"deck-agent/pkg/log"
)

type fakeModels struct {
	llm  *agenttest.ScriptedModel
	keys [][]string
}

func (f *fakeModels) ChatModel(_ context.Context, keys ...string) (einomodel.ToolCallingChatModel, string, error) {
	f.keys = append(f.keys, keys)
	for _, k := range keys {
		if k == "bad.model" {
			return nil, "", errors.Wrapf(errors.ErrInvalidArg, "unknown model %q", k)
		}
		if k != "" {
			return f.llm, k, nil
		}
	}
	return f.llm, "openai.default", nil
}

type fixture struct {
	svc    *ChatService
	convs  conversation.Store
	models *fakeModels
	conv   *conversation.Conversation
}

func newFixture(t *testing.T, llm *agenttest.ScriptedModel) *fixture {
	t.Helper()
	convs := conversation.NewMemoryStore()
	reg, err := builtin.NewRegistry(builtin.Deps{Logger: log.Discard()})
	require.NoError(t, err)
	loop, err := agent.NewMonologue(reg.Resolve(agent.MainTools...), convs, agent.WithLogger(log.Discard()))
	require.NoError(t, err)
	models := &fakeModels{llm: llm}
	locker := conversation.NewLocker(cache.NewMemoryStore(), time.Minute)
	svc := NewChatService(convs, locker, catalog.NewMemoryStore(), models, loop, log.Discard())

	conv := &conversation.Conversation{Title: "t", Provider: "kimi", Model: "k2", Context: map[string]any{"page": "deck_builder"}}
	require.NoError(t, convs.Create(context.Background(), conv))
	return &fixture{svc: svc, convs: convs, models: models, conv: conv}
}

func TestChatService_PlainTextTurn(t *testing.T) {
	f := newFixture(t, agenttest.NewScriptedModel(agenttest.Text("Hello ", "pirate!")))
	rec := &agent.Recorder{}
	res, err := f.svc.Send(context.Background(), SendRequest{ConversationID: f.conv.ID, Content: "hi"}, protocol.NamePlain, rec)
	require.NoError(t, err)
	assert.Equal(t, "Hello pirate!", res.FinalText)
	assert.Equal(t, agent.ReasonAnswer, res.Reason)
	require.Len(t, rec.OfType(agent.EventDone), 1)

	msgs, err := f.convs.Messages(context.Background(), f.conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello pirate!", msgs[1].Content)

	// 锁已释放
	p, err := f.svc.Prepare(context.Background(), SendRequest{ConversationID: f.conv.ID, Content: "again"})
	require.NoError(t, err)
	p.Release()
}

func TestChatService_LockConflict(t *testing.T) {
	f := newFixture(t, agenttest.NewScriptedModel(agenttest.Text("ok")))
	ctx := context.Background()
	p1, err := f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "one"})
	require.NoError(t, err)

	_, err = f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "two"})
	assert.True(t, errors.Is(err, errors.ErrConflict))

	p1.Release()
	p2, err := f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "two"})
	require.NoError(t, err)
	p2.Release()
}

func TestChatService_PrepareErrors(t *testing.T) {
	f := newFixture(t, agenttest.NewScriptedModel())
	ctx := context.Background()

	_, err := f.svc.Prepare(ctx, SendRequest{ConversationID: "missing", Content: "hi"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	_, err = f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "   "})
	assert.True(t, errors.Is(err, errors.ErrInvalidArg))

	_, err = f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: strings.Repeat("a", MaxMessageLength+1)})
	assert.True(t, errors.Is(err, errors.ErrInvalidArg))

	// 模型选择失败时锁必须已释放
	_, err = f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "hi", Provider: "bad", Model: "model"})
	assert.True(t, errors.Is(err, errors.ErrInvalidArg))
	p, err := f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "hi"})
	require.NoError(t, err)
	p.Release()
}

func TestChatService_ModelSelectionOrder(t *testing.T) {
	f := newFixture(t, agenttest.NewScriptedModel())
	ctx := context.Background()

	p, err := f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "hi", Provider: "openai", Model: "gpt"})
	require.NoError(t, err)
	p.Release()
	p, err = f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "hi", Model: "openrouter.claude"})
	require.NoError(t, err)
	p.Release()

	assert.Equal(t, [][]string{
		{"openai.gpt", "kimi.k2"},
		{"openrouter.claude", "kimi.k2"},
	}, f.models.keys)
}

func TestChatService_ContextOverridesArePersisted(t *testing.T) {
	f := newFixture(t, agenttest.NewScriptedModel())
	ctx := context.Background()
	deckID := "7b0f7a4e-3c55-4a55-9d3c-0d6a9b0c1e11"

	p, err := f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "hi", Context: map[string]any{"deck_id": deckID}})
	require.NoError(t, err)
	defer p.Release()

	snap := p.Snapshot()
	assert.Equal(t, deckID, snap["deck_id"])
	assert.Equal(t, "deck_builder", snap["page"])

	conv, err := f.convs.Get(ctx, f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, deckID, conv.Context["deck_id"])
}

func TestChatService_TurnSurvivesClientCancel(t *testing.T) {
	f := newFixture(t, agenttest.NewScriptedModel(agenttest.Text("still here")))
	ctx, cancel := context.WithCancel(context.Background())
	p, err := f.svc.Prepare(ctx, SendRequest{ConversationID: f.conv.ID, Content: "hi"})
	require.NoError(t, err)
	cancel()

	res, err := p.Run(ctx, protocol.NamePlain, &agent.Recorder{})
	require.NoError(t, err)
	assert.Equal(t, "still here", res.FinalText)
}

func TestChatService_AGUIStream(t *testing.T) {
	f := newFixture(t, agenttest.NewScriptedModel(
		agenttest.Call("search_cards", `{"name":"Law"}`),
		agenttest.Call("response", `{"text":"No Law in the catalog yet."}`),
	))
	p, err := f.svc.Prepare(context.Background(), SendRequest{ConversationID: f.conv.ID, Content: "find law"})
	require.NoError(t, err)

	var types []string
	adapter := protocol.NewAGUI(protocol.PublisherFunc(func(e *sse.Event) error {
		var ev protocol.AGUIEvent
		require.NoError(t, json.Unmarshal(e.Data, &ev))
		types = append(types, ev.Type)
		return nil
	}), p.ConversationID(), log.Discard())
	adapter.Run(p.Snapshot(), func(sink agent.EventSink) error {
		_, err := p.Run(context.Background(), protocol.NameAGUI, sink)
		return err
	})

	assert.Equal(t, protocol.AGUIRunStarted, types[0])
	assert.Contains(t, types, protocol.AGUIToolCallResult)
	assert.Contains(t, types, protocol.AGUITextMessageContent)
	assert.Equal(t, protocol.AGUIRunFinished, types[len(types)-1])
}
