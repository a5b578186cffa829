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

package model

import (
	"context"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck-agent/internal/agent/agenttest"
	"deck-agent/internal/model/llm"
	"deck-agent/pkg/config"
	"deck-agent/pkg/errors"
)

func testConfig() config.ModelConfig {
	return config.ModelConfig{
		LLM: config.LLMConfig{Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk", Models: map[string]config.ModelInfo{
				"gpt4o": {Name: "gpt-4o", Temperature: 0.2},
			}},
			"kimi": {APIKey: "kk", Models: map[string]config.ModelInfo{
				"moonshot_8k": {Name: "moonshot-v1-8k"},
			}},
		}},
		Embedding: config.EmbeddingConfig{Providers: map[string]config.ProviderConfig{
			"openai": {APIKey: "sk", Models: map[string]config.ModelInfo{
				"small": {Name: "text-embedding-3-small", Dimension: 1536},
			}},
		}},
		Defaults: config.DefaultsConfig{LLM: "openai.gpt4o", Embedding: "openai.small"},
	}
}

func TestRegistry_ChatModelSelection(t *testing.T) {
	var built []llm.Options
	r := NewRegistry(testConfig(), nil).WithBuilder(func(_ context.Context, o llm.Options) (einomodel.ToolCallingChatModel, error) {
		built = append(built, o)
		return agenttest.NewScriptedModel(), nil
	})
	ctx := context.Background()

	_, key, err := r.ChatModel(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "openai.gpt4o", key)

	_, key, err = r.ChatModel(ctx, "", "kimi.moonshot_8k")
	require.NoError(t, err)
	assert.Equal(t, "kimi.moonshot_8k", key)

	_, key, err = r.ChatModel(ctx, "openai.gpt4o", "kimi.moonshot_8k")
	require.NoError(t, err)
	assert.Equal(t, "openai.gpt4o", key)

	require.Len(t, built, 2)
	assert.Equal(t, "gpt-4o", built[0].Model)
	assert.Equal(t, 0.2, built[0].Temperature)
	assert.Equal(t, "moonshot-v1-8k", built[1].Model)
}

func TestRegistry_ChatModelErrors(t *testing.T) {
	r := NewRegistry(testConfig(), nil)
	ctx := context.Background()
	for _, key := range []string{"nodot", "gemini.pro", "openai.missing"} {
		_, _, err := r.ChatModel(ctx, key)
		assert.True(t, errors.Is(err, errors.ErrInvalidArg), key)
	}

	empty := NewRegistry(config.ModelConfig{}, nil)
	_, _, err := empty.ChatModel(ctx)
	assert.True(t, errors.Is(err, errors.ErrInvalidArg))
}

func TestRegistry_Embedder(t *testing.T) {
	e, err := NewRegistry(testConfig(), nil).Embedder()
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.Model())
	assert.Equal(t, 1536, e.Dimension())

	_, err = NewRegistry(config.ModelConfig{}, nil).Embedder()
	assert.Error(t, err)
}

func TestRegistry_Providers(t *testing.T) {
	ps := NewRegistry(testConfig(), nil).Providers()
	require.Len(t, ps, 2)
	assert.Equal(t, "kimi", ps[0].Name)
	assert.False(t, ps[0].Default)
	assert.Equal(t, ProviderInfo{Name: "openai", Models: []string{"openai.gpt4o"}, Default: true}, ps[1])
}
