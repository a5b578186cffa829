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

// Package model 按 "provider.model_key" 解析并缓存聊天模型与 Embedding 模型
package model

import (
	"context"
	"fmt"
	"sort"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"

	"deck-agent/internal/model/embedding"
	"deck-agent/internal/model/llm"
	"deck-agent/pkg/config"
	"deck-agent/pkg/errors"
)

// ChatBuilder 构造底层聊天模型，测试中可替换
type ChatBuilder func(ctx context.Context, opts llm.Options) (einomodel.ToolCallingChatModel, error)

// Registry 模型注册表；首次使用时构建并缓存
type Registry struct {
	cfg     config.ModelConfig
	limiter *llm.RateLimiter
	build   ChatBuilder

	mu    sync.Mutex
	chats map[string]einomodel.ToolCallingChatModel
}

// NewRegistry 创建注册表；limiter 可为 nil
func NewRegistry(cfg config.ModelConfig, limiter *llm.RateLimiter) *Registry {
	return &Registry{cfg: cfg, limiter: limiter, build: llm.NewChatModel, chats: make(map[string]einomodel.ToolCallingChatModel)}
}

// WithBuilder 替换聊天模型构造函数
func (r *Registry) WithBuilder(b ChatBuilder) *Registry {
	r.build = b
	return r
}

// ChatModel 取 keys 中第一个非空值（请求 → 会话），都为空时用默认 LLM；返回模型与实际使用的 key
func (r *Registry) ChatModel(ctx context.Context, keys ...string) (einomodel.ToolCallingChatModel, string, error) {
	key := r.cfg.Defaults.LLM
	for _, k := range keys {
		if k != "" {
			key = k
			break
		}
	}
	if key == "" {
		return nil, "", errors.Wrap(errors.ErrInvalidArg, "no model selected and model.defaults.llm is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cm, ok := r.chats[key]; ok {
		return cm, key, nil
	}
	provider, modelKey, ok := config.ParseModelKey(key)
	if !ok {
		return nil, "", errors.Wrapf(errors.ErrInvalidArg, "invalid model key %q, expect provider.model_key", key)
	}
	pc, ok := r.cfg.LLM.Providers[provider]
	if !ok {
		return nil, "", errors.Wrapf(errors.ErrInvalidArg, "unknown provider %q", provider)
	}
	info, ok := pc.Models[modelKey]
	if !ok {
		return nil, "", errors.Wrapf(errors.ErrInvalidArg, "unknown model %q for provider %s", modelKey, provider)
	}
	name := info.Name
	if name == "" {
		name = modelKey
	}
	cm, err := r.build(ctx, llm.Options{
		Provider:    provider,
		APIKey:      pc.APIKey,
		BaseURL:     pc.BaseURL,
		Model:       name,
		Temperature: info.Temperature,
		MaxTokens:   info.MaxTokens,
	})
	if err != nil {
		return nil, "", err
	}
	cm = llm.NewRateLimitedModel(cm, provider, r.limiter, info.MaxTokens)
	r.chats[key] = cm
	return cm, key, nil
}

// Embedder 创建默认 Embedding 模型
func (r *Registry) Embedder() (*embedding.Embedder, error) {
	key := r.cfg.Defaults.Embedding
	provider, modelKey, ok := config.ParseModelKey(key)
	if !ok {
		return nil, fmt.Errorf("invalid embedding key %q", key)
	}
	pc, ok := r.cfg.Embedding.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
	info := pc.Models[modelKey]
	name := info.Name
	if name == "" {
		name = modelKey
	}
	return embedding.New(embedding.Config{
		APIKey:    pc.APIKey,
		BaseURL:   pc.BaseURL,
		Model:     name,
		Dimension: info.Dimension,
	})
}

// ProviderInfo 对外展示的提供商与模型
type ProviderInfo struct {
	Name    string   `json:"name"`
	Models  []string `json:"models"`
	Default bool     `json:"default"`
}

// Providers 列出已配置的 LLM 提供商，按名称排序
func (r *Registry) Providers() []ProviderInfo {
	defProvider, _, _ := config.ParseModelKey(r.cfg.Defaults.LLM)
	out := make([]ProviderInfo, 0, len(r.cfg.LLM.Providers))
	for name, pc := range r.cfg.LLM.Providers {
		models := make([]string, 0, len(pc.Models))
		for k := range pc.Models {
			models = append(models, name+"."+k)
		}
		sort.Strings(models)
		out = append(out, ProviderInfo{Name: name, Models: models, Default: name == defProvider})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
