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

// Package llm OpenAI 兼容的聊天模型工厂与限流包装
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// DefaultBaseURLs 各提供商的 OpenAI 兼容端点
var DefaultBaseURLs = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"kimi":       "https://api.moonshot.cn/v1",
	"local":      "http://localhost:11434/v1",
}

// DefaultTimeout 单次请求超时
const DefaultTimeout = 120 * time.Second

// Options 聊天模型构造参数
type Options struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// NewChatModel 基于 eino-ext openai 组件创建支持工具调用的聊天模型
func NewChatModel(ctx context.Context, opts Options) (model.ToolCallingChatModel, error) {
	provider := strings.ToLower(opts.Provider)
	if opts.Model == "" {
		return nil, fmt.Errorf("provider %s: model name is required", provider)
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURLs[provider]
	}
	if baseURL == "" {
		return nil, fmt.Errorf("provider %s 未配置 base_url", provider)
	}
	apiKey := opts.APIKey
	if apiKey == "" {
		if provider != "local" {
			return nil, fmt.Errorf("provider %s 缺少 api_key", provider)
		}
		apiKey = "local"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   opts.Model,
		Timeout: timeout,
	}
	if opts.Temperature > 0 {
		t := float32(opts.Temperature)
		cfg.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		n := opts.MaxTokens
		cfg.MaxTokens = &n
	}
	cm, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", provider, err)
	}
	return cm, nil
}
