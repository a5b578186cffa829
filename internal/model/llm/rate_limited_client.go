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

package llm

import (
	"context"
	"errors"
	"io"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"deck-agent/pkg/metrics"
)

// RateLimitedModel 在调用前后执行限流的 ToolCallingChatModel 包装
type RateLimitedModel struct {
	inner     model.ToolCallingChatModel
	provider  string
	limiter   *RateLimiter
	maxTokens int
}

// NewRateLimitedModel limiter 为 nil 时直接返回 inner
func NewRateLimitedModel(inner model.ToolCallingChatModel, provider string, limiter *RateLimiter, maxTokens int) model.ToolCallingChatModel {
	if limiter == nil {
		return inner
	}
	return &RateLimitedModel{inner: inner, provider: provider, limiter: limiter, maxTokens: maxTokens}
}

func (m *RateLimitedModel) acquire(ctx context.Context, in []*schema.Message) error {
	start := time.Now()
	if err := m.limiter.Wait(ctx, m.provider, estimateTokens(in, m.maxTokens)); err != nil {
		return err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		metrics.RateLimitWaitSeconds.WithLabelValues(m.provider).Observe(waited.Seconds())
	}
	return nil
}

// Generate 实现 model.BaseChatModel
func (m *RateLimitedModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := m.acquire(ctx, in); err != nil {
		return nil, err
	}
	defer m.limiter.Release(m.provider)
	return m.inner.Generate(ctx, in, opts...)
}

// Stream 实现 model.BaseChatModel；并发 slot 在流读完或关闭后归还
func (m *RateLimitedModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := m.acquire(ctx, in); err != nil {
		return nil, err
	}
	src, err := m.inner.Stream(ctx, in, opts...)
	if err != nil {
		m.limiter.Release(m.provider)
		return nil, err
	}
	out, w := schema.Pipe[*schema.Message](1)
	go func() {
		defer m.limiter.Release(m.provider)
		defer src.Close()
		defer w.Close()
		for {
			chunk, err := src.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if closed := w.Send(chunk, err); closed || err != nil {
				return
			}
		}
	}()
	return out, nil
}

// WithTools 实现 model.ToolCallingChatModel
func (m *RateLimitedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedModel{inner: inner, provider: m.provider, limiter: m.limiter, maxTokens: m.maxTokens}, nil
}

// estimateTokens 按 4 字符约 1 token 粗略估算
func estimateTokens(in []*schema.Message, maxTokens int) int {
	chars := 0
	for _, msg := range in {
		if msg != nil {
			chars += utf8.RuneCountInString(msg.Content)
		}
	}
	return max(chars/4+max(maxTokens, 0), 1)
}
