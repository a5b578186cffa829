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
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"deck-agent/pkg/config"
)

// DefaultLimits 未单独配置的 provider 使用的限额
var DefaultLimits = config.LLMRateLimitConfig{
	TokensPerMinute:   90000,
	RequestsPerMinute: 3500,
	MaxConcurrent:     50,
}

// RateLimiter 按 provider 维度的请求数、token 预算与并发限制
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*providerLimiter
	configs  map[string]config.LLMRateLimitConfig
	defaults config.LLMRateLimitConfig
}

type providerLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}
}

// NewRateLimiter 创建限流器；defaults 为 nil 时使用 DefaultLimits
func NewRateLimiter(configs map[string]config.LLMRateLimitConfig, defaults *config.LLMRateLimitConfig) *RateLimiter {
	d := DefaultLimits
	if defaults != nil {
		d = *defaults
	}
	return &RateLimiter{
		limiters: make(map[string]*providerLimiter),
		configs:  configs,
		defaults: d,
	}
}

func (l *RateLimiter) get(provider string) *providerLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pl, ok := l.limiters[provider]; ok {
		return pl
	}
	cfg, ok := l.configs[provider]
	if !ok {
		cfg = l.defaults
	}
	pl := &providerLimiter{}
	if cfg.RequestsPerMinute > 0 {
		// burst 为 2 秒的配额
		pl.requests = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), max(int(cfg.RequestsPerMinute/30), 1))
	}
	if cfg.TokensPerMinute > 0 {
		pl.tokens = rate.NewLimiter(rate.Limit(float64(cfg.TokensPerMinute)/60), max(cfg.TokensPerMinute/30, 1))
	}
	if cfg.MaxConcurrent > 0 {
		pl.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	l.limiters[provider] = pl
	return pl
}

// Wait 阻塞直到获得执行许可；成功后必须调用 Release
func (l *RateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	pl := l.get(provider)
	if pl.requests != nil {
		if err := pl.requests.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if pl.tokens != nil && estimatedTokens > 0 {
		// 超过 burst 的请求按 burst 计，否则 WaitN 直接报错
		if err := pl.tokens.WaitN(ctx, min(estimatedTokens, pl.tokens.Burst())); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if pl.semaphore != nil {
		select {
		case pl.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 归还并发 slot
func (l *RateLimiter) Release(provider string) {
	pl := l.get(provider)
	if pl.semaphore == nil {
		return
	}
	select {
	case <-pl.semaphore:
	default:
	}
}

// InFlight 当前占用的并发 slot 数
func (l *RateLimiter) InFlight(provider string) int {
	return len(l.get(provider).semaphore)
}
