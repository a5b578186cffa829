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
	"fmt"

	"deck-agent/internal/agent"
	"deck-agent/internal/agent/tools"
	"deck-agent/internal/einoext"
	"deck-agent/internal/knowledge"
	"deck-agent/internal/model"
	"deck-agent/internal/model/llm"
	"deck-agent/internal/storage/cache"
	"deck-agent/internal/storage/catalog"
	"deck-agent/internal/storage/conversation"
	"deck-agent/internal/tool/builtin"
	"deck-agent/pkg/config"
	"deck-agent/pkg/log"
	"deck-agent/pkg/secrets"
)

// Bootstrap 统一初始化：供 api、cli 与 devops 复用，避免在 cmd 内装配业务
type Bootstrap struct {
	Config        *config.Config
	Logger        *log.Logger
	Cache         cache.Store
	Catalog       catalog.Store
	Conversations conversation.Store
	Locker        *conversation.Locker
	Models        *model.Registry
	// Knowledge 未配置 embedding 时为 nil
	Knowledge *knowledge.Base
	Tools     *tools.Registry
	Chat      *ChatService

	vectors *einoext.Components
}

// NewBootstrap 根据配置创建 Bootstrap（Cache/Catalog/Conversation/Models/Knowledge/Tools）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.Agent.Normalize()

	logger, err := log.NewLogger(&log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	b := &Bootstrap{Config: cfg, Logger: logger}

	store, err := secrets.NewStore(cfg.Secrets)
	if err != nil {
		return nil, fmt.Errorf("初始化密钥存储失败: %w", err)
	}
	if err := config.ResolveSecrets(ctx, cfg, store); err != nil {
		return nil, fmt.Errorf("解析密钥失败: %w", err)
	}

	if b.Cache, err = cache.NewCache(ctx, cfg.Storage.Cache); err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}
	if b.Catalog, err = newCatalog(ctx, cfg.Storage.Catalog); err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化卡牌库失败: %w", err)
	}
	convs, err := newConversations(ctx, cfg.Storage.Conversation)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("初始化对话存储失败: %w", err)
	}
	b.Conversations = conversation.NewCachedStore(convs, b.Cache, cfg.Agent.HistoryTTLDuration(), logger.Logger)
	b.Locker = conversation.NewLocker(b.Cache, cfg.Agent.LockTTLDuration())

	limiter := llm.NewRateLimiter(cfg.RateLimits.LLM, nil)
	b.Models = model.NewRegistry(cfg.Model, limiter)

	if err := b.initKnowledge(ctx); err != nil {
		logger.Warn("知识库不可用，search_knowledge 将返回降级提示", "error", err)
	}
	var recall agent.Recaller
	if b.Knowledge != nil {
		recall = b.Knowledge
	}

	b.Tools, err = builtin.NewRegistry(builtin.Deps{
		Knowledge:          recall,
		SubAgentIterations: cfg.Agent.SubAgentIterations,
		PlannerIterations:  cfg.Agent.PlannerIterations,
		Logger:             logger.Logger,
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("注册工具失败: %w", err)
	}
	loop, err := agent.NewMonologue(b.Tools.Resolve(agent.MainTools...), b.Conversations,
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithHistoryWindow(cfg.Agent.HistoryWindow),
		agent.WithResultPreview(cfg.Agent.ResultPreview),
		agent.WithRecall(recall, cfg.Agent.RecallLimit),
		agent.WithLogger(logger.Logger),
	)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("创建主循环失败: %w", err)
	}
	b.Chat = NewChatService(b.Conversations, b.Locker, b.Catalog, b.Models, loop, logger.Logger)
	return b, nil
}

func (b *Bootstrap) initKnowledge(ctx context.Context) error {
	cfg := b.Config
	if cfg.Model.Defaults.Embedding == "" {
		return fmt.Errorf("model.defaults.embedding is empty")
	}
	emb, err := b.Models.Embedder()
	if err != nil {
		return err
	}
	comps, err := einoext.New(ctx, cfg.Storage.Vector, emb, emb.Dimension())
	if err != nil {
		return err
	}
	opts := []knowledge.Option{knowledge.WithLogger(b.Logger.Logger)}
	if cfg.Knowledge.ScoreThreshold > 0 {
		opts = append(opts, knowledge.WithThreshold(cfg.Knowledge.ScoreThreshold))
	}
	if cfg.Knowledge.ChunkSize > 0 {
		opts = append(opts, knowledge.WithChunking(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap))
	}
	if comps.Store != nil {
		opts = append(opts, knowledge.WithStore(comps.Store, einoext.CollectionName(cfg.Storage.Vector)))
	}
	kb, err := knowledge.NewBase(ctx, comps.Retriever, comps.Indexer, emb, opts...)
	if err != nil {
		_ = comps.Close()
		return err
	}
	b.vectors = comps
	b.Knowledge = kb
	return nil
}

func newCatalog(ctx context.Context, cfg config.DatabaseConfig) (catalog.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return catalog.NewMemoryStore(), nil
	case "postgres":
		s, err := catalog.NewStorePg(ctx, cfg.DSN, cfg.PoolSize)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Type)
	}
}

func newConversations(ctx context.Context, cfg config.DatabaseConfig) (conversation.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return conversation.NewMemoryStore(), nil
	case "postgres":
		s, err := conversation.NewStorePg(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Type)
	}
}

// Close 释放全部连接
func (b *Bootstrap) Close() {
	if b.Conversations != nil {
		b.Conversations.Close()
	}
	if b.Catalog != nil {
		b.Catalog.Close()
	}
	if b.vectors != nil {
		_ = b.vectors.Close()
	}
	if b.Cache != nil {
		_ = b.Cache.Close()
	}
	_ = b.Logger.Close()
}
