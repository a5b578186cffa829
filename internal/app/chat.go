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
	"log/slog"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	"deck-agent/internal/agent"
	"deck-agent/internal/agent/state"
	"deck-agent/internal/storage/catalog"
	"deck-agent/internal/storage/conversation"
	"deck-agent/pkg/errors"
	"deck-agent/pkg/metrics"
	"deck-agent/pkg/tracing"
)

// MaxMessageLength 单条用户消息的最大字符数
const MaxMessageLength = 10000

// ModelResolver 按 key 顺序解析聊天模型，model.Registry 满足该接口
type ModelResolver interface {
	ChatModel(ctx context.Context, keys ...string) (einomodel.ToolCallingChatModel, string, error)
}

// SendRequest 一次用户消息
type SendRequest struct {
	ConversationID string
	Content        string
	// Provider / Model 覆盖对话上保存的模型选择
	Provider string
	Model    string
	// Context 本次请求的上下文覆盖项（deck_id、page、deck_builder_state）
	Context map[string]any
}

// ChatService 回合编排：校验对话、持有会话锁、选择模型、合并上下文并驱动独白循环
type ChatService struct {
	conversations conversation.Store
	locker        *conversation.Locker
	catalog       catalog.Store
	models        ModelResolver
	loop          *agent.Monologue
	logger        *slog.Logger
}

// NewChatService 创建 ChatService
func NewChatService(conversations conversation.Store, locker *conversation.Locker, cat catalog.Store,
	models ModelResolver, loop *agent.Monologue, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		conversations: conversations,
		locker:        locker,
		catalog:       cat,
		models:        models,
		loop:          loop,
		logger:        logger,
	}
}

// Conversations 对话存储
func (s *ChatService) Conversations() conversation.Store { return s.conversations }

// modelKey 组合 provider.model；model 自带前缀时直接使用
func modelKey(provider, model string) string {
	switch {
	case model == "":
		return ""
	case provider == "" || strings.HasPrefix(model, provider+"."):
		return model
	default:
		return provider + "." + model
	}
}

// Prepared 已通过校验并持有会话锁的回合；必须调用 Run 或 Release
type Prepared struct {
	svc      *ChatService
	turn     agent.Turn
	modelKey string
	release  func()
}

// Prepare 校验并锁定对话。对话不存在返回 ErrNotFound，已有回合在处理时返回 ErrConflict，
// 参数或模型选择无效返回 ErrInvalidArg。
func (s *ChatService) Prepare(ctx context.Context, req SendRequest) (*Prepared, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "content is required")
	}
	if len([]rune(req.Content)) > MaxMessageLength {
		return nil, errors.Wrapf(errors.ErrInvalidArg, "content exceeds %d characters", MaxMessageLength)
	}
	conv, err := s.conversations.Get(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, conv.ID)
	if err != nil {
		if errors.Is(err, errors.ErrConflict) {
			metrics.LockConflictTotal.Inc()
		}
		return nil, err
	}

	cm, key, err := s.models.ChatModel(ctx, modelKey(req.Provider, req.Model), modelKey(conv.Provider, conv.Model))
	if err != nil {
		release()
		return nil, err
	}

	merged := state.AgentContext(conv.Context).Merge(req.Context)
	if len(req.Context) > 0 {
		if err := s.conversations.UpdateContext(ctx, conv.ID, merged); err != nil {
			s.logger.Warn("保存对话上下文失败", "conversation_id", conv.ID, "error", err)
		}
	}

	return &Prepared{
		svc:      s,
		modelKey: key,
		release:  release,
		turn: agent.Turn{
			ConversationID: conv.ID,
			Message:        req.Content,
			Context:        merged,
			Model:          cm,
		},
	}, nil
}

// Snapshot 本回合的上下文
func (p *Prepared) Snapshot() map[string]any { return p.turn.Context.Clone() }

// ConversationID 对话 ID
func (p *Prepared) ConversationID() string { return p.turn.ConversationID }

// Release 放弃回合并释放会话锁
func (p *Prepared) Release() { p.release() }

// Run 执行回合并释放会话锁。回合与客户端连接解耦：客户端断开不会中断执行。
func (p *Prepared) Run(ctx context.Context, protocol string, sink agent.EventSink) (*agent.TurnResult, error) {
	defer p.release()
	s := p.svc
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracing.StartTurnSpan(ctx, p.turn.ConversationID, protocol)
	defer span.End()
	logger := s.logger.With("conversation_id", p.turn.ConversationID, "model", p.modelKey, "protocol", protocol)

	start := time.Now()
	defer func() {
		metrics.TurnDuration.WithLabelValues(protocol).Observe(time.Since(start).Seconds())
	}()

	sess, err := s.catalog.Begin(ctx)
	if err != nil {
		metrics.TurnTotal.WithLabelValues(agent.ReasonError).Inc()
		return nil, errors.Wrap(err, "begin catalog session")
	}
	done := false
	defer func() {
		if !done {
			_ = sess.Rollback(ctx)
		}
	}()

	turn := p.turn
	turn.Catalog = sess
	res, err := s.loop.Run(ctx, turn, sink)
	if err != nil {
		span.RecordError(err)
		metrics.TurnTotal.WithLabelValues(agent.ReasonError).Inc()
		return res, err
	}
	done = true
	if err := sess.Close(ctx); err != nil {
		logger.Warn("提交卡牌库会话失败", "error", err)
	}
	metrics.TurnTotal.WithLabelValues(res.Reason).Inc()
	return res, nil
}

// Send Prepare 与 Run 的组合，供非流式调用方使用
func (s *ChatService) Send(ctx context.Context, req SendRequest, protocol string, sink agent.EventSink) (*agent.TurnResult, error) {
	p, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, protocol, sink)
}
