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

// Package http 对话 API 的 Hertz 处理器与路由
package http

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/sse"

	"deck-agent/internal/agent"
	"deck-agent/internal/api/protocol"
	appcore "deck-agent/internal/app"
	"deck-agent/internal/model"
	"deck-agent/internal/storage/conversation"
	"deck-agent/pkg/errors"
	"deck-agent/pkg/metrics"
)

// 分页默认值与上限
const (
	defaultConversationLimit = 20
	maxConversationLimit     = 100
	defaultMessageLimit      = 50
	maxMessageLimit          = 200
)

const errConversationNotFound = "Conversation not found"

// ProviderLister 列出可选模型
type ProviderLister interface {
	Providers() []model.ProviderInfo
}

// Handler HTTP 处理器
type Handler struct {
	chat      *appcore.ChatService
	providers ProviderLister
	// defaultProvider 新建对话未指定提供商时使用
	defaultProvider string
}

// NewHandler 创建 HTTP 处理器；providers 可为 nil
func NewHandler(chat *appcore.ChatService, providers ProviderLister, defaultProvider string) *Handler {
	return &Handler{chat: chat, providers: providers, defaultProvider: defaultProvider}
}

func (h *Handler) conversations() conversation.Store { return h.chat.Conversations() }

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "deck-agent",
	})
}

// Metrics Prometheus 指标
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(c, "write metrics failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "metrics unavailable"})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// ListProviders 已配置的模型提供商
func (h *Handler) ListProviders(c context.Context, ctx *app.RequestContext) {
	if h.providers == nil {
		ctx.JSON(consts.StatusOK, []model.ProviderInfo{})
		return
	}
	ctx.JSON(consts.StatusOK, h.providers.Providers())
}

// queryInt 解析分页参数；非法值用默认值，超出上限截断
func queryInt(ctx *app.RequestContext, key string, def, max int) int {
	v, err := strconv.Atoi(ctx.DefaultQuery(key, ""))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// writeError 按错误类别映射状态码
func writeError(c context.Context, ctx *app.RequestContext, err error, notFound string) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		ctx.JSON(consts.StatusNotFound, map[string]string{"error": notFound})
	case errors.Is(err, errors.ErrConflict):
		ctx.JSON(consts.StatusConflict, map[string]string{"error": "Another message is being processed for this conversation"})
	case errors.Is(err, errors.ErrInvalidArg):
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		hlog.CtxErrorf(c, "request failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

type createConversationRequest struct {
	Title    string         `json:"title"`
	Context  map[string]any `json:"context"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
}

// CreateConversation 新建对话
func (h *Handler) CreateConversation(c context.Context, ctx *app.RequestContext) {
	var req createConversationRequest
	if len(ctx.Request.Body()) > 0 {
		if err := ctx.BindJSON(&req); err != nil {
			ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}
	if req.Provider == "" {
		req.Provider = h.defaultProvider
	}
	conv := &conversation.Conversation{
		Title:    req.Title,
		Context:  req.Context,
		Provider: req.Provider,
		Model:    req.Model,
		IsActive: true,
	}
	if err := h.conversations().Create(c, conv); err != nil {
		writeError(c, ctx, err, errConversationNotFound)
		return
	}
	ctx.JSON(consts.StatusOK, conv)
}

// ListConversations 按更新时间倒序列出对话
func (h *Handler) ListConversations(c context.Context, ctx *app.RequestContext) {
	limit := queryInt(ctx, "limit", defaultConversationLimit, maxConversationLimit)
	offset := queryInt(ctx, "offset", 0, 0)
	convs, err := h.conversations().List(c, offset+limit)
	if err != nil {
		writeError(c, ctx, err, errConversationNotFound)
		return
	}
	ctx.JSON(consts.StatusOK, page(convs, offset, limit))
}

type conversationWithMessages struct {
	*conversation.Conversation
	Messages []*conversation.Message `json:"messages"`
}

// GetConversation 对话详情，附带全部消息
func (h *Handler) GetConversation(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("id")
	conv, err := h.conversations().Get(c, id)
	if err != nil {
		writeError(c, ctx, err, errConversationNotFound)
		return
	}
	msgs, err := h.conversations().Messages(c, id)
	if err != nil {
		writeError(c, ctx, err, errConversationNotFound)
		return
	}
	if msgs == nil {
		msgs = []*conversation.Message{}
	}
	ctx.JSON(consts.StatusOK, conversationWithMessages{Conversation: conv, Messages: msgs})
}

// DeleteConversation 删除对话及其消息
func (h *Handler) DeleteConversation(c context.Context, ctx *app.RequestContext) {
	if err := h.conversations().Delete(c, ctx.Param("id")); err != nil {
		writeError(c, ctx, err, errConversationNotFound)
		return
	}
	ctx.Status(consts.StatusNoContent)
}

// ListMessages 按时间正序分页列出消息
func (h *Handler) ListMessages(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("id")
	if _, err := h.conversations().Get(c, id); err != nil {
		writeError(c, ctx, err, errConversationNotFound)
		return
	}
	limit := queryInt(ctx, "limit", defaultMessageLimit, maxMessageLimit)
	offset := queryInt(ctx, "offset", 0, 0)
	msgs, err := h.conversations().Messages(c, id)
	if err != nil {
		writeError(c, ctx, err, errConversationNotFound)
		return
	}
	ctx.JSON(consts.StatusOK, page(msgs, offset, limit))
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

type sendMessageRequest struct {
	Content  string         `json:"content"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Context  map[string]any `json:"context"`
}

// prepare 解析请求并锁定对话；失败时已写出响应
func (h *Handler) prepare(c context.Context, ctx *app.RequestContext) (*appcore.Prepared, bool) {
	var req sendMessageRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, false
	}
	p, err := h.chat.Prepare(c, appcore.SendRequest{
		ConversationID: ctx.Param("id"),
		Content:        req.Content,
		Provider:       req.Provider,
		Model:          req.Model,
		Context:        req.Context,
	})
	if err != nil {
		writeError(c, ctx, err, errConversationNotFound)
		return nil, false
	}
	return p, true
}

// SendMessage 发送消息，以 plain SSE 流式返回内部事件
func (h *Handler) SendMessage(c context.Context, ctx *app.RequestContext) {
	p, ok := h.prepare(c, ctx)
	if !ok {
		return
	}
	stream := sse.NewStream(ctx)
	adapter := protocol.NewPlain(stream, nil)
	adapter.Run(func(sink agent.EventSink) error {
		_, err := p.Run(c, protocol.NamePlain, sink)
		return err
	})
}

// SendMessageAGUI 发送消息，以 AG-UI 事件流返回
func (h *Handler) SendMessageAGUI(c context.Context, ctx *app.RequestContext) {
	p, ok := h.prepare(c, ctx)
	if !ok {
		return
	}
	stream := sse.NewStream(ctx)
	adapter := protocol.NewAGUI(stream, p.ConversationID(), nil)
	adapter.Run(p.Snapshot(), func(sink agent.EventSink) error {
		_, err := p.Run(c, protocol.NameAGUI, sink)
		return err
	})
}
