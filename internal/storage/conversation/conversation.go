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

// Package conversation 对话与消息存储、Redis 历史缓存与会话级互斥锁
package conversation

import (
	"context"
	"time"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Conversation 对话
type Conversation struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Context   map[string]any `json:"context"`
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Message 对话消息，写入后不可变；历史顺序只由 CreatedAt 决定
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	ToolCalls      []ToolCall     `json:"tool_calls,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ToolCall 消息中记录的工具调用
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Store 对话存储
type Store interface {
	Create(ctx context.Context, c *Conversation) error
	// Get 不存在时返回 errors.ErrNotFound
	Get(ctx context.Context, id string) (*Conversation, error)
	List(ctx context.Context, limit int) ([]*Conversation, error)
	Delete(ctx context.Context, id string) error
	UpdateContext(ctx context.Context, id string, context map[string]any) error
	// AppendMessage 追加消息，补全 ID 与 CreatedAt 后返回
	AppendMessage(ctx context.Context, m *Message) (*Message, error)
	// Messages 按时间正序返回全部消息
	Messages(ctx context.Context, conversationID string) ([]*Message, error)
	// History 返回最近 window 条消息（正序）
	History(ctx context.Context, conversationID string, window int) ([]*Message, error)
	Close()
}
