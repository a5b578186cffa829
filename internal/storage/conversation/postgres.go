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

package conversation

import (
	"context"
	_ "embed"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deck-agent/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// StorePg Postgres 实现
type StorePg struct {
	pool *pgxpool.Pool
}

// NewStorePg 创建基于 PostgreSQL 的对话存储
func NewStorePg(ctx context.Context, dsn string) (*StorePg, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &StorePg{pool: pool}, nil
}

// EnsureSchema 建表（幂等）
func (s *StorePg) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// Close 关闭连接池
func (s *StorePg) Close() {
	s.pool.Close()
}

func (s *StorePg) Create(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Context == nil {
		c.Context = map[string]any{}
	}
	cctx, _ := json.Marshal(c.Context)
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	c.IsActive = true
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, title, context, provider, model, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), TRUE, $6, $6)`,
		c.ID, c.Title, cctx, c.Provider, c.Model, now)
	return err
}

const conversationColumns = `id::text, title, context, COALESCE(provider,''), COALESCE(model,''), is_active, created_at, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	c := &Conversation{}
	var cctx []byte
	if err := row.Scan(&c.ID, &c.Title, &cctx, &c.Provider, &c.Model, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Context = map[string]any{}
	if len(cctx) > 0 {
		_ = json.Unmarshal(cctx, &c.Context)
	}
	return c, nil
}

func (s *StorePg) Get(ctx context.Context, id string) (*Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "conversation %s", id)
	}
	c, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "conversation %s", id)
	}
	return c, err
}

func (s *StorePg) List(ctx context.Context, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *StorePg) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.Wrapf(errors.ErrNotFound, "conversation %s", id)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errors.ErrNotFound, "conversation %s", id)
	}
	return nil
}

func (s *StorePg) UpdateContext(ctx context.Context, id string, ctxMap map[string]any) error {
	cctx, err := json.Marshal(ctxMap)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET context = $1, updated_at = now() WHERE id = $2`, cctx, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(errors.ErrNotFound, "conversation %s", id)
	}
	return nil
}

func (s *StorePg) AppendMessage(ctx context.Context, m *Message) (*Message, error) {
	out := *m
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	out.CreatedAt = time.Now()
	var toolCalls, meta []byte
	if len(out.ToolCalls) > 0 {
		toolCalls, _ = json.Marshal(out.ToolCalls)
	}
	if len(out.Metadata) > 0 {
		meta, _ = json.Marshal(out.Metadata)
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO messages (id, conversation_id, role, content, tool_calls, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			out.ID, out.ConversationID, out.Role, out.Content, toolCalls, meta, out.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE conversations SET updated_at = $1 WHERE id = $2`, out.CreatedAt, out.ConversationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

const messageColumns = `id::text, conversation_id::text, role, COALESCE(content,''), tool_calls, metadata, created_at`

func (s *StorePg) Messages(ctx context.Context, conversationID string) ([]*Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id = $1 ORDER BY created_at, seq`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *StorePg) History(ctx context.Context, conversationID string, window int) ([]*Message, error) {
	if window <= 0 {
		return s.Messages(ctx, conversationID)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT * FROM (
			SELECT `+messageColumns+`, seq FROM messages WHERE conversation_id = $1
			ORDER BY created_at DESC, seq DESC LIMIT $2
		 ) recent ORDER BY created_at, seq`, conversationID, window)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows, new(int64))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMessage(rows pgx.Rows, extra ...any) (*Message, error) {
	m := &Message{}
	var toolCalls, meta []byte
	dest := append([]any{&m.ID, &m.ConversationID, &m.Role, &m.Content, &toolCalls, &meta, &m.CreatedAt}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	if len(toolCalls) > 0 {
		_ = json.Unmarshal(toolCalls, &m.ToolCalls)
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &m.Metadata)
	}
	return m, nil
}

func scanMessages(rows pgx.Rows) ([]*Message, error) {
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
