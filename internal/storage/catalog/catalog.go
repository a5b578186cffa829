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

// Package catalog 卡牌 / Leader / 卡组的关系型存储：memory 与 postgres 两种实现
package catalog

import (
	"context"

	"deck-agent/internal/deck"
)

// 搜索条数限制
const (
	DefaultLimit = 15
	MaxLimit     = 25
)

// CardFilter 卡牌搜索条件；字符串条件为空表示不过滤
type CardFilter struct {
	Name         string // 名称子串，忽略大小写
	Color        string // 颜色子串，忽略大小写
	Type         string // 类型精确匹配，忽略大小写
	Category     string // 特征子串，忽略大小写
	SetCode      string // 系列精确匹配
	TextContains string // 效果文本子串，忽略大小写
	CostMin      *int
	CostMax      *int
	PowerMin     *int
	Limit        int
}

// LeaderFilter Leader 搜索条件
type LeaderFilter struct {
	Name     string
	Color    string // 必须出现在 Leader 颜色列表中
	Category string
	SetCode  string
	PowerMin *int
	Limit    int
}

// NormalizeLimit <=0 取默认 15，上限 25
func NormalizeLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

// Reader 只读查询；同时满足 deck.Lookup
type Reader interface {
	SearchCards(ctx context.Context, f CardFilter) ([]*deck.Card, error)
	SearchLeaders(ctx context.Context, f LeaderFilter) ([]*deck.Leader, error)
	LeaderByID(ctx context.Context, id string) (*deck.Leader, error)
	CardsByIDs(ctx context.Context, ids []string) (map[string]*deck.Card, error)
	// Deck 返回带 Leader 与卡牌明细的卡组，不存在时返回 ErrNotFound
	Deck(ctx context.Context, id string) (*deck.Deck, error)
}

// Session 单个对话回合独占的存储会话（postgres 下为事务）。
// 存储层失败后必须先 Rollback 才能继续使用。
type Session interface {
	Reader
	Rollback(ctx context.Context) error
	// Close 提交并释放会话
	Close(ctx context.Context) error
}

// Store 卡牌库
type Store interface {
	Reader
	Begin(ctx context.Context) (Session, error)
	UpsertCards(ctx context.Context, cards []*deck.Card) error
	UpsertLeaders(ctx context.Context, leaders []*deck.Leader) error
	SaveDeck(ctx context.Context, d *deck.Deck) error
	Close()
}

var _ deck.Lookup = Reader(nil)
