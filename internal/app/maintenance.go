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

	"deck-agent/internal/cardsync"
)

// SyncCards 从 optcgapi 同步卡牌与 Leader 到卡牌库
func (b *Bootstrap) SyncCards(ctx context.Context) (*cardsync.Stats, error) {
	cfg := b.Config.CardSync
	client := cardsync.New(cardsync.Config{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.TimeoutDuration(),
		Concurrency: cfg.Concurrency,
		Logger:      b.Logger.Logger,
	})
	return client.Sync(ctx, b.Catalog)
}

// IndexKnowledge 索引规则文档目录；dir 为空时使用 knowledge.dir
func (b *Bootstrap) IndexKnowledge(ctx context.Context, dir string) (int, error) {
	if b.Knowledge == nil {
		return 0, fmt.Errorf("知识库未配置（需要 model.defaults.embedding）")
	}
	if dir == "" {
		dir = b.Config.Knowledge.Dir
	}
	if dir == "" {
		return 0, fmt.Errorf("未指定知识文档目录")
	}
	return b.Knowledge.IndexDir(ctx, dir)
}
