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
	"time"

	"github.com/google/uuid"

	"deck-agent/internal/storage/cache"
	"deck-agent/pkg/errors"
)

// Locker 会话级互斥锁：SET NX EX，超时自动释放；只释放自己持有的锁
type Locker struct {
	cache cache.Store
	ttl   time.Duration
}

// NewLocker 创建会话锁
func NewLocker(c cache.Store, ttl time.Duration) *Locker {
	return &Locker{cache: c, ttl: ttl}
}

// LockKey 锁键
func LockKey(conversationID string) string {
	return "conv:" + conversationID + ":lock"
}

// Acquire 获取锁；已被占用时返回 errors.ErrConflict。
// 返回的 release 可重复调用，不受 ctx 取消影响。
func (l *Locker) Acquire(ctx context.Context, conversationID string) (release func(), err error) {
	token := uuid.New().String()
	ok, err := l.cache.SetNX(ctx, LockKey(conversationID), token, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(errors.ErrConflict, "conversation %s is locked", conversationID)
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, _ = l.cache.CompareAndDelete(rctx, LockKey(conversationID), token)
	}, nil
}
