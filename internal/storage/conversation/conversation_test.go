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
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deck-agent/internal/storage/cache"
	"deck-agent/pkg/errors"
	"deck-agent/pkg/log"
)

func storeContract(t *testing.T, s Store) {
	ctx := context.Background()
	c := &Conversation{Title: "Zoro deck", Context: map[string]any{"deck_id": "d1"}}
	require.NoError(t, s.Create(ctx, c))
	require.NotEmpty(t, c.ID)

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "d1", got.Context["deck_id"])

	require.NoError(t, s.UpdateContext(ctx, c.ID, map[string]any{"deck_id": "d2", "page": "deck-builder"}))
	got, _ = s.Get(ctx, c.ID)
	assert.Equal(t, "deck-builder", got.Context["page"])

	for i := 0; i < 5; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		m, err := s.AppendMessage(ctx, &Message{ConversationID: c.ID, Role: role, Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		require.NotEmpty(t, m.ID)
		require.False(t, m.CreatedAt.IsZero())
	}

	all, err := s.Messages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "m0", all[0].Content)

	recent, err := s.History(ctx, c.ID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"m2", "m3", "m4"}, []string{recent[0].Content, recent[1].Content, recent[2].Content})

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	require.NoError(t, s.Delete(ctx, c.ID))
	_, err = s.Get(ctx, c.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, c.ID), errors.ErrNotFound)
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_AppendToMissingConversation(t *testing.T) {
	_, err := NewMemoryStore().AppendMessage(context.Background(), &Message{ConversationID: "nope", Role: RoleUser})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestCachedStore_Contract(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisStore(context.Background(), cache.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	storeContract(t, NewCachedStore(NewMemoryStore(), rc, time.Hour, log.Discard()))
}

func TestCachedStore_BackfillAndAppend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisStore(ctx, cache.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)

	base := NewMemoryStore()
	c := &Conversation{}
	require.NoError(t, base.Create(ctx, c))
	_, _ = base.AppendMessage(ctx, &Message{ConversationID: c.ID, Role: RoleUser, Content: "old"})

	s := NewCachedStore(base, rc, 2*time.Hour, log.Discard())
	// 缓存为空时不追加
	_, err = s.AppendMessage(ctx, &Message{ConversationID: c.ID, Role: RoleAssistant, Content: "reply"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(HistoryKey(c.ID)))

	hist, err := s.History(ctx, c.ID, 20)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, mr.Exists(HistoryKey(c.ID)), "history backfilled")
	assert.InDelta(t, (2 * time.Hour).Seconds(), mr.TTL(HistoryKey(c.ID)).Seconds(), 1)

	_, err = s.AppendMessage(ctx, &Message{ConversationID: c.ID, Role: RoleUser, Content: "new"})
	require.NoError(t, err)
	items, err := mr.List(HistoryKey(c.ID))
	require.NoError(t, err)
	assert.Len(t, items, 3)

	hist, err = s.History(ctx, c.ID, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "reply", hist[0].Content)
	assert.Equal(t, "new", hist[1].Content)

	require.NoError(t, s.Delete(ctx, c.ID))
	assert.False(t, mr.Exists(HistoryKey(c.ID)))
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisStore(ctx, cache.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	l := NewLocker(rc, 60*time.Second)

	release, err := l.Acquire(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, mr.Exists(LockKey("c1")))
	assert.Equal(t, 60*time.Second, mr.TTL(LockKey("c1")))

	_, err = l.Acquire(ctx, "c1")
	assert.ErrorIs(t, err, errors.ErrConflict)

	other, err := l.Acquire(ctx, "c2")
	require.NoError(t, err)
	other()

	release()
	release()
	assert.False(t, mr.Exists(LockKey("c1")))

	// 超时自动释放
	_, err = l.Acquire(ctx, "c1")
	require.NoError(t, err)
	mr.FastForward(61 * time.Second)
	release2, err := l.Acquire(ctx, "c1")
	require.NoError(t, err)
	release2()
}

func TestLocker_StaleReleaseDoesNotStealLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocker(cache.NewMemoryStore(), time.Millisecond)
	stale, err := l.Acquire(ctx, "c1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	fresh, err := l.Acquire(ctx, "c1")
	require.NoError(t, err)
	stale()
	_, err = l.Acquire(ctx, "c1")
	assert.ErrorIs(t, err, errors.ErrConflict, "stale release must not delete the new holder's lock")
	fresh()
}

func testDSN(t *testing.T) string {
	dsn := os.Getenv("TEST_CONVERSATION_DSN")
	if dsn == "" {
		t.Skip("TEST_CONVERSATION_DSN not set, skipping Postgres conversation tests")
	}
	return dsn
}

func TestStorePg_Contract(t *testing.T) {
	ctx := context.Background()
	s, err := NewStorePg(ctx, testDSN(t))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(ctx))
	storeContract(t, s)
}
