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

package cache

import (
	"context"
	"time"
)

// Store 缓存存储接口：KV、带超时的互斥键与追加列表
type Store interface {
	// Set 设置缓存，value 以 JSON 存储；expiration<=0 表示不过期
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 获取缓存并反序列化到 dest，不存在时返回 errors.ErrNotFound
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存，不存在时不报错
	Delete(ctx context.Context, key string) error
	// Exists 检查缓存是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// SetNX 键不存在时写入原始值，返回是否写入成功
	SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)
	// CompareAndDelete 仅当当前值等于 value 时删除，返回是否删除
	CompareAndDelete(ctx context.Context, key string, value string) (bool, error)
	// ListAppend 追加到列表尾部并刷新过期时间
	ListAppend(ctx context.Context, key string, expiration time.Duration, values ...[]byte) error
	// ListRange 读取列表 [start, stop]，负数下标从尾部计数
	ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	// Close 关闭缓存连接
	Close() error
}
