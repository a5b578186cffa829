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

package einoext

import (
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"deck-agent/pkg/config"
)

// RedisOptionsFromVectorConfig 构造向量库使用的 redis.Options
func RedisOptionsFromVectorConfig(cfg config.VectorConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Addr, Password: cfg.Password}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if cfg.DB != "" {
		db, err := strconv.Atoi(cfg.DB)
		if err != nil || db < 0 {
			return nil, fmt.Errorf("invalid vector.db %q", cfg.DB)
		}
		opts.DB = db
	}
	// FT.SEARCH 结果解析依赖 RESP2
	opts.Protocol = 2
	opts.UnstableResp3 = true
	return opts, nil
}
