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

package secrets

import (
	"context"
	"os"
	"strings"

	"deck-agent/pkg/errors"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "DECK_AGENT_"

// EnvName 把 secret 路径映射为环境变量名："openai/api_key" -> "DECK_AGENT_OPENAI_API_KEY"
func EnvName(key string) string {
	name := strings.ToUpper(strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(strings.Trim(key, "/")))
	if strings.HasPrefix(name, EnvPrefix) {
		return name
	}
	return EnvPrefix + name
}

// envStore 以环境变量为后端，key 按 EnvName 映射
type envStore struct{}

// NewEnvStore 创建环境变量 secret store
func NewEnvStore() Store {
	return envStore{}
}

func (envStore) Get(_ context.Context, key string) (string, error) {
	name := EnvName(key)
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", errors.Wrapf(errors.ErrNotFound, "secret %s (env %s)", key, name)
	}
	return value, nil
}

func (envStore) Set(_ context.Context, key, value string) error {
	return os.Setenv(EnvName(key), value)
}

func (envStore) Delete(_ context.Context, key string) error {
	return os.Unsetenv(EnvName(key))
}
