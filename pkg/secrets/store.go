// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Store Secret 存储接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error
}

// Config Secret Store 配置
type Config struct {
	Provider string      `mapstructure:"provider"` // vault | env | memory
	Vault    VaultConfig `mapstructure:"vault"`
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// Resolve 解析配置中的密钥引用：
//
//	vault:openai/api_key  从 store 读取
//	${OPENAI_API_KEY}     从环境变量读取，未设置时原样返回
//	其他                  视为明文
func Resolve(ctx context.Context, store Store, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "vault:"):
		if store == nil {
			return "", fmt.Errorf("secret %q requires a secret store", ref)
		}
		return store.Get(ctx, strings.TrimPrefix(ref, "vault:"))
	case strings.HasPrefix(ref, "${") && strings.HasSuffix(ref, "}"):
		if v := os.Getenv(ref[2 : len(ref)-1]); v != "" {
			return v, nil
		}
		return ref, nil
	default:
		return ref, nil
	}
}
