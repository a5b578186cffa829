// Copyright 2026 fanjia1024
// HashiCorp Vault secret store

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"deck-agent/pkg/errors"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`     // 如 http://vault:8200
	Token      string `mapstructure:"token"`       // 为空时使用 VAULT_TOKEN
	PathPrefix string `mapstructure:"path_prefix"` // 如 "secret/data/deck-agent"
}

type vaultStore struct {
	client     *vault.Client
	pathPrefix string
}

// NewVaultStore 创建 Vault secret store
func NewVaultStore(config VaultConfig) (Store, error) {
	if config.Address == "" {
		config.Address = "http://localhost:8200"
	}

	cfg := vault.DefaultConfig()
	cfg.Address = config.Address

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}

	return &vaultStore{
		client:     client,
		pathPrefix: strings.TrimSuffix(config.PathPrefix, "/"),
	}, nil
}

// valueFields 依次尝试的字段名
var valueFields = []string{"value", "api_key", "key"}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.buildPath(key))
	if err != nil {
		return "", fmt.Errorf("读取 vault secret %s 失败: %w", key, err)
	}
	if secret == nil || secret.Data == nil {
		return "", errors.Wrapf(errors.ErrNotFound, "vault secret %s", key)
	}
	data := secret.Data
	// KV v2 把实际数据放在 data.data 下
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}
	for _, f := range valueFields {
		if val, ok := data[f].(string); ok && val != "" {
			return val, nil
		}
	}
	return "", errors.Wrapf(errors.ErrNotFound, "vault secret %s 缺少 %v 字段", key, valueFields)
}

func (v *vaultStore) Set(ctx context.Context, key, value string) error {
	payload := map[string]interface{}{"value": value}
	if v.kv2() {
		payload = map[string]interface{}{"data": payload}
	}
	if _, err := v.client.Logical().WriteWithContext(ctx, v.buildPath(key), payload); err != nil {
		return fmt.Errorf("写入 vault secret %s 失败: %w", key, err)
	}
	return nil
}

func (v *vaultStore) Delete(ctx context.Context, key string) error {
	if _, err := v.client.Logical().DeleteWithContext(ctx, v.buildPath(key)); err != nil {
		return fmt.Errorf("删除 vault secret %s 失败: %w", key, err)
	}
	return nil
}

// kv2 前缀形如 secret/data/... 时按 KV v2 写入
func (v *vaultStore) kv2() bool {
	return strings.Contains(v.pathPrefix+"/", "/data/")
}

func (v *vaultStore) buildPath(key string) string {
	key = strings.TrimPrefix(key, "/")
	if v.pathPrefix == "" {
		return key
	}
	return v.pathPrefix + "/" + key
}
