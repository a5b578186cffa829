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

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"deck-agent/pkg/secrets"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Model      ModelConfig      `mapstructure:"model"`
	Storage    StorageConfig    `mapstructure:"storage"`
	CardSync   CardSyncConfig   `mapstructure:"card_sync"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge"`
	Secrets    secrets.Config   `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
}

// RateLimitsConfig 限流配置（LLM Provider）
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// AgentConfig 对话 Agent 循环配置，零值在 Normalize 中补默认
type AgentConfig struct {
	MaxIterations      int    `mapstructure:"max_iterations"`       // 主循环预算，默认 15
	SubAgentIterations int    `mapstructure:"sub_agent_iterations"` // query_data / modify_deck 预算，默认 5
	PlannerIterations  int    `mapstructure:"planner_iterations"`   // 策略规划预算，默认 8
	HistoryWindow      int    `mapstructure:"history_window"`       // 注入上下文的历史消息条数，默认 20
	ResultPreview      int    `mapstructure:"result_preview"`       // tool_result 事件中结果截断长度，默认 500
	RecallLimit        int    `mapstructure:"recall_limit"`         // 知识召回条数，默认 3
	LockTTL            string `mapstructure:"lock_ttl"`             // 会话锁超时，默认 60s
	HistoryTTL         string `mapstructure:"history_ttl"`          // Redis 历史缓存 TTL，默认 2h
}

// 默认值
const (
	DefaultMaxIterations      = 15
	DefaultSubAgentIterations = 5
	DefaultPlannerIterations  = 8
	DefaultHistoryWindow      = 20
	DefaultResultPreview      = 500
	DefaultRecallLimit        = 3
	DefaultLockTTL            = 60 * time.Second
	DefaultHistoryTTL         = 2 * time.Hour
)

// Normalize 填充缺省值
func (a *AgentConfig) Normalize() {
	if a.MaxIterations <= 0 {
		a.MaxIterations = DefaultMaxIterations
	}
	if a.SubAgentIterations <= 0 {
		a.SubAgentIterations = DefaultSubAgentIterations
	}
	if a.PlannerIterations <= 0 {
		a.PlannerIterations = DefaultPlannerIterations
	}
	if a.HistoryWindow <= 0 {
		a.HistoryWindow = DefaultHistoryWindow
	}
	if a.ResultPreview <= 0 {
		a.ResultPreview = DefaultResultPreview
	}
	if a.RecallLimit <= 0 {
		a.RecallLimit = DefaultRecallLimit
	}
}

// LockTTLDuration 解析 LockTTL
func (a AgentConfig) LockTTLDuration() time.Duration {
	return parseDuration(a.LockTTL, DefaultLockTTL)
}

// HistoryTTLDuration 解析 HistoryTTL
func (a AgentConfig) HistoryTTLDuration() time.Duration {
	return parseDuration(a.HistoryTTL, DefaultHistoryTTL)
}

// TimeoutDuration 解析卡牌同步超时，默认 60s
func (c CardSyncConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Grpc       GrpcConfig       `mapstructure:"grpc"`
}

// GrpcConfig gRPC 健康检查服务配置
type GrpcConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	RateLimit    bool `mapstructure:"rate_limit"`
	RateLimitRPS int  `mapstructure:"rate_limit_rps"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置；api_key 支持 ${ENV} 与 vault:path
type ProviderConfig struct {
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name          string  `mapstructure:"name"`
	ContextWindow int     `mapstructure:"context_window"`
	Temperature   float64 `mapstructure:"temperature"`
	Dimension     int     `mapstructure:"dimension"`
	MaxTokens     int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型，格式 provider.model_key
type DefaultsConfig struct {
	LLM       string `mapstructure:"llm"`
	Embedding string `mapstructure:"embedding"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Catalog      DatabaseConfig `mapstructure:"catalog"`
	Conversation DatabaseConfig `mapstructure:"conversation"`
	Vector       VectorConfig   `mapstructure:"vector"`
	Cache        CacheConfig    `mapstructure:"cache"`
}

// DatabaseConfig 关系型存储配置
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`
	PoolSize int    `mapstructure:"pool_size"`
}

// VectorConfig 向量存储配置（memory 为内置内存；redis 使用 eino-ext 组件）
type VectorConfig struct {
	Type       string `mapstructure:"type"`
	Addr       string `mapstructure:"addr"`
	DB         string `mapstructure:"db"`
	Collection string `mapstructure:"collection"`
	Password   string `mapstructure:"password"`
}

// CacheConfig 缓存配置（会话锁与历史缓存）
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// CardSyncConfig 卡牌同步配置
type CardSyncConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Timeout     string `mapstructure:"timeout"`
	Concurrency int    `mapstructure:"concurrency"`
}

// KnowledgeConfig 知识库配置
type KnowledgeConfig struct {
	Dir            string  `mapstructure:"dir"` // 规则文档目录（.md / .pdf）
	ChunkSize      int     `mapstructure:"chunk_size"`
	ChunkOverlap   int     `mapstructure:"chunk_overlap"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}
	config.Agent.Normalize()

	if err := replaceEnvVars(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// replaceEnvVars 替换配置中的 ${ENV} 引用（vault: 引用留给 ResolveSecrets）
func replaceEnvVars(config *Config) error {
	for _, providers := range []map[string]ProviderConfig{
		config.Model.LLM.Providers,
		config.Model.Embedding.Providers,
	} {
		for name, pc := range providers {
			if strings.HasPrefix(pc.APIKey, "$") {
				envVar := strings.TrimPrefix(strings.TrimSuffix(pc.APIKey, "}"), "${")
				if val := os.Getenv(envVar); val != "" {
					pc.APIKey = val
					providers[name] = pc
				}
			}
		}
	}
	config.Storage.Catalog.DSN = os.ExpandEnv(config.Storage.Catalog.DSN)
	config.Storage.Conversation.DSN = os.ExpandEnv(config.Storage.Conversation.DSN)
	return nil
}

// ResolveSecrets 通过 secret store 解析 vault: 形式的 API Key
func ResolveSecrets(ctx context.Context, config *Config, store secrets.Store) error {
	for _, providers := range []map[string]ProviderConfig{
		config.Model.LLM.Providers,
		config.Model.Embedding.Providers,
	} {
		for name, pc := range providers {
			if !strings.HasPrefix(pc.APIKey, "vault:") {
				continue
			}
			val, err := secrets.Resolve(ctx, store, pc.APIKey)
			if err != nil {
				return fmt.Errorf("解析 %s 的 API Key 失败: %w", name, err)
			}
			pc.APIKey = val
			providers[name] = pc
		}
	}
	return nil
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadAPIConfigWithModel 加载 API 配置并合并同目录下的 model.yaml
func LoadAPIConfigWithModel() (*Config, error) {
	return LoadWithModel("configs/api.yaml")
}

// LoadWithModel 加载 path 并合并同目录 model.yaml 中的 model / rate_limits
func LoadWithModel(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(filepath.Dir(path), "model.yaml")
	modelCfg, err := LoadConfig(modelPath)
	if err == nil {
		cfg.Model = modelCfg.Model
		if len(modelCfg.RateLimits.LLM) > 0 {
			cfg.RateLimits = modelCfg.RateLimits
		}
	}
	return cfg, nil
}

// ParseModelKey 解析 "provider.model_key"
func ParseModelKey(key string) (provider, model string, ok bool) {
	provider, model, ok = strings.Cut(key, ".")
	if !ok || provider == "" || model == "" {
		return "", "", false
	}
	return provider, model, true
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
