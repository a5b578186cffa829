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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deck-agent/pkg/config"
)

const defaultConfigPath = "configs/api.yaml"

var rootCmd = &cobra.Command{
	Use:   "deck",
	Short: "deck 是 One Piece TCG 卡组构筑助手的命令行",
	Long: `deck 通过 HTTP API 与卡组助手对话，管理对话，
并在本地执行卡牌同步与规则知识库索引。`,
	SilenceUsage: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("api", "", "API 地址（默认读取 DECK_AGENT_API_URL，否则 http://localhost:8080）")
	rootCmd.PersistentFlags().String("config", defaultConfigPath, "配置文件路径（同目录下的 model.yaml 会被合并）")
}

func apiBaseURL(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("api"); u != "" {
		return u
	}
	if u := os.Getenv("DECK_AGENT_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.LoadWithModel(path)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	return cfg, nil
}
