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
	"io"
	"sort"

	"github.com/spf13/cobra"

	"deck-agent/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "显示配置概要（不输出密钥）",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "api.host=%s\n", cfg.API.Host)
	fmt.Fprintf(w, "api.port=%d\n", cfg.API.Port)
	fmt.Fprintf(w, "agent.max_iterations=%d\n", cfg.Agent.MaxIterations)
	fmt.Fprintf(w, "agent.sub_agent_iterations=%d\n", cfg.Agent.SubAgentIterations)
	fmt.Fprintf(w, "agent.planner_iterations=%d\n", cfg.Agent.PlannerIterations)
	fmt.Fprintf(w, "storage.catalog=%s\n", orDefault(cfg.Storage.Catalog.Type, "memory"))
	fmt.Fprintf(w, "storage.conversation=%s\n", orDefault(cfg.Storage.Conversation.Type, "memory"))
	fmt.Fprintf(w, "storage.cache=%s\n", orDefault(cfg.Storage.Cache.Type, "memory"))
	fmt.Fprintf(w, "storage.vector=%s\n", orDefault(cfg.Storage.Vector.Type, "memory"))
	fmt.Fprintf(w, "model.defaults.llm=%s\n", cfg.Model.Defaults.LLM)
	fmt.Fprintf(w, "model.defaults.embedding=%s\n", cfg.Model.Defaults.Embedding)
	providers := make([]string, 0, len(cfg.Model.LLM.Providers))
	for name := range cfg.Model.LLM.Providers {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	for _, name := range providers {
		pc := cfg.Model.LLM.Providers[name]
		models := make([]string, 0, len(pc.Models))
		for key := range pc.Models {
			models = append(models, key)
		}
		sort.Strings(models)
		fmt.Fprintf(w, "model.llm.%s=%v key_set=%t\n", name, models, pc.APIKey != "")
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
