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
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"deck-agent/internal/app"
)

var syncCardsCmd = &cobra.Command{
	Use:   "sync-cards",
	Short: "从 optcgapi 同步卡牌与 Leader 到卡牌库",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := localBootstrap(cmd)
		if err != nil {
			return err
		}
		defer b.Close()
		stats, err := b.SyncCards(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cards synced: %d\nleaders synced: %d\nerrors: %d\n",
			stats.Cards, stats.Leaders, stats.Errors)
		return nil
	},
}

var indexKnowledgeCmd = &cobra.Command{
	Use:   "index-knowledge [dir]",
	Short: "切片并索引规则文档（.md / .pdf）",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		b, err := localBootstrap(cmd)
		if err != nil {
			return err
		}
		defer b.Close()
		n, err := b.IndexKnowledge(cmd.Context(), dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed chunks: %d\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCardsCmd, indexKnowledgeCmd)
}

func localBootstrap(cmd *cobra.Command) (*app.Bootstrap, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return app.NewBootstrap(ctx, cfg)
}
