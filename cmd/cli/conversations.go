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
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "管理对话",
}

var convListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出对话（按更新时间倒序）",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		convs, err := newClient(apiBaseURL(cmd)).listConversations(cmd.Context(), limit, offset)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPROVIDER\tUPDATED")
		for _, c := range convs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Title, c.Provider, c.UpdatedAt.Local().Format(time.DateTime))
		}
		return w.Flush()
	},
}

var convCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "新建对话并输出 ID",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := createConversationBody{}
		if len(args) == 1 {
			body.Title = args[0]
		}
		body.Provider, _ = cmd.Flags().GetString("provider")
		body.Model, _ = cmd.Flags().GetString("model")
		if deckID, _ := cmd.Flags().GetString("deck-id"); deckID != "" {
			body.Context = map[string]any{"page": "deck_builder", "deck_id": deckID}
		}
		conv, err := newClient(apiBaseURL(cmd)).createConversation(cmd.Context(), body)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), conv.ID)
		return nil
	},
}

var convShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "显示对话及其消息",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := newClient(apiBaseURL(cmd)).getConversation(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", conv.ID, conv.Title)
		for _, m := range conv.Messages {
			fmt.Fprintf(out, "\n[%s] %s\n%s\n", m.Role, m.CreatedAt.Local().Format(time.DateTime), m.Content)
		}
		return nil
	},
}

var convDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "删除对话",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient(apiBaseURL(cmd)).deleteConversation(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
		return nil
	},
}

func init() {
	convListCmd.Flags().Int("limit", 20, "返回条数")
	convListCmd.Flags().Int("offset", 0, "偏移量")
	convCreateCmd.Flags().String("provider", "", "LLM 提供商")
	convCreateCmd.Flags().String("model", "", "模型 key")
	convCreateCmd.Flags().String("deck-id", "", "当前卡组 ID")
	conversationsCmd.AddCommand(convListCmd, convCreateCmd, convShowCmd, convDeleteCmd)
	rootCmd.AddCommand(conversationsCmd)
}
