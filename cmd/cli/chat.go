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
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type chatOptions struct {
	conversationID string
	provider       string
	model          string
	deckID         string
	message        string
	raw            bool
	verbose        bool
}

var chatOpts chatOptions

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "与卡组助手对话（未指定 --conversation 时新建对话）",
	Long: `chat 逐行读取输入并以 SSE 接收助手的回合：工具调用实时显示，
最终回答以 markdown 渲染。使用 -m 发送单条消息后退出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context(), newClient(apiBaseURL(cmd)), cmd.InOrStdin(), cmd.OutOrStdout(), chatOpts)
	},
}

func init() {
	f := chatCmd.Flags()
	f.StringVarP(&chatOpts.conversationID, "conversation", "c", "", "已有对话 ID")
	f.StringVar(&chatOpts.provider, "provider", "", "LLM 提供商")
	f.StringVar(&chatOpts.model, "model", "", "模型 key")
	f.StringVar(&chatOpts.deckID, "deck-id", "", "当前卡组 ID，写入对话上下文")
	f.StringVarP(&chatOpts.message, "message", "m", "", "发送单条消息后退出")
	f.BoolVar(&chatOpts.raw, "raw", false, "不渲染 markdown")
	f.BoolVarP(&chatOpts.verbose, "verbose", "v", false, "显示工具参数与结果")
	rootCmd.AddCommand(chatCmd)
}

func runChat(ctx context.Context, c *apiClient, in io.Reader, out io.Writer, opts chatOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var turnContext map[string]any
	if opts.deckID != "" {
		turnContext = map[string]any{"page": "deck_builder", "deck_id": opts.deckID}
	}

	id := opts.conversationID
	if id == "" {
		conv, err := c.createConversation(ctx, createConversationBody{
			Title:    "CLI chat",
			Context:  turnContext,
			Provider: opts.provider,
			Model:    opts.model,
		})
		if err != nil {
			return fmt.Errorf("创建对话失败: %w", err)
		}
		id = conv.ID
		fmt.Fprintf(out, "conversation: %s\n", id)
	}

	md := newMarkdownRenderer(opts.raw)
	send := func(text string) error {
		p := newTurnPrinter(out, md, opts.verbose)
		err := c.sendMessage(ctx, id, sendMessageBody{
			Content:  text,
			Provider: opts.provider,
			Model:    opts.model,
			Context:  turnContext,
		}, p.handle)
		if err != nil {
			return err
		}
		return p.finish()
	}

	if opts.message != "" {
		return send(opts.message)
	}

	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		msg := strings.TrimSpace(line)
		if msg == "exit" || msg == "quit" {
			return nil
		}
		if msg != "" {
			if serr := send(msg); serr != nil {
				fmt.Fprintf(out, "错误: %v\n", serr)
			}
			// 上下文只需随第一条消息写入
			turnContext = nil
		}
		if err != nil {
			fmt.Fprintln(out)
			return nil
		}
	}
}
