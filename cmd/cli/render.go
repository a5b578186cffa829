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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"deck-agent/internal/agent"
)

// markdownRenderer glamour 渲染；初始化失败或 raw 模式下原样输出
type markdownRenderer struct {
	r *glamour.TermRenderer
}

func newMarkdownRenderer(raw bool) *markdownRenderer {
	if raw {
		return &markdownRenderer{}
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return &markdownRenderer{}
	}
	return &markdownRenderer{r: r}
}

func (m *markdownRenderer) render(text string) string {
	if m.r == nil {
		return text + "\n"
	}
	out, err := m.r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// turnPrinter 把一个回合的 SSE 事件打印为进度行，回合结束时渲染最终回答
type turnPrinter struct {
	out      io.Writer
	md       *markdownRenderer
	verbose  bool
	answer   strings.Builder
	final    string
	failures []string
}

func newTurnPrinter(out io.Writer, md *markdownRenderer, verbose bool) *turnPrinter {
	return &turnPrinter{out: out, md: md, verbose: verbose}
}

func (p *turnPrinter) handle(event, data string) error {
	switch event {
	case agent.EventThinking:
		var e agent.ThinkingEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return err
		}
		for _, t := range e.Thoughts {
			fmt.Fprintf(p.out, "  · %s\n", t)
		}
	case agent.EventToolUse:
		var e agent.ToolUseEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return err
		}
		if p.verbose {
			args, _ := json.Marshal(e.Args)
			fmt.Fprintf(p.out, "  → %s %s\n", e.Tool, args)
		} else {
			fmt.Fprintf(p.out, "  → %s\n", e.Tool)
		}
	case agent.EventToolResult:
		var e agent.ToolResultEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return err
		}
		if kind, _ := e.ActionData["type"].(string); kind != "" {
			fmt.Fprintf(p.out, "  ✓ %s: %s\n", e.Tool, kind)
		}
		if p.verbose {
			fmt.Fprintf(p.out, "    %s\n", strings.ReplaceAll(e.Result, "\n", "\n    "))
		}
	case agent.EventToken:
		var e agent.TokenEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return err
		}
		p.answer.WriteString(e.Text)
	case agent.EventDone:
		var e agent.DoneEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return err
		}
		p.final = e.FullText
	case agent.EventError:
		var e agent.ErrorEvent
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return err
		}
		p.failures = append(p.failures, e.Detail)
		fmt.Fprintf(p.out, "  ✗ %s\n", e.Detail)
	}
	return nil
}

// text 最终回答：优先 done 事件中的全文，否则为累计的 token
func (p *turnPrinter) text() string {
	if p.final != "" {
		return p.final
	}
	return p.answer.String()
}

// finish 渲染回答；回合无任何回答时返回错误
func (p *turnPrinter) finish() error {
	text := p.text()
	if text == "" {
		if len(p.failures) > 0 {
			return fmt.Errorf("回合失败: %s", p.failures[len(p.failures)-1])
		}
		return fmt.Errorf("回合没有返回回答")
	}
	fmt.Fprint(p.out, p.md.render(text))
	return nil
}
