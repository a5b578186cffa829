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

// Package prompts 内置的提示词模板
package prompts

import (
	"embed"
	"strings"
)

//go:embed *.md
var files embed.FS

// 模板名
const (
	SystemRole          = "system_role.md"
	SystemRules         = "system_rules.md"
	SystemCommunication = "system_communication.md"
	SystemTips          = "system_tips.md"
	StrategyAgent       = "strategy_agent.md"
	DataAgent           = "data_agent.md"
	UIAgent             = "ui_agent.md"
)

// SectionSeparator 提示词各段之间的分隔
const SectionSeparator = "\n\n---\n\n"

// Load 读取模板，不存在时返回空串
func Load(name string) string {
	b, err := files.ReadFile(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// Join 用分隔符拼接非空段落
func Join(sections ...string) string {
	kept := sections[:0:0]
	for _, s := range sections {
		if strings.TrimSpace(s) != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, SectionSeparator)
}
