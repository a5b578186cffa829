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

package deck

import (
	"sort"
	"strings"
)

// Colors 合法颜色
var Colors = []string{"Red", "Green", "Blue", "Purple", "Black", "Yellow"}

func isColor(s string) bool {
	for _, c := range Colors {
		if c == s {
			return true
		}
	}
	return false
}

// ParseColors 解析颜色字符串：兼容逗号分隔（"Red,Blue"）与空格分隔（"Green Red"）；
// 空格分隔时只保留合法颜色，全部不合法时整体作为一个颜色返回。结果去重并排序。
func ParseColors(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	set := map[string]struct{}{}
	if strings.Contains(s, ",") {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				set[p] = struct{}{}
			}
		}
	} else {
		for _, tok := range strings.Fields(s) {
			if isColor(tok) {
				set[tok] = struct{}{}
			}
		}
		if len(set) == 0 {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Subset colors 是否全部包含在 allowed 中
func Subset(colors, allowed []string) bool {
	for _, c := range colors {
		found := false
		for _, a := range allowed {
			if strings.TrimSpace(a) == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
