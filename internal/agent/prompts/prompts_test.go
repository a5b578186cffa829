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

package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	for _, name := range []string{SystemRole, SystemRules, SystemCommunication, SystemTips, StrategyAgent, DataAgent, UIAgent} {
		assert.NotEmpty(t, Load(name), name)
	}
	assert.Empty(t, Load("missing.md"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a\n\n---\n\nb", Join("a", "  ", "", "b"))
	assert.Equal(t, "", Join())
}
