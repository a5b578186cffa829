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

// devops 启动 Eino Dev 调试服务并注册知识库的切片 / 入库 Chain，供 IDE 插件（Eino Dev）连接后进行可视化调试。
// 使用：go run ./cmd/devops [configs/api.yaml]；在 IDE 中配置连接地址 127.0.0.1:52538 后选择编排进行 Test Run。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino-ext/devops"

	"deck-agent/internal/app"
	"deck-agent/internal/knowledge"
	"deck-agent/pkg/config"
)

func configPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return "configs/api.yaml"
}

func main() {
	ctx := context.Background()

	// 必须在任何 Compile 之前调用
	if err := devops.Init(ctx); err != nil {
		log.Fatalf("[eino dev] init failed: %v", err)
	}

	cfg, err := config.LoadWithModel(configPath())
	if err != nil {
		log.Fatalf("[eino dev] 加载配置失败: %v", err)
	}

	if _, err := knowledge.NewSplitChain(ctx, knowledge.NewSplitter(cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)); err != nil {
		log.Fatalf("[eino dev] register split chain: %v", err)
	}

	// Bootstrap 内部编译 knowledge_ingest；未配置 embedding 时只有切片 Chain 可用
	b, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("[eino dev] bootstrap: %v", err)
	}
	defer b.Close()
	if b.Knowledge == nil {
		log.Printf("[eino dev] %s 未注册：知识库未配置", knowledge.IngestGraphName)
	}

	log.Println("[eino dev] server listening on 127.0.0.1:52538; open Eino Dev in IDE and configure this address to debug")
	log.Println("[eino dev] press Ctrl+C to exit")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Println("[eino dev] shutting down")
}
