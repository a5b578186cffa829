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

// Package grpc 提供 gRPC 健康检查服务，供负载均衡与编排系统探测回合服务是否可用
package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChatServiceName 对话回合服务在健康检查中的名字
const ChatServiceName = "deck_agent.Chat"

// Server gRPC 健康检查服务端
type Server struct {
	health *health.Server
}

// NewServer 创建健康检查服务，初始为 NOT_SERVING，依赖就绪后调用 SetServing
func NewServer() *Server {
	s := &Server{health: health.NewServer()}
	s.SetServing(false)
	return s
}

// Register 注册到 grpc.Server
func (s *Server) Register(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, s.health)
}

// SetServing 同时更新整体状态与对话服务状态
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ChatServiceName, status)
}

// Shutdown 标记全部服务为 NOT_SERVING 并拒绝后续状态变更
func (s *Server) Shutdown() {
	s.health.Shutdown()
}
