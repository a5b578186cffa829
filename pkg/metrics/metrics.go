package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 与 CLI 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		TurnDuration, TurnTotal,
		ToolDuration, ToolFailTotal,
		LoopIterations, LockConflictTotal,
		LLMTokensTotal, RateLimitWaitSeconds,
	)
}

// TurnDuration 单个对话回合耗时（秒）
var TurnDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "deck_agent_turn_duration_seconds",
		Help:    "对话回合耗时（秒）",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	},
	[]string{"protocol"}, // plain | agui
)

// TurnTotal 回合总数（按结束原因）
var TurnTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deck_agent_turn_total",
		Help: "回合总数（按结束原因）",
	},
	[]string{"reason"}, // answer | terminal | budget | error
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "deck_agent_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// ToolFailTotal 工具失败次数（执行错误或 panic）
var ToolFailTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deck_agent_tool_fail_total",
		Help: "工具失败次数",
	},
	[]string{"tool"},
)

// LoopIterations 每次循环实际迭代次数
var LoopIterations = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "deck_agent_loop_iterations",
		Help:    "循环迭代次数",
		Buckets: []float64{1, 2, 3, 5, 8, 12, 15},
	},
	[]string{"loop"}, // main | query_data | modify_deck | strategy
)

// LockConflictTotal 会话锁冲突次数（409）
var LockConflictTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "deck_agent_lock_conflict_total",
		Help: "会话锁冲突次数",
	},
)

// LLMTokensTotal LLM 调用 token 数
var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "deck_agent_llm_tokens_total",
		Help: "LLM 调用 token 总数",
	},
	[]string{"direction"}, // input | output
)

// RateLimitWaitSeconds 限流等待耗时（秒），仅记录超过 100ms 的等待
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "deck_agent_rate_limit_wait_seconds",
		Help:    "限流等待耗时（秒）",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"provider"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
