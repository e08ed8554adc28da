// Package telemetry 把每次过渡导出为 OpenTelemetry span。
// 只有设置了 OTEL_EXPORTER_OTLP_ENDPOINT 才会真正导出，否则使用 no-op tracer
package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"gridpointer/motion"
)

const (
	// SpanTween 过渡 span 名称
	SpanTween = "gridpointer.tween"

	defaultServiceName = "gridpointer"
)

// Tracer 记录过渡的开始与结束；同一时刻最多只有一个进行中的过渡
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   oteltrace.Tracer
	enabled  bool

	active oteltrace.Span
}

// New 根据环境变量创建 Tracer；未配置端点时返回 no-op 实现
func New(ctx context.Context) (*Tracer, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return NewWithTracer(noop.NewTracerProvider().Tracer(defaultServiceName)), nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure()}
	if strings.Contains(endpoint, "://") {
		opts = []otlptracehttp.Option{otlptracehttp.WithEndpointURL(endpoint)}
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	serviceName := os.Getenv("OTEL_SERVICE_NAME")
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer("gridpointer/motion"),
		enabled:  true,
	}, nil
}

// NewWithTracer 使用给定 tracer（测试中传入内存导出器的 tracer）
func NewWithTracer(t oteltrace.Tracer) *Tracer {
	return &Tracer{tracer: t}
}

// Enabled 是否导出到 OTLP 端点
func (t *Tracer) Enabled() bool { return t != nil && t.enabled }

// TweenStarted 开始一个过渡 span；上一个未结束的 span 会被标记为中断并结束
func (t *Tracer) TweenStarted(at time.Time, tr *motion.Transition) {
	if t == nil || tr == nil {
		return
	}
	if t.active != nil {
		t.active.SetAttributes(attribute.Bool("gridpointer.interrupted", true))
		t.active.End(oteltrace.WithTimestamp(at))
	}
	_, span := t.tracer.Start(context.Background(), SpanTween,
		oteltrace.WithTimestamp(at),
		oteltrace.WithAttributes(
			attribute.Int("gridpointer.from.col", tr.From.Col),
			attribute.Int("gridpointer.from.row", tr.From.Row),
			attribute.Int("gridpointer.to.col", tr.To.Col),
			attribute.Int("gridpointer.to.row", tr.To.Row),
			attribute.Bool("gridpointer.dash", tr.Dash),
			attribute.Bool("gridpointer.analog", tr.Analog),
			attribute.Int64("gridpointer.duration_ms", tr.Duration.Milliseconds()),
		),
	)
	t.active = span
}

// TweenFinished 结束当前过渡 span
func (t *Tracer) TweenFinished(at time.Time, tr *motion.Transition) {
	if t == nil || tr == nil || t.active == nil {
		return
	}
	t.active.End(oteltrace.WithTimestamp(at))
	t.active = nil
}

// Shutdown 结束未完成的 span 并刷新导出器
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if t.active != nil {
		t.active.End()
		t.active = nil
	}
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}
