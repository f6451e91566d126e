package esclient

import (
	"context"
	"encoding/json"
	"sync"
)

// InspectEntry 一次查询的调试记录
type InspectEntry struct {
	OperationName string          `json:"operationName"`
	Params        any             `json:"params"`
	Response      json.RawMessage `json:"response,omitempty"`
	Duration      int64           `json:"duration"` // 毫秒
	EsError       string          `json:"esError,omitempty"`
}

// Inspector 收集单个请求内发出的查询
type Inspector struct {
	mu      sync.Mutex
	entries []InspectEntry
}

func (i *Inspector) add(e InspectEntry) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = append(i.entries, e)
}

// Entries 返回已收集的记录
func (i *Inspector) Entries() []InspectEntry {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]InspectEntry, len(i.entries))
	copy(out, i.entries)
	return out
}

type inspectorKey struct{}

// WithInspector 在 context 上挂载查询收集器
func WithInspector(ctx context.Context) (context.Context, *Inspector) {
	in := &Inspector{}
	return context.WithValue(ctx, inspectorKey{}, in), in
}

func inspectorFrom(ctx context.Context) *Inspector {
	in, _ := ctx.Value(inspectorKey{}).(*Inspector)
	return in
}

// Inspecting 当前请求是否在收集查询
func Inspecting(ctx context.Context) bool {
	return inspectorFrom(ctx) != nil
}

type titleKey struct{}

// WithDebugTitle 设置调试日志标题（通常为 "METHOD /route"）
func WithDebugTitle(ctx context.Context, title string) context.Context {
	return context.WithValue(ctx, titleKey{}, title)
}

func debugTitle(ctx context.Context, fallback string) string {
	if title, ok := ctx.Value(titleKey{}).(string); ok && title != "" {
		return title
	}
	return fallback
}
