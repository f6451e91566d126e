package fetcher

import (
	"context"
	"errors"
	"sync"
	"time"
)

type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ErrSuperseded 本次请求已被更新的请求取代，结果不会提交
var ErrSuperseded = errors.New("fetch superseded by a newer request")

// State 某一时刻的获取状态快照
type State[T any] struct {
	Status    Status    `json:"status"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	err       error
}

// Err 最近一次失败的原始错误
func (s State[T]) Err() error {
	return s.err
}

// Func 数据获取函数
type Func[T any] func(ctx context.Context) (T, error)

// Fetcher 三态数据获取器，只有最后一次发起的请求会提交结果
type Fetcher[T any] struct {
	mu     sync.Mutex
	fn     Func[T]
	gen    uint64
	cancel context.CancelFunc
	state  State[T]
}

func New[T any](fn Func[T]) *Fetcher[T] {
	return &Fetcher[T]{
		fn:    fn,
		state: State[T]{Status: StatusLoading},
	}
}

// Fetch 发起一次获取，之前未完成的请求会被取消
// 失败时保留上一次成功的数据
func (f *Fetcher[T]) Fetch(ctx context.Context) (T, error) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	gen := f.gen
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.state.Status = StatusLoading
	f.state.Error = ""
	f.state.err = nil
	f.mu.Unlock()

	data, err := f.fn(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	cancel()
	if gen != f.gen {
		var zero T
		return zero, ErrSuperseded
	}
	f.cancel = nil
	f.state.UpdatedAt = time.Now()
	if err != nil {
		f.state.Status = StatusFailure
		f.state.Error = err.Error()
		f.state.err = err
		return data, err
	}
	f.state.Status = StatusSuccess
	f.state.Data = data
	return data, nil
}

// State 返回当前状态快照
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Close 取消正在进行的请求，之后它的结果不会再提交
func (f *Fetcher[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.gen++
}
