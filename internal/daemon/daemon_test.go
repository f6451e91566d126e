package daemon

import (
	"context"
	"errors"
	"testing"

	"github.com/kardianos/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	started chan struct{}
	err     error
}

func (r *fakeRunner) Run(ctx context.Context) error {
	close(r.started)
	<-ctx.Done()
	return r.err
}

func TestProgramStartStop(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{})}
	cleaned := false
	prg := &program{factory: func() (Runner, func(), error) {
		return runner, func() { cleaned = true }, nil
	}}

	require.NoError(t, prg.Start(nil))
	<-runner.started
	require.NoError(t, prg.Stop(nil))
	assert.True(t, cleaned)
}

func TestProgramStopReturnsRunError(t *testing.T) {
	runner := &fakeRunner{started: make(chan struct{}), err: errors.New("boom")}
	prg := &program{factory: func() (Runner, func(), error) {
		return runner, func() {}, nil
	}}

	require.NoError(t, prg.Start(nil))
	<-runner.started
	assert.EqualError(t, prg.Stop(nil), "boom")
}

func TestProgramStartFactoryError(t *testing.T) {
	prg := &program{factory: func() (Runner, func(), error) {
		return nil, nil, errors.New("加载配置失败")
	}}
	assert.Error(t, prg.Start(nil))
	assert.NoError(t, prg.Stop(nil))
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "运行中 (Running)", StatusText(service.StatusRunning))
	assert.Equal(t, "已停止 (Stopped)", StatusText(service.StatusStopped))
	assert.Equal(t, "未知 (Unknown)", StatusText(service.StatusUnknown))
}
