package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dushixiang/apmview/internal/app"
	"github.com/dushixiang/apmview/internal/config"

	"github.com/kardianos/service"
	"github.com/spf13/afero"
)

// Runner 进程的启动与退出
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFactory 在服务启动时组装进程，返回清理函数
type RunnerFactory func() (Runner, func(), error)

// program 实现 service.Interface
type program struct {
	factory RunnerFactory
	cancel  context.CancelFunc
	done    chan error
	cleanup func()
}

// Start 启动服务
func (p *program) Start(s service.Service) error {
	runner, cleanup, err := p.factory()
	if err != nil {
		return err
	}
	p.cleanup = cleanup

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- runner.Run(ctx)
	}()
	return nil
}

// Stop 停止服务
func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	var err error
	if p.done != nil {
		err = <-p.done
	}
	if p.cleanup != nil {
		p.cleanup()
	}
	return err
}

// AppFactory 从配置文件组装服务端进程
func AppFactory(configPath string) RunnerFactory {
	return func() (Runner, func(), error) {
		conf, err := config.NewHolder(afero.NewOsFs(), configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("加载配置失败: %w", err)
		}
		a, cleanup, err := app.InitializeApp(conf)
		if err != nil {
			return nil, nil, err
		}
		return a, cleanup, nil
	}
}

// Manager 系统服务管理器
type Manager struct {
	program *program
	service service.Service
}

// NewManager 创建服务管理器
func NewManager(configPath string, factory RunnerFactory) (*Manager, error) {
	// 获取可执行文件路径
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	args := []string{"service", "run"}
	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}

	svcConfig := &service.Config{
		Name:        "apmview",
		DisplayName: "APM View",
		Description: "APM 数据查询与图表服务",
		Arguments:   args,
		Executable:  execPath,
		Option: service.KeyValue{
			// Linux systemd 配置
			"Restart":    "always",
			"RestartSec": "10",
			"KillMode":   "process",

			// Windows 配置
			"OnFailure":    "restart",
			"RestartDelay": 10000,

			// 其他 Unix 系统 (upstart/launchd)
			"KeepAlive": true,
			"RunAtLoad": true,
		},
	}

	prg := &program{factory: factory}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		return nil, fmt.Errorf("创建服务失败: %w", err)
	}
	return &Manager{program: prg, service: s}, nil
}

// Install 安装服务
func (m *Manager) Install() error {
	return m.service.Install()
}

// Uninstall 卸载服务
func (m *Manager) Uninstall() error {
	// 先停止服务
	_ = m.service.Stop()
	return m.service.Uninstall()
}

// Start 启动服务
func (m *Manager) Start() error {
	return m.service.Start()
}

// Stop 停止服务
func (m *Manager) Stop() error {
	return m.service.Stop()
}

// Restart 重启服务
func (m *Manager) Restart() error {
	return m.service.Restart()
}

// Status 查看服务状态
func (m *Manager) Status() (string, error) {
	status, err := m.service.Status()
	if err != nil {
		return "", err
	}
	return StatusText(status), nil
}

// StatusText 服务状态的展示文本
func StatusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "运行中 (Running)"
	case service.StatusStopped:
		return "已停止 (Stopped)"
	case service.StatusUnknown:
		return "未知 (Unknown)"
	default:
		return fmt.Sprintf("状态: %d", status)
	}
}

// Run 运行服务，交互模式下在前台运行直到收到中断信号
func (m *Manager) Run() error {
	if !service.Interactive() {
		// 在服务管理器控制下运行
		return m.service.Run()
	}
	return RunForeground(m.program.factory)
}

// RunForeground 前台运行，收到中断信号后退出
func RunForeground(factory RunnerFactory) error {
	runner, cleanup, err := factory()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runner.Run(ctx)
}
