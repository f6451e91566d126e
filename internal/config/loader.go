package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Load 读取 YAML 配置文件，未设置的字段使用默认值
func Load(fs afero.Fs, path string) (*AppConfig, error) {
	cfg := Default()
	if path == "" {
		return &cfg, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("Elasticsearch.Addresses 不能为空")
	}
	if c.APM.BucketTargetCount <= 0 || c.APM.ChartBucketTargetCount <= 0 {
		return fmt.Errorf("目标桶数必须为正数")
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("不支持的数据库类型: %s", c.Database.Type)
	}
	return nil
}

// Holder 持有当前配置，支持热更新
type Holder struct {
	fs      afero.Fs
	path    string
	current atomic.Pointer[AppConfig]

	mu        sync.Mutex
	listeners []func(cfg *AppConfig)
}

// NewHolder 加载配置文件并创建 Holder
func NewHolder(fs afero.Fs, path string) (*Holder, error) {
	cfg, err := Load(fs, path)
	if err != nil {
		return nil, err
	}
	h := &Holder{fs: fs, path: path}
	h.current.Store(cfg)
	return h, nil
}

// Static 使用给定配置创建 Holder（不关联文件）
func Static(cfg AppConfig) *Holder {
	h := &Holder{fs: afero.NewMemMapFs()}
	h.current.Store(&cfg)
	return h
}

// Get 当前配置
func (h *Holder) Get() *AppConfig {
	return h.current.Load()
}

// Reload 重新读取配置文件
// 只有 APM、ML、UI 与 Elasticsearch.Debug 会热更新，其余字段需要重启生效
func (h *Holder) Reload() (*AppConfig, error) {
	next, err := Load(h.fs, h.path)
	if err != nil {
		return nil, err
	}
	merged := *h.Get()
	merged.APM = next.APM
	merged.ML = next.ML
	merged.UI = next.UI
	merged.Elasticsearch.Debug = next.Elasticsearch.Debug
	h.current.Store(&merged)

	h.mu.Lock()
	listeners := append([]func(cfg *AppConfig){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(&merged)
	}
	return &merged, nil
}

// OnReload 注册热更新回调，在新配置生效后按注册顺序调用
func (h *Holder) OnReload(fn func(cfg *AppConfig)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// Watch 监听配置文件变化并热更新，调用方负责 Close 返回的 watcher
func (h *Holder) Watch(logger *zap.Logger) (*fsnotify.Watcher, error) {
	if h.path == "" {
		return nil, nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// 监听目录而不是文件，编辑器保存时常会替换文件
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(h.path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if _, err := h.Reload(); err != nil {
					logger.Warn("配置热更新失败", zap.String("path", h.path), zap.Error(err))
					continue
				}
				logger.Info("配置已热更新", zap.String("path", h.path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("监听配置文件出错", zap.Error(err))
			}
		}
	}()
	return watcher, nil
}
