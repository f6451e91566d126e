package main

import (
	"fmt"
	"os"

	"github.com/dushixiang/apmview/internal/app"
	"github.com/dushixiang/apmview/internal/config"
	"github.com/dushixiang/apmview/internal/daemon"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// 构建时通过 -ldflags 注入
var (
	version = "dev"
	commit  = "none"
)

var configPath string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "apmview",
		Short:         "APM 数据查询与图表服务",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径，为空时使用默认配置")

	root.AddCommand(serveCmd(), migrateCmd(), versionCmd(), serviceCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "前台运行服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return daemon.RunForeground(daemon.AppFactory(configPath))
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.NewHolder(afero.NewOsFs(), configPath)
			if err != nil {
				return fmt.Errorf("加载配置失败: %w", err)
			}
			a, cleanup, err := app.InitializeApp(conf)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.Migrate()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "apmview %s (%s)\n", version, commit)
		},
	}
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "管理系统服务",
	}

	action := func(use, short string, fn func(m *daemon.Manager) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := daemon.NewManager(configPath, daemon.AppFactory(configPath))
				if err != nil {
					return err
				}
				return fn(m)
			},
		}
	}

	cmd.AddCommand(
		action("install", "安装服务", (*daemon.Manager).Install),
		action("uninstall", "卸载服务", (*daemon.Manager).Uninstall),
		action("start", "启动服务", (*daemon.Manager).Start),
		action("stop", "停止服务", (*daemon.Manager).Stop),
		action("restart", "重启服务", (*daemon.Manager).Restart),
		action("run", "由服务管理器调用", (*daemon.Manager).Run),
		&cobra.Command{
			Use:   "status",
			Short: "查看服务状态",
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := daemon.NewManager(configPath, daemon.AppFactory(configPath))
				if err != nil {
					return err
				}
				status, err := m.Status()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), status)
				return nil
			},
		},
	)
	return cmd
}
