// Package cmd 提供 luau-runner CLI 的命令实现
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"yqhp/luau-runner/pkg/logger"
)

const (
	// Version 是当前版本号
	Version = "0.1.0"
	// Banner 是版本信息的输出格式
	Banner = "luau-runner %s\n"
)

// globalOptions 保存全局 flags
type globalOptions struct {
	configFile string
	envFile    string
	debug      bool
	quiet      bool
}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "luau-runner",
		Short: "在 Roblox Open Cloud 上执行 Luau 测试",
		Long: `luau-runner 上传测试二进制文件，创建 Luau 执行会话任务，
等待任务结束后输出任务日志和测试结果。`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// 全局 flags
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", ".env 文件路径")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "启用调试日志")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "静默模式，只输出错误和 Luau 输出")

	// 禁用默认的 completion 命令
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version))

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute 执行根命令并返回进程退出码
func Execute() int {
	return execute(NewRootCmd(), os.Args[1:])
}

func execute(rootCmd *cobra.Command, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	// flag 解析等在运行前发生的错误
	logger.Fatal("%v", err)
	return ExitFatal
}
