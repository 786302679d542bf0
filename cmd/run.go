package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/spf13/cobra"

	"yqhp/luau-runner/internal/artifact"
	"yqhp/luau-runner/internal/config"
	"yqhp/luau-runner/internal/execution"
	"yqhp/luau-runner/internal/metrics"
	"yqhp/luau-runner/internal/opencloud"
	"yqhp/luau-runner/internal/reporter"
	"yqhp/luau-runner/pkg/logger"
)

// runFlags 把 run 命令的 flag 映射到配置路径
var runFlags = map[string]string{
	"binary":           "task.binary",
	"script":           "task.script",
	"timeout":          "task.timeout",
	"api-base-url":     "api.base_url",
	"universe-id":      "api.universe_id",
	"place-id":         "api.place_id",
	"place-version":    "api.place_version",
	"artifact":         "artifact.path",
	"out-json":         "report.json_path",
	"webhook":          "report.webhook_url",
	"metrics-textfile": "metrics.textfile_path",
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "上传测试二进制文件并执行 Luau 脚本",
		Long: `上传测试二进制文件，创建 Luau 执行会话任务，轮询直到任务结束，
然后输出任务日志和测试结果。

退出码：
  0   所有测试通过
  1   任务完成但测试失败
  2   致命错误（配置、网络、任务失败等）
  130 被信号中断`,
		Example: `  # 基本执行 (ROBLOX_API_KEY 从环境变量或 .env 读取)
  luau-runner run --binary test.rbxm --script runner.luau --universe-id 1 --place-id 2

  # 指定超时和 place 版本
  luau-runner run --script runner.luau --timeout 5m --place-version 12

  # 输出 JSON 结果和 Prometheus 指标文件
  luau-runner run --script runner.luau --out-json results.json --metrics-textfile luau.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts)
		},
	}

	f := runCmd.Flags()
	f.String("binary", "", "测试二进制文件路径 (默认 test.rbxm)")
	f.String("script", "", "Luau 脚本文件路径")
	f.Duration("timeout", 0, "任务超时时间 (默认 10s)")
	f.String("api-base-url", "", "Open Cloud API 地址")
	f.Int64("universe-id", 0, "Universe ID")
	f.Int64("place-id", 0, "Place ID")
	f.Int64("place-version", 0, "Place 版本 (0 表示最新版本)")
	f.String("artifact", "", "上传前保存测试二进制文件副本的路径")
	f.String("out-json", "", "输出 JSON 结果到文件")
	f.String("webhook", "", "运行结束后发送结果的 Webhook URL")
	f.String("metrics-textfile", "", "写入 Prometheus 指标的 textfile 路径")

	return runCmd
}

// cmdArgs 收集显式设置的 flag
func cmdArgs(cmd *cobra.Command, opts *globalOptions) map[string]string {
	args := make(map[string]string)
	for name, key := range runFlags {
		if cmd.Flags().Changed(name) {
			args[key] = cmd.Flags().Lookup(name).Value.String()
		}
	}
	switch {
	case opts.debug:
		args["logging.level"] = "debug"
	case opts.quiet:
		args["logging.level"] = "error"
	}
	return args
}

func runTests(cmd *cobra.Command, opts *globalOptions) error {
	start := time.Now()

	cfg, err := config.NewLoader().
		WithConfigPath(opts.configFile).
		WithEnvFile(opts.envFile).
		WithCmdArgs(cmdArgs(cmd, opts)).
		Load()
	if err != nil {
		return fatal(err)
	}
	if err := config.Validate(cfg); err != nil {
		return fatal(err)
	}

	log := newLogger(cmd, cfg.Logging)
	restore := logger.Replace(log)
	defer restore()
	defer log.Sync()

	payload, err := os.ReadFile(cfg.Task.Binary)
	if err != nil {
		return fatal(fmt.Errorf("failed to read test binary: %w", err))
	}
	script, err := os.ReadFile(cfg.Task.Script)
	if err != nil {
		return fatal(fmt.Errorf("failed to read script: %w", err))
	}

	runID := uuid.NewString()
	logger.Debug("Run ID: %s", runID)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := opencloud.New(&opencloud.Config{
		BaseURL:        cfg.API.BaseURL,
		APIKey:         cfg.API.APIKey,
		RequestTimeout: cfg.API.RequestTimeout,
		RateLimit:      cfg.API.RateLimit,
		RateBurst:      cfg.API.RateBurst,
		UserAgent:      "luau-runner/" + Version,
	})
	defer client.Close()

	collector := metrics.NewCollector(cfg.Metrics.Namespace)
	client.SetObserver(collector)

	pipeline := &execution.Pipeline{
		Stager: execution.NewStager(client, cfg.API.UniverseID),
		Spawner: execution.NewSpawner(client, opencloud.PlaceRef{
			UniverseID: cfg.API.UniverseID,
			PlaceID:    cfg.API.PlaceID,
			Version:    cfg.API.PlaceVersion,
		}),
		Poller: execution.NewPoller(client, execution.PollConfig{
			InitialDelay: cfg.Poll.InitialDelay,
			MaxDelay:     cfg.Poll.MaxDelay,
			Multiplier:   cfg.Poll.Multiplier,
		}, execution.WithPollHook(collector.ObservePoll)),
		Streamer: execution.NewLogStreamer(client, log.Sink(), cfg.Logs.Suppress),
		Task: execution.TaskSpec{
			Script:        string(script),
			Timeout:       cfg.Task.Timeout,
			CaptureOutput: cfg.Task.EnableBinaryOutput,
		},
		Recorder: collector,
	}
	if archiver := newArchiver(cfg.Artifact, cfg.Task.Binary, runID); archiver.Len() > 0 {
		pipeline.Archiver = archiver
	}

	summary, runErr := pipeline.Run(ctx, payload)
	code := ExitCode(summary, runErr)

	report := reporter.NewReport(runID, summary, runErr, code, time.Since(start))
	reporters := newReporters(cfg.Report, log)
	defer reporters.Close()
	logger.Debug("Publishing run report to %d reporters", reporters.Len())
	if err := reporters.Report(context.WithoutCancel(ctx), report); err != nil {
		logger.Warn("Failed to publish run report")
		logger.Warn("Error: %v", err)
	}

	if path := cfg.Metrics.TextfilePath; path != "" {
		if err := collector.WriteTextfile(path); err != nil {
			logger.Warn("%v", err)
		}
	}

	if runErr != nil {
		logger.Fatal("%v", runErr)
		return &exitError{code: code, err: runErr}
	}
	if code != ExitSuccess {
		return &exitError{code: code}
	}
	return nil
}

// fatal 记录致命错误并返回对应的退出码
func fatal(err error) error {
	logger.Fatal("%v", err)
	return &exitError{code: ExitFatal, err: err}
}

func newLogger(cmd *cobra.Command, cfg config.LoggingConfig) *logger.Logger {
	lc := &logger.Config{}
	if err := copier.Copy(lc, &cfg); err != nil {
		lc = logger.DefaultConfig()
	}
	if w := cmd.ErrOrStderr(); w != os.Stderr {
		return logger.NewWithWriter(lc, w)
	}
	return logger.New(lc)
}

func newArchiver(cfg config.ArtifactConfig, binary, runID string) *artifact.Archiver {
	var stores []artifact.Store
	if cfg.Path != "" {
		stores = append(stores, artifact.NewFileStore(cfg.Path))
	}
	if cfg.S3.Enabled() {
		var s3 artifact.S3Config
		err := copier.Copy(&s3, &cfg.S3)
		var store *artifact.ObjectStore
		if err == nil {
			store, err = artifact.NewObjectStore(s3, runID)
		}
		if err != nil {
			logger.Warn("Failed to set up object storage; artifact will not be archived there")
			logger.Warn("Error: %v", err)
		} else {
			stores = append(stores, store)
		}
	}
	return artifact.NewArchiver(filepath.Base(binary), stores...)
}

func newReporters(cfg config.ReportConfig, log *logger.Logger) *reporter.Manager {
	m := reporter.NewManager(reporter.NewConsole(log))
	if cfg.JSONPath != "" {
		m.Add(reporter.NewJSONFile(cfg.JSONPath))
	}
	if cfg.WebhookURL != "" {
		wc := reporter.DefaultWebhookConfig()
		wc.URL = cfg.WebhookURL
		wc.Timeout = cfg.WebhookTimeout
		m.Add(reporter.NewWebhook(wc))
	}
	return m
}
