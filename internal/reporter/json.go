package reporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"yqhp/luau-runner/pkg/logger"
)

// JSONFile writes the report as an indented JSON document.
type JSONFile struct {
	path string
}

// NewJSONFile creates a reporter writing to path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Name returns the reporter name.
func (r *JSONFile) Name() string {
	return "json"
}

// Report writes report to the file, replacing any previous content.
func (r *JSONFile) Report(_ context.Context, report *Report) error {
	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化报告失败: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}

	if err := os.WriteFile(r.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	logger.Info("Wrote run report to %s", r.path)
	return nil
}
