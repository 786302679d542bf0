package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultSuppressedLogs lists log substrings that are dropped from the
// streamed task output.
var DefaultSuppressedLogs = []string{"Failed to load sound"}

// Config represents the complete configuration for a runner invocation.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Task     TaskConfig     `yaml:"task"`
	Poll     PollConfig     `yaml:"poll"`
	Logs     LogsConfig     `yaml:"logs"`
	Artifact ArtifactConfig `yaml:"artifact"`
	Report   ReportConfig   `yaml:"report"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds Open Cloud connection settings.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url" env:"LR_API_BASE_URL"`
	APIKey         string        `yaml:"api_key" env:"ROBLOX_API_KEY"`
	UniverseID     int64         `yaml:"universe_id" env:"LR_UNIVERSE_ID"`
	PlaceID        int64         `yaml:"place_id" env:"LR_PLACE_ID"`
	PlaceVersion   int64         `yaml:"place_version" env:"LR_PLACE_VERSION"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"LR_API_REQUEST_TIMEOUT"`
	RateLimit      float64       `yaml:"rate_limit" env:"LR_API_RATE_LIMIT"`
	RateBurst      int           `yaml:"rate_burst" env:"LR_API_RATE_BURST"`
}

// TaskConfig describes the task that is spawned.
type TaskConfig struct {
	Binary             string        `yaml:"binary" env:"LR_TASK_BINARY"`
	Script             string        `yaml:"script" env:"LR_TASK_SCRIPT"`
	Timeout            time.Duration `yaml:"timeout" env:"LR_TASK_TIMEOUT"`
	EnableBinaryOutput bool          `yaml:"enable_binary_output" env:"LR_TASK_ENABLE_BINARY_OUTPUT"`
}

// PollConfig holds the task status backoff.
type PollConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay" env:"LR_POLL_INITIAL_DELAY"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"LR_POLL_MAX_DELAY"`
	Multiplier   float64       `yaml:"multiplier" env:"LR_POLL_MULTIPLIER"`
}

// LogsConfig controls log streaming.
type LogsConfig struct {
	Suppress []string `yaml:"suppress" env:"LR_LOGS_SUPPRESS"`
}

// ArtifactConfig controls where a copy of the uploaded payload is kept.
type ArtifactConfig struct {
	Path string   `yaml:"path" env:"LR_ARTIFACT_PATH"`
	S3   S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible object storage settings. Archiving is
// disabled when Endpoint or Bucket is empty.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"LR_S3_ENDPOINT"`
	Bucket    string `yaml:"bucket" env:"LR_S3_BUCKET"`
	Prefix    string `yaml:"prefix" env:"LR_S3_PREFIX"`
	Region    string `yaml:"region" env:"LR_S3_REGION"`
	AccessKey string `yaml:"access_key" env:"LR_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"LR_S3_SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"LR_S3_USE_SSL"`
}

// Enabled reports whether S3 archiving is configured.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// ReportConfig holds summary reporter settings.
type ReportConfig struct {
	JSONPath       string        `yaml:"json_path" env:"LR_REPORT_JSON_PATH"`
	WebhookURL     string        `yaml:"webhook_url" env:"LR_REPORT_WEBHOOK_URL"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout" env:"LR_REPORT_WEBHOOK_TIMEOUT"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	Namespace    string `yaml:"namespace" env:"LR_METRICS_NAMESPACE"`
	TextfilePath string `yaml:"textfile_path" env:"LR_METRICS_TEXTFILE_PATH"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LR_LOG_LEVEL"`
	Format     string `yaml:"format" env:"LR_LOG_FORMAT"`
	Output     string `yaml:"output" env:"LR_LOG_OUTPUT"`
	Color      string `yaml:"color" env:"LR_LOG_COLOR"`
	FilePath   string `yaml:"file_path" env:"LR_LOG_FILE_PATH"`
	MaxSize    int    `yaml:"max_size" env:"LR_LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"LR_LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"LR_LOG_MAX_AGE"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://apis.roblox.com",
			RateBurst: 1,
		},
		Task: TaskConfig{
			Binary:             "test.rbxm",
			Timeout:            10 * time.Second,
			EnableBinaryOutput: true,
		},
		Poll: PollConfig{
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
		},
		Logs: LogsConfig{
			Suppress: append([]string(nil), DefaultSuppressedLogs...),
		},
		Report: ReportConfig{
			WebhookTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Namespace: "luau_runner",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			Color:      "auto",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envFile    string
	cmdArgs    map[string]string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		cmdArgs: make(map[string]string),
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvFile sets a dotenv file whose variables are loaded before the
// environment is read.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// WithCmdArgs sets command-line arguments for configuration override.
// Keys use dot notation, e.g. "poll.max_delay".
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < .env file < environment variables < command-line flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if l.envFile != "" {
		if err := l.loadEnvFile(); err != nil {
			return nil, fmt.Errorf("加载 .env 文件失败: %w", err)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	if err := l.applyCmdOverrides(cfg); err != nil {
		return nil, fmt.Errorf("应用命令行参数覆盖失败: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	return nil
}

// loadEnvFile exports the dotenv file into the process environment.
// Variables that are already set win; a missing file is ignored.
func (l *Loader) loadEnvFile() error {
	if err := godotenv.Load(l.envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	return l.applyEnvToStruct(reflect.ValueOf(cfg).Elem())
}

// applyEnvToStruct recursively applies environment variables to struct fields.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("从环境变量 %s 设置字段 %s 失败: %w", envTag, fieldType.Name, err)
		}
	}

	return nil
}

// applyCmdOverrides applies command-line argument overrides to the configuration.
func (l *Loader) applyCmdOverrides(cfg *Config) error {
	for key, value := range l.cmdArgs {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("设置配置值 %s 失败: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a configuration value by dot-notation path. Path
// segments match either the yaml tag or the Go field name.
func setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		field, ok := lookupField(v, part)
		if !ok {
			return fmt.Errorf("未知的配置路径: %s", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}

		if field.Kind() != reflect.Struct {
			return fmt.Errorf("期望 %s 是结构体，实际是 %s", part, field.Kind())
		}
		v = field
	}

	return nil
}

func lookupField(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	flat := strings.ReplaceAll(name, "_", "")
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("yaml"), ",")[0]
		if tag == name || strings.EqualFold(f.Name, flat) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("无效的时间格式: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("无效的整数: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("无效的浮点数: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		// comma-separated
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("不支持的切片类型: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}

	return nil
}

// Serialize serializes the configuration to YAML bytes.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration from bytes.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}
