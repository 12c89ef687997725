// Package config provides configuration management for Gravity.
// Values come from built-in defaults, an optional YAML file, an optional
// .env file and finally the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort          = 8787
	DefaultLogLevel      = "info"
	DefaultDataDir       = ".gravity"
	DefaultServiceURL    = "http://localhost:8000"
	DefaultPollInterval  = 1500 * time.Millisecond
	DefaultMaxAttempts   = 300
	DefaultHistoryLimit  = 50
	DefaultTickInterval  = 33 * time.Millisecond
	DefaultLogMaxSizeMB  = 50
	DefaultLogMaxBackups = 5
	DefaultLogMaxAgeDays = 28
	DefaultMinioBucket   = "gravity-projects"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultChatBackend   = ChatBackendService
	DefaultMCPPath       = "/mcp"
	DefaultEnvFile       = ".env"
	ChatBackendService   = "service"
	ChatBackendOpenAI    = "openai"

	// Environment variable names
	EnvConfigPath    = "GRAVITY_CONFIG_PATH"
	EnvEnvFile       = "GRAVITY_ENV_FILE"
	EnvPort          = "GRAVITY_PORT"
	EnvLogLevel      = "GRAVITY_LOG_LEVEL"
	EnvLogFile       = "GRAVITY_LOG_FILE"
	EnvLogMaxSizeMB  = "GRAVITY_LOG_MAX_SIZE_MB"
	EnvLogMaxBackups = "GRAVITY_LOG_MAX_BACKUPS"
	EnvLogMaxAgeDays = "GRAVITY_LOG_MAX_AGE_DAYS"
	EnvDataDir       = "GRAVITY_DATA_DIR"
	EnvMediaDir      = "GRAVITY_MEDIA_DIR"
	EnvProjectsDir   = "GRAVITY_PROJECTS_DIR"
	EnvAnalysisURL   = "GRAVITY_ANALYSIS_URL"
	EnvRenderURL     = "GRAVITY_RENDER_URL"
	EnvChatURL       = "GRAVITY_CHAT_URL"
	EnvServiceToken  = "GRAVITY_SERVICE_TOKEN"
	EnvAPIKey        = "GRAVITY_API_KEY"
	EnvVideoDBKey    = "GRAVITY_VIDEODB_KEY"
	EnvPollInterval  = "GRAVITY_POLL_INTERVAL"
	EnvMaxAttempts   = "GRAVITY_POLL_MAX_ATTEMPTS"
	EnvHistoryLimit  = "GRAVITY_HISTORY_LIMIT"
	EnvTickInterval  = "GRAVITY_TICK_INTERVAL"
	EnvRedisAddr     = "GRAVITY_REDIS_ADDR"
	EnvRedisPassword = "GRAVITY_REDIS_PASSWORD"
	EnvRedisDB       = "GRAVITY_REDIS_DB"
	EnvMinioEndpoint = "GRAVITY_MINIO_ENDPOINT"
	EnvMinioAccess   = "GRAVITY_MINIO_ACCESS_KEY"
	EnvMinioSecret   = "GRAVITY_MINIO_SECRET_KEY"
	EnvMinioBucket   = "GRAVITY_MINIO_BUCKET"
	EnvMinioSSL      = "GRAVITY_MINIO_USE_SSL"
	EnvChatBackend   = "GRAVITY_CHAT_BACKEND"
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIModel   = "GRAVITY_OPENAI_MODEL"
	EnvOpenAIBaseURL = "GRAVITY_OPENAI_BASE_URL"
	EnvHeadless      = "GRAVITY_HEADLESS"
	EnvMCPHTTP       = "GRAVITY_MCP_HTTP"

	// Database filename
	DBFilename = "gravity.db"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ProjectsDir() string
	MediaDir() string
	Headless() bool
}

// FileConfig is the YAML configuration file layout. Zero values leave the
// default in place.
type FileConfig struct {
	Server struct {
		Port     int    `yaml:"port"`
		Headless bool   `yaml:"headless"`
		MCPHTTP  bool   `yaml:"mcp_http"`
		DataDir  string `yaml:"data_dir"`
		MediaDir string `yaml:"media_dir"`
	} `yaml:"server"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Services struct {
		AnalysisURL  string        `yaml:"analysis_url"`
		RenderURL    string        `yaml:"render_url"`
		ChatURL      string        `yaml:"chat_url"`
		Token        string        `yaml:"token"`
		PollInterval time.Duration `yaml:"poll_interval"`
		MaxAttempts  int           `yaml:"max_attempts"`
		ChatBackend  string        `yaml:"chat_backend"`
	} `yaml:"services"`
	Playback struct {
		TickInterval time.Duration `yaml:"tick_interval"`
		HistoryLimit int           `yaml:"history_limit"`
	} `yaml:"playback"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Minio struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
	OpenAI struct {
		Model   string `yaml:"model"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"openai"`
}

// EnvConfig holds the resolved configuration.
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	mediaDir string
	headless bool
	mcpHTTP  bool

	logFile       string
	logMaxSizeMB  int
	logMaxBackups int
	logMaxAgeDays int

	analysisURL  string
	renderURL    string
	chatURL      string
	serviceToken string
	apiKey       string
	videoDBKey   string
	pollInterval time.Duration
	maxAttempts  int
	chatBackend  string

	tickInterval time.Duration
	historyLimit int

	redisAddr     string
	redisPassword string
	redisDB       int

	minioEndpoint  string
	minioAccessKey string
	minioSecretKey string
	minioBucket    string
	minioUseSSL    bool

	openAIKey     string
	openAIModel   string
	openAIBaseURL string
}

// New creates a new EnvConfig with defaults, the optional YAML file named by
// GRAVITY_CONFIG_PATH, the optional .env file and environment overrides.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		dataDir:       defaultDataDir(),
		logMaxSizeMB:  DefaultLogMaxSizeMB,
		logMaxBackups: DefaultLogMaxBackups,
		logMaxAgeDays: DefaultLogMaxAgeDays,
		analysisURL:   DefaultServiceURL,
		renderURL:     DefaultServiceURL,
		chatURL:       DefaultServiceURL,
		pollInterval:  DefaultPollInterval,
		maxAttempts:   DefaultMaxAttempts,
		chatBackend:   DefaultChatBackend,
		tickInterval:  DefaultTickInterval,
		historyLimit:  DefaultHistoryLimit,
		minioBucket:   DefaultMinioBucket,
		openAIModel:   DefaultOpenAIModel,
	}

	if path := os.Getenv(EnvConfigPath); path != "" {
		var fc FileConfig
		if err := loadFile(path, &fc); err != nil {
			return nil, err
		}
		cfg.applyFile(&fc)
	}

	envFile := os.Getenv(EnvEnvFile)
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, fc *FileConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *EnvConfig) applyFile(fc *FileConfig) {
	setInt(&c.port, fc.Server.Port)
	setString(&c.dataDir, fc.Server.DataDir)
	setString(&c.mediaDir, fc.Server.MediaDir)
	c.headless = c.headless || fc.Server.Headless
	c.mcpHTTP = c.mcpHTTP || fc.Server.MCPHTTP

	setString(&c.logLevel, fc.Log.Level)
	setString(&c.logFile, fc.Log.File)
	setInt(&c.logMaxSizeMB, fc.Log.MaxSizeMB)
	setInt(&c.logMaxBackups, fc.Log.MaxBackups)
	setInt(&c.logMaxAgeDays, fc.Log.MaxAgeDays)

	setString(&c.analysisURL, fc.Services.AnalysisURL)
	setString(&c.renderURL, fc.Services.RenderURL)
	setString(&c.chatURL, fc.Services.ChatURL)
	setString(&c.serviceToken, fc.Services.Token)
	setString(&c.chatBackend, fc.Services.ChatBackend)
	setInt(&c.maxAttempts, fc.Services.MaxAttempts)
	if fc.Services.PollInterval > 0 {
		c.pollInterval = fc.Services.PollInterval
	}

	if fc.Playback.TickInterval > 0 {
		c.tickInterval = fc.Playback.TickInterval
	}
	setInt(&c.historyLimit, fc.Playback.HistoryLimit)

	setString(&c.redisAddr, fc.Redis.Addr)
	setString(&c.redisPassword, fc.Redis.Password)
	setInt(&c.redisDB, fc.Redis.DB)

	setString(&c.minioEndpoint, fc.Minio.Endpoint)
	setString(&c.minioAccessKey, fc.Minio.AccessKey)
	setString(&c.minioSecretKey, fc.Minio.SecretKey)
	setString(&c.minioBucket, fc.Minio.Bucket)
	c.minioUseSSL = c.minioUseSSL || fc.Minio.UseSSL

	setString(&c.openAIModel, fc.OpenAI.Model)
	setString(&c.openAIBaseURL, fc.OpenAI.BaseURL)
}

func (c *EnvConfig) applyEnv() error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		c.port = port
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", c.port)
	}

	envString(&c.logLevel, EnvLogLevel)
	envString(&c.logFile, EnvLogFile)
	envString(&c.dataDir, EnvDataDir)
	envString(&c.mediaDir, EnvMediaDir)
	envString(&c.analysisURL, EnvAnalysisURL)
	envString(&c.renderURL, EnvRenderURL)
	envString(&c.chatURL, EnvChatURL)
	envString(&c.serviceToken, EnvServiceToken)
	envString(&c.apiKey, EnvAPIKey)
	envString(&c.videoDBKey, EnvVideoDBKey)
	envString(&c.chatBackend, EnvChatBackend)
	envString(&c.redisAddr, EnvRedisAddr)
	envString(&c.redisPassword, EnvRedisPassword)
	envString(&c.minioEndpoint, EnvMinioEndpoint)
	envString(&c.minioAccessKey, EnvMinioAccess)
	envString(&c.minioSecretKey, EnvMinioSecret)
	envString(&c.minioBucket, EnvMinioBucket)
	envString(&c.openAIKey, EnvOpenAIKey)
	envString(&c.openAIModel, EnvOpenAIModel)
	envString(&c.openAIBaseURL, EnvOpenAIBaseURL)

	ints := []struct {
		name  string
		dst   *int
		floor int
	}{
		{EnvLogMaxSizeMB, &c.logMaxSizeMB, 1},
		{EnvLogMaxBackups, &c.logMaxBackups, 0},
		{EnvLogMaxAgeDays, &c.logMaxAgeDays, 0},
		{EnvMaxAttempts, &c.maxAttempts, 1},
		{EnvHistoryLimit, &c.historyLimit, 1},
		{EnvRedisDB, &c.redisDB, 0},
	}
	for _, e := range ints {
		if err := envInt(e.dst, e.name, e.floor); err != nil {
			return err
		}
	}

	for name, dst := range map[string]*time.Duration{
		EnvPollInterval: &c.pollInterval,
		EnvTickInterval: &c.tickInterval,
	} {
		if err := envDuration(dst, name); err != nil {
			return err
		}
	}

	for name, dst := range map[string]*bool{
		EnvHeadless: &c.headless,
		EnvMCPHTTP:  &c.mcpHTTP,
		EnvMinioSSL: &c.minioUseSSL,
	} {
		if err := envBool(dst, name); err != nil {
			return err
		}
	}

	switch c.chatBackend {
	case ChatBackendService, ChatBackendOpenAI:
	default:
		return fmt.Errorf("invalid %s: %q (want %q or %q)", EnvChatBackend, c.chatBackend, ChatBackendService, ChatBackendOpenAI)
	}
	return nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFile returns the rotating log file path, empty for stdout only.
func (c *EnvConfig) LogFile() string {
	return c.logFile
}

func (c *EnvConfig) LogMaxSizeMB() int  { return c.logMaxSizeMB }
func (c *EnvConfig) LogMaxBackups() int { return c.logMaxBackups }
func (c *EnvConfig) LogMaxAgeDays() int { return c.logMaxAgeDays }

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ProjectsDir holds the persisted project files.
func (c *EnvConfig) ProjectsDir() string {
	if dir := os.Getenv(EnvProjectsDir); dir != "" {
		return dir
	}
	return filepath.Join(c.dataDir, "projects")
}

// MediaDir is the root the preview media server serves from.
func (c *EnvConfig) MediaDir() string {
	if c.mediaDir != "" {
		return c.mediaDir
	}
	return filepath.Join(c.dataDir, "media")
}

func (c *EnvConfig) Headless() bool { return c.headless }
func (c *EnvConfig) MCPHTTP() bool  { return c.mcpHTTP }

func (c *EnvConfig) AnalysisURL() string  { return c.analysisURL }
func (c *EnvConfig) RenderURL() string    { return c.renderURL }
func (c *EnvConfig) ChatURL() string      { return c.chatURL }
func (c *EnvConfig) ServiceToken() string { return c.serviceToken }

// APIKey is forwarded to the analysis and chat services on behalf of the user.
func (c *EnvConfig) APIKey() string {
	return c.apiKey
}

func (c *EnvConfig) VideoDBKey() string { return c.videoDBKey }

func (c *EnvConfig) PollInterval() time.Duration { return c.pollInterval }
func (c *EnvConfig) MaxAttempts() int            { return c.maxAttempts }
func (c *EnvConfig) TickInterval() time.Duration { return c.tickInterval }
func (c *EnvConfig) HistoryLimit() int           { return c.historyLimit }

// ChatBackend is "service" or "openai".
func (c *EnvConfig) ChatBackend() string {
	return c.chatBackend
}

// RedisAddr is empty when the shared job cache is disabled.
func (c *EnvConfig) RedisAddr() string {
	return c.redisAddr
}

func (c *EnvConfig) RedisPassword() string { return c.redisPassword }
func (c *EnvConfig) RedisDB() int          { return c.redisDB }

// MinioEndpoint is empty when object-store backups are disabled.
func (c *EnvConfig) MinioEndpoint() string {
	return c.minioEndpoint
}

func (c *EnvConfig) MinioAccessKey() string { return c.minioAccessKey }
func (c *EnvConfig) MinioSecretKey() string { return c.minioSecretKey }
func (c *EnvConfig) MinioBucket() string    { return c.minioBucket }
func (c *EnvConfig) MinioUseSSL() bool      { return c.minioUseSSL }

func (c *EnvConfig) OpenAIKey() string     { return c.openAIKey }
func (c *EnvConfig) OpenAIModel() string   { return c.openAIModel }
func (c *EnvConfig) OpenAIBaseURL() string { return c.openAIBaseURL }

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func envString(dst *string, name string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(dst *int, name string, floor int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if n < floor {
		return fmt.Errorf("invalid %s: must be at least %d", name, floor)
	}
	*dst = n
	return nil
}

// envDuration accepts Go durations ("1.5s") or plain seconds ("1.5").
func envDuration(dst *time.Duration, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s: must be positive", name)
	}
	*dst = d
	return nil
}

func envBool(dst *bool, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = b
	return nil
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
