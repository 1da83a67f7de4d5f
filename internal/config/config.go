package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 IMPOSTER_SERVER_PORT
const EnvPrefix = "IMPOSTER"

// 存储驱动
const (
	StorageNone  = "none"
	StorageRedis = "redis"
	StorageBolt  = "bolt"
)

// 默认值
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 1780
	defaultMaxConnections = 10000
	defaultStorageDriver  = StorageNone
	defaultRedisAddr      = "localhost:6379"
	defaultBoltPath       = "imposter.db"

	defaultRounds                = 5
	defaultMaxRounds             = 20
	defaultRoundTimeLimit        = 30  // 秒
	defaultVotingTimeLimit       = 20  // 秒
	defaultMaxTimeLimit          = 300 // 秒
	defaultImposterCount         = 1
	defaultMinPlayers            = 3
	defaultMaxPlayers            = 12
	defaultStartDelay            = 1000 // 毫秒
	defaultIntermissionDelay     = 3    // 秒
	defaultLobbyTimeout          = 30   // 分钟
	defaultEmptyRoomTimeout      = 60   // 秒
	defaultFinishedRetention     = 10   // 分钟
	defaultCleanupInterval       = 60   // 秒
	defaultResultsCacheSize      = 256
	defaultShutdownTimeout       = 30 // 秒
	defaultShutdownCheckInterval = 5  // 秒

	defaultMessagesPerSecond    = 20
	defaultRoomActionsPerMinute = 30
)

// Config 服务端配置
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Storage  StorageConfig  `yaml:"storage" envconfig:"STORAGE"`
	Game     GameConfig     `yaml:"game" envconfig:"GAME"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host           string `yaml:"host" envconfig:"HOST"`
	Port           int    `yaml:"port" envconfig:"PORT"`
	MaxConnections int    `yaml:"max_connections" envconfig:"MAX_CONNECTIONS"`
	LogDebug       bool   `yaml:"log_debug" envconfig:"LOG_DEBUG"`
}

// StorageConfig 房间镜像存储配置
type StorageConfig struct {
	Driver   string      `yaml:"driver" envconfig:"DRIVER"` // none/redis/bolt
	Redis    RedisConfig `yaml:"redis" envconfig:"REDIS"`
	BoltPath string      `yaml:"bolt_path" envconfig:"BOLT_PATH"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

// GameConfig 游戏配置
type GameConfig struct {
	DefaultRounds         int    `yaml:"default_rounds" envconfig:"DEFAULT_ROUNDS"`
	MaxRounds             int    `yaml:"max_rounds" envconfig:"MAX_ROUNDS"`
	RoundTimeLimit        int    `yaml:"round_time_limit" envconfig:"ROUND_TIME_LIMIT"`   // 答题时限（秒）
	VotingTimeLimit       int    `yaml:"voting_time_limit" envconfig:"VOTING_TIME_LIMIT"` // 投票时限（秒）
	MaxTimeLimit          int    `yaml:"max_time_limit" envconfig:"MAX_TIME_LIMIT"`       // 房主可设置的最大时限（秒）
	ImposterCount         int    `yaml:"imposter_count" envconfig:"IMPOSTER_COUNT"`
	MinPlayers            int    `yaml:"min_players" envconfig:"MIN_PLAYERS"`
	MaxPlayers            int    `yaml:"max_players" envconfig:"MAX_PLAYERS"`
	StartDelay            int    `yaml:"start_delay" envconfig:"START_DELAY"`                 // 开始到第一轮的延迟（毫秒）
	IntermissionDelay     int    `yaml:"intermission_delay" envconfig:"INTERMISSION_DELAY"`   // 轮间结算展示（秒）
	LobbyTimeout          int    `yaml:"lobby_timeout" envconfig:"LOBBY_TIMEOUT"`             // 大厅闲置超时（分钟）
	EmptyRoomTimeout      int    `yaml:"empty_room_timeout" envconfig:"EMPTY_ROOM_TIMEOUT"`   // 无人在线超时（秒）
	FinishedRetention     int    `yaml:"finished_retention" envconfig:"FINISHED_RETENTION"`   // 结束房间保留（分钟）
	CleanupInterval       int    `yaml:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`       // 清理周期（秒）
	ResultsCacheSize      int    `yaml:"results_cache_size" envconfig:"RESULTS_CACHE_SIZE"`   // 最终排名缓存条数
	QuestionsFile         string `yaml:"questions_file" envconfig:"QUESTIONS_FILE"`           // 自定义题库（YAML）
	ShutdownTimeout       int    `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`       // 优雅关闭最长等待（秒）
	ShutdownCheckInterval int    `yaml:"shutdown_check_interval" envconfig:"SHUTDOWN_CHECK_INTERVAL"` // 关闭时检查间隔（秒）
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AllowedOrigins       []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"` // 支持 https://*.example.com
	MessagesPerSecond    int      `yaml:"messages_per_second" envconfig:"MESSAGES_PER_SECOND"`         // 单连接消息速率
	RoomActionsPerMinute int      `yaml:"room_actions_per_minute" envconfig:"ROOM_ACTIONS_PER_MINUTE"` // 单连接创建/加入/重连速率
	TrustProxyHeaders    bool     `yaml:"trust_proxy_headers" envconfig:"TRUST_PROXY_HEADERS"`         // 位于反向代理之后时读取 X-Forwarded-For
}

// RoundTimeLimitDuration 返回默认答题时限
func (c *GameConfig) RoundTimeLimitDuration() time.Duration {
	return time.Duration(c.RoundTimeLimit) * time.Second
}

// VotingTimeLimitDuration 返回默认投票时限
func (c *GameConfig) VotingTimeLimitDuration() time.Duration {
	return time.Duration(c.VotingTimeLimit) * time.Second
}

// MaxTimeLimitDuration 返回时限上限
func (c *GameConfig) MaxTimeLimitDuration() time.Duration {
	return time.Duration(c.MaxTimeLimit) * time.Second
}

// StartDelayDuration 返回开始延迟
func (c *GameConfig) StartDelayDuration() time.Duration {
	return time.Duration(c.StartDelay) * time.Millisecond
}

// IntermissionDuration 返回轮间结算展示时长
func (c *GameConfig) IntermissionDuration() time.Duration {
	return time.Duration(c.IntermissionDelay) * time.Second
}

// LobbyTimeoutDuration 返回大厅闲置超时
func (c *GameConfig) LobbyTimeoutDuration() time.Duration {
	return time.Duration(c.LobbyTimeout) * time.Minute
}

// EmptyRoomTimeoutDuration 返回无人在线超时
func (c *GameConfig) EmptyRoomTimeoutDuration() time.Duration {
	return time.Duration(c.EmptyRoomTimeout) * time.Second
}

// FinishedRetentionDuration 返回结束房间保留时长
func (c *GameConfig) FinishedRetentionDuration() time.Duration {
	return time.Duration(c.FinishedRetention) * time.Minute
}

// CleanupIntervalDuration 返回清理周期
func (c *GameConfig) CleanupIntervalDuration() time.Duration {
	return time.Duration(c.CleanupInterval) * time.Second
}

// ShutdownTimeoutDuration 返回优雅关闭最长等待
func (c *GameConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// ShutdownCheckIntervalDuration 返回关闭时检查间隔
func (c *GameConfig) ShutdownCheckIntervalDuration() time.Duration {
	return time.Duration(c.ShutdownCheckInterval) * time.Second
}

// Load 加载配置文件，再用环境变量覆盖
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// FromEnv 没有配置文件时使用：默认值加环境变量覆盖
func FromEnv() (*Config, error) {
	var cfg Config
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default 返回内置默认配置，不读取环境变量
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// ApplyEnv 用 IMPOSTER_* 环境变量覆盖配置
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}

// applyDefaults 设置默认值
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = defaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.MaxConnections == 0 {
		c.Server.MaxConnections = defaultMaxConnections
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = defaultStorageDriver
	}
	if c.Storage.Redis.Addr == "" {
		c.Storage.Redis.Addr = defaultRedisAddr
	}
	if c.Storage.BoltPath == "" {
		c.Storage.BoltPath = defaultBoltPath
	}

	g := &c.Game
	setDefault(&g.DefaultRounds, defaultRounds)
	setDefault(&g.MaxRounds, defaultMaxRounds)
	setDefault(&g.RoundTimeLimit, defaultRoundTimeLimit)
	setDefault(&g.VotingTimeLimit, defaultVotingTimeLimit)
	setDefault(&g.MaxTimeLimit, defaultMaxTimeLimit)
	setDefault(&g.ImposterCount, defaultImposterCount)
	setDefault(&g.MinPlayers, defaultMinPlayers)
	setDefault(&g.MaxPlayers, defaultMaxPlayers)
	setDefault(&g.StartDelay, defaultStartDelay)
	setDefault(&g.IntermissionDelay, defaultIntermissionDelay)
	setDefault(&g.LobbyTimeout, defaultLobbyTimeout)
	setDefault(&g.EmptyRoomTimeout, defaultEmptyRoomTimeout)
	setDefault(&g.FinishedRetention, defaultFinishedRetention)
	setDefault(&g.CleanupInterval, defaultCleanupInterval)
	setDefault(&g.ResultsCacheSize, defaultResultsCacheSize)
	setDefault(&g.ShutdownTimeout, defaultShutdownTimeout)
	setDefault(&g.ShutdownCheckInterval, defaultShutdownCheckInterval)
	if g.MaxPlayers < g.MinPlayers {
		g.MaxPlayers = g.MinPlayers
	}

	if len(c.Security.AllowedOrigins) == 0 {
		c.Security.AllowedOrigins = []string{"*"}
	}
	setDefault(&c.Security.MessagesPerSecond, defaultMessagesPerSecond)
	setDefault(&c.Security.RoomActionsPerMinute, defaultRoomActionsPerMinute)
}

func setDefault(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}
