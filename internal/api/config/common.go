package config

// Config 配置主体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	DB         DBConfig         `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Logstash   LogstashConfig   `mapstructure:"logstash"`
	Socket     SocketConfig     `mapstructure:"socket"`
	Call       CallConfig       `mapstructure:"call"`
	Whiteboard WhiteboardConfig `mapstructure:"whiteboard"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	JWT        JWTConfig        `mapstructure:"jwt"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DBConfig 数据库配置
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// LogstashConfig 远程日志
type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

// SocketConfig 实时连接配置，时间单位均为秒
type SocketConfig struct {
	Path           string   `mapstructure:"path"`
	Adapter        string   `mapstructure:"adapter"` // memory | redis
	PingInterval   int      `mapstructure:"ping_interval"`
	PingTimeout    int      `mapstructure:"ping_timeout"`
	PollTimeout    int      `mapstructure:"poll_timeout"`
	SendQueue      int      `mapstructure:"send_queue"`
	MaxMessageSize int64    `mapstructure:"max_message_size"`
	RequireToken   bool     `mapstructure:"require_token"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type CallConfig struct {
	MaxPeers int `mapstructure:"max_peers"`
}

// WhiteboardConfig 白板影子画布
type WhiteboardConfig struct {
	ShadowCanvas bool   `mapstructure:"shadow_canvas"`
	Width        int    `mapstructure:"width"`
	Height       int    `mapstructure:"height"`
	IdleTTL      int    `mapstructure:"idle_ttl"`
	SweepSpec    string `mapstructure:"sweep_spec"`
	MaxBoards    int    `mapstructure:"max_boards"` // 影子画板数量上限
}

type ChatConfig struct {
	HistoryPageSize int `mapstructure:"history_page_size"`
}

type KafkaConfig struct {
	Enable   bool       `mapstructure:"enable"`
	Brokers  []string   `mapstructure:"brokers"`
	Sasl     SaslConfig `mapstructure:"sasl"`
	Topic    string     `mapstructure:"topic"`
	ClientID string     `mapstructure:"client_id"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	PublicEndpoint string `mapstructure:"public_endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Bucket         string `mapstructure:"bucket"`
	UseSSL         bool   `mapstructure:"use_ssl"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}
