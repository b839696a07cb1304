package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg
func LoadConfig() error {
	return LoadConfigFrom("./configs")
}

// LoadConfigFrom 从指定目录读取 config.yaml，缺失的项使用默认值
func LoadConfigFrom(dir string) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file not found: %w", err)
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Cfg = &cfg

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("socket.path", "/socket")
	v.SetDefault("socket.adapter", "memory")
	v.SetDefault("socket.ping_interval", 25)
	v.SetDefault("socket.ping_timeout", 60)
	v.SetDefault("socket.poll_timeout", 20)
	v.SetDefault("socket.send_queue", 256)
	v.SetDefault("socket.max_message_size", 8<<20)

	v.SetDefault("call.max_peers", 2)

	v.SetDefault("whiteboard.shadow_canvas", true)
	v.SetDefault("whiteboard.width", 1280)
	v.SetDefault("whiteboard.height", 720)
	v.SetDefault("whiteboard.idle_ttl", 300)
	v.SetDefault("whiteboard.max_boards", 64)
	v.SetDefault("whiteboard.sweep_spec", "@every 1m")

	v.SetDefault("chat.history_page_size", 30)

	v.SetDefault("kafka.topic", "chat-message-events")
	v.SetDefault("kafka.client_id", "solace-realtime")

	v.SetDefault("jwt.issuer", "Solace")
}
