package config

import "time"

// ChatClient definition chat_client YAML structure
type ChatClient struct {
	Portal         PortalConfig  `mapstructure:"portal"`
	Redis          RedisConfig   `mapstructure:"redis"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
}

// PortalStub definition portal_stub YAML structure
type PortalStub struct {
	Port  string      `mapstructure:"port"`
	Redis RedisConfig `mapstructure:"redis"`
}

// PortalConfig definition portal REST endpoint
type PortalConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}
