package config

// Chat definition chat_service YAML structure
type Chat struct {
	Port string `mapstructure:"port"`

	Mongo DatabaseConfig `mapstructure:"mongo"`
	Redis RedisConfig    `mapstructure:"redis"`
	MinIO MinIOConfig    `mapstructure:"minio"`
	Kafka KafkaConfig    `mapstructure:"kafka"`

	Client ClientConfig `mapstructure:"client"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}

// MinIOConfig definition attachment object store setting
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Bucket    string `mapstructure:"bucket"`
	PublicURL string `mapstructure:"public_url"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// KafkaConfig definition archive feed setting, empty topic disables it
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// ClientConfig reconnect policy handed to pkg/chatclient consumers
type ClientConfig struct {
	// MaxAttempts 0 means retry until Disconnect is called
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffBaseMS    int `mapstructure:"backoff_base_ms"`
	BackoffCeilingMS int `mapstructure:"backoff_ceiling_ms"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}
