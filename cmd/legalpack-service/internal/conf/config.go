package conf

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Events        EventsConfig        `mapstructure:"events"`
	LLM           LLMConfig           `mapstructure:"llm"`
	OCR           OCRConfig           `mapstructure:"ocr"`
	Extract       ExtractConfig       `mapstructure:"extract"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds the Postgres settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds the processing-status cache settings.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	StatusTTL    time.Duration `mapstructure:"status_ttl"`
}

// StorageConfig holds the MinIO object storage settings.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// EventsConfig holds the Kafka publisher settings.
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LLMConfig holds the language-model backend settings.
type LLMConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// OCRConfig holds the OCR backend settings.
type OCRConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PopplerPath string        `mapstructure:"poppler_path"`
	RenderDPI   int           `mapstructure:"render_dpi"`
}

// ExtractConfig holds the text-extraction policy.
type ExtractConfig struct {
	MinPageTextChars int `mapstructure:"min_page_text_chars"`
	MaxPDFPages      int `mapstructure:"max_pdf_pages"`
}

// AnalysisConfig centralizes the token budget policy. One value per
// deployment; components never re-derive their own ceilings.
type AnalysisConfig struct {
	BatchTokenLimit    int `mapstructure:"batch_token_limit"`
	OutputTokenLimit   int `mapstructure:"output_token_limit"`
	TotalDocumentLimit int `mapstructure:"total_document_limit"`
}

// ObservabilityConfig holds logging and tracing settings.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	OTELEndpoint   string `mapstructure:"otel_endpoint"`
	EnableTrace    bool   `mapstructure:"enable_trace"`
}

// Load reads the YAML config, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("legalpack-service")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	setDefaults(v)

	v.SetEnvPrefix("LEGALPACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Sensitive values come from the environment in deployment.
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.Database.Password = password
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if key := os.Getenv("CLAUDE_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if key := os.Getenv("VISION_API_KEY"); key != "" {
		config.OCR.APIKey = key
	}
	if endpoint := os.Getenv("OTEL_ENDPOINT"); endpoint != "" {
		config.Observability.OTELEndpoint = endpoint
	}

	return &config, nil
}

// setDefaults applies the deployment defaults, including the token budget
// policy the pipeline enforces.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 8081)
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "600s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.max_upload_bytes", int64(100*1024*1024))

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.status_ttl", "24h")

	v.SetDefault("storage.bucket_name", "legal-packs")

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.topic", "legalpack.events")

	v.SetDefault("llm.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.model", "claude-3-sonnet-20240229")
	v.SetDefault("llm.timeout", "5m")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "100ms")

	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.endpoint", "https://vision.googleapis.com/v1/images:annotate")
	v.SetDefault("ocr.timeout", "60s")
	v.SetDefault("ocr.poppler_path", "pdftoppm")
	v.SetDefault("ocr.render_dpi", 200)

	v.SetDefault("extract.min_page_text_chars", 100)
	v.SetDefault("extract.max_pdf_pages", 50)

	v.SetDefault("analysis.batch_token_limit", 12000)
	v.SetDefault("analysis.output_token_limit", 4096)
	v.SetDefault("analysis.total_document_limit", 100000)

	v.SetDefault("observability.service_name", "legalpack-service")
	v.SetDefault("observability.service_version", "v1.0.0")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.enable_trace", false)
}
