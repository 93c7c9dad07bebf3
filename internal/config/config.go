package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	R2        R2Config
	Render    RenderConfig
	FFmpeg    FFmpegConfig
	Export    ExportConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	ExportPerHour int
	PreviewPerMin int
	UploadPerHour int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// RenderConfig controls asset loading and text rendering
type RenderConfig struct {
	Locale         string
	FontsDir       string   // optional; regular.ttf and bold.ttf override the bundled Go fonts
	AllowedOrigins []string // asset hosts that never taint a surface
	Origin         string   // sent as the Origin header and matched against CORS grants
	WatermarkURL   string
	AssetCacheTTL  int // seconds
	FetchTimeout   int // seconds
	FetchRetries   int
}

type FFmpegConfig struct {
	Path      string
	ProbePath string
	Timeout   int // seconds
}

type ExportConfig struct {
	MaxConcurrent        int
	StillSecondsPerFrame int
	ResultTTLHours       int
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("ratelimit.export_per_hour", "RATELIMIT_EXPORT_PER_HOUR")
	_ = viper.BindEnv("ratelimit.preview_per_min", "RATELIMIT_PREVIEW_PER_MIN")
	_ = viper.BindEnv("ratelimit.upload_per_hour", "RATELIMIT_UPLOAD_PER_HOUR")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("render.locale", "RENDER_LOCALE")
	_ = viper.BindEnv("render.fonts_dir", "RENDER_FONTS_DIR")
	_ = viper.BindEnv("render.allowed_origins", "RENDER_ALLOWED_ORIGINS")
	_ = viper.BindEnv("render.origin", "RENDER_ORIGIN")
	_ = viper.BindEnv("render.watermark_url", "RENDER_WATERMARK_URL")
	_ = viper.BindEnv("render.asset_cache_ttl", "RENDER_ASSET_CACHE_TTL")
	_ = viper.BindEnv("render.fetch_timeout", "RENDER_FETCH_TIMEOUT")
	_ = viper.BindEnv("render.fetch_retries", "RENDER_FETCH_RETRIES")
	_ = viper.BindEnv("ffmpeg.path", "FFMPEG_PATH")
	_ = viper.BindEnv("ffmpeg.probe_path", "FFPROBE_PATH")
	_ = viper.BindEnv("ffmpeg.timeout", "FFMPEG_TIMEOUT")
	_ = viper.BindEnv("export.max_concurrent", "EXPORT_MAX_CONCURRENT")
	_ = viper.BindEnv("export.still_seconds_per_frame", "EXPORT_STILL_SECONDS_PER_FRAME")
	_ = viper.BindEnv("export.result_ttl_hours", "EXPORT_RESULT_TTL_HOURS")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.export_per_hour", 20)
	viper.SetDefault("ratelimit.preview_per_min", 60)
	viper.SetDefault("ratelimit.upload_per_hour", 100)

	// Render defaults
	viper.SetDefault("render.locale", "es")
	viper.SetDefault("render.origin", "http://localhost:8000")
	viper.SetDefault("render.allowed_origins", "")
	viper.SetDefault("render.asset_cache_ttl", 3600)
	viper.SetDefault("render.fetch_timeout", 20)
	viper.SetDefault("render.fetch_retries", 3)

	// FFmpeg defaults
	viper.SetDefault("ffmpeg.timeout", 300)

	// Export defaults
	viper.SetDefault("export.max_concurrent", 2)
	viper.SetDefault("export.still_seconds_per_frame", 3)
	viper.SetDefault("export.result_ttl_hours", 24)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			ExportPerHour: viper.GetInt("ratelimit.export_per_hour"),
			PreviewPerMin: viper.GetInt("ratelimit.preview_per_min"),
			UploadPerHour: viper.GetInt("ratelimit.upload_per_hour"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Render: RenderConfig{
			Locale:         viper.GetString("render.locale"),
			FontsDir:       viper.GetString("render.fonts_dir"),
			AllowedOrigins: splitList(viper.GetString("render.allowed_origins")),
			Origin:         viper.GetString("render.origin"),
			WatermarkURL:   viper.GetString("render.watermark_url"),
			AssetCacheTTL:  viper.GetInt("render.asset_cache_ttl"),
			FetchTimeout:   viper.GetInt("render.fetch_timeout"),
			FetchRetries:   viper.GetInt("render.fetch_retries"),
		},
		FFmpeg: FFmpegConfig{
			Path:      viper.GetString("ffmpeg.path"),
			ProbePath: viper.GetString("ffmpeg.probe_path"),
			Timeout:   viper.GetInt("ffmpeg.timeout"),
		},
		Export: ExportConfig{
			MaxConcurrent:        viper.GetInt("export.max_concurrent"),
			StillSecondsPerFrame: viper.GetInt("export.still_seconds_per_frame"),
			ResultTTLHours:       viper.GetInt("export.result_ttl_hours"),
		},
	}

	return cfg, nil
}

// splitList parses a comma separated env value into trimmed, non-empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
