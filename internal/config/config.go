package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	RedisURL        string
	SessionSecret   string
	SessionIdleTTL  time.Duration
	SecureCookies   bool
	AllowOrigins    []string
	PollInterval    time.Duration
	GuardMinLoading time.Duration
	RateLimitSignIn RateLimitConfig
	RateLimitAPI    RateLimitConfig
	Upstream        UpstreamConfig
}

// UpstreamConfig descreve a API REST e o socket de destaques consumidos pelo painel.
type UpstreamConfig struct {
	APIBaseURL string
	SocketURL  string
	FilesURL   string
	Timeout    time.Duration
	Stream     StreamConfig
}

// StreamConfig controla o ciclo de vida da conexão em tempo real.
type StreamConfig struct {
	HandshakeTimeout time.Duration
	Reconnect        bool
	MaxRetries       int
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	upstream, err := LoadUpstream()
	if err != nil {
		return nil, err
	}

	cfg := &Config{Upstream: *upstream}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.SessionSecret = strings.TrimSpace(getEnv("SESSION_SECRET", ""))
	if len(cfg.SessionSecret) < 32 {
		return nil, errors.New("SESSION_SECRET deve ter pelo menos 32 caracteres")
	}

	if cfg.SessionIdleTTL, err = parseDurationEnv("SESSION_IDLE_TTL", 12*time.Hour); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = parseDurationEnv("POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL deve ser positivo")
	}
	if cfg.GuardMinLoading, err = parseDurationEnv("GUARD_MIN_LOADING", 0); err != nil {
		return nil, err
	}

	cfg.SecureCookies = parseBoolEnv("SECURE_COOKIES", true)
	cfg.AllowOrigins = splitList(getEnv("ALLOW_ORIGINS", ""))

	cfg.RateLimitSignIn = RateLimitConfig{RequestsPerSecond: 1, Burst: 5}
	cfg.RateLimitAPI = RateLimitConfig{RequestsPerSecond: 20, Burst: 40}

	return cfg, nil
}

// LoadUpstream carrega apenas os endereços externos; usado também pela CLI.
func LoadUpstream() (*UpstreamConfig, error) {
	_ = godotenv.Load()

	cfg := &UpstreamConfig{}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("API_BASE_URL", "")), "/")
	if err := requireURL("API_BASE_URL", cfg.APIBaseURL); err != nil {
		return nil, err
	}

	cfg.SocketURL = strings.TrimSpace(getEnv("SOCKET_URL", ""))
	if cfg.SocketURL == "" {
		cfg.SocketURL = cfg.APIBaseURL
	}
	if err := requireURL("SOCKET_URL", cfg.SocketURL); err != nil {
		return nil, err
	}

	cfg.FilesURL = strings.TrimRight(strings.TrimSpace(getEnv("FILES_URL", "")), "/")

	var err error
	if cfg.Timeout, err = parseDurationEnv("UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Stream.HandshakeTimeout, err = parseDurationEnv("STREAM_HANDSHAKE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	cfg.Stream.Reconnect = parseBoolEnv("STREAM_RECONNECT", false)

	retries, err := strconv.Atoi(getEnv("STREAM_MAX_RETRIES", "0"))
	if err != nil || retries < 0 {
		return nil, errors.New("STREAM_MAX_RETRIES inválido")
	}
	cfg.Stream.MaxRetries = retries

	return cfg, nil
}

func requireURL(key, value string) error {
	if value == "" {
		return errors.New(key + " obrigatório")
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(key + " inválida")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseBoolEnv(key string, def bool) bool {
	val := strings.TrimSpace(getEnv(key, ""))
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
