package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"civicrelay/pkg/utils"
)

type Config struct {
	HTTP    HTTPConfig    `json:"http"`
	Cluster ClusterConfig `json:"cluster"`
	Upload  UploadConfig  `json:"upload"`
	Store   StoreConfig   `json:"store"`
	Auth    AuthConfig    `json:"auth"`
	Metrics MetricsConfig `json:"metrics"`
	Log     LogConfig     `json:"log"`
}

type HTTPConfig struct {
	Address           string   `json:"address"`
	ReadHeaderTimeout Duration `json:"read_header_timeout"`
	ShutdownTimeout   Duration `json:"shutdown_timeout"`
}

type ClusterConfig struct {
	Endpoint       string         `json:"endpoint"`
	MaxMessageSize utils.ByteSize `json:"max_message_size"`
	DialTimeout    Duration       `json:"dial_timeout"`
	CallTimeout    Duration       `json:"call_timeout"`
	CommitTimeout  Duration       `json:"commit_timeout"`
	// AdminToken is sent on fleet calls; the cluster expects "internal".
	AdminToken string `json:"admin_token"`
	// PublicToken is sent on anonymous document retrieval.
	PublicToken string `json:"public_token"`
}

type UploadConfig struct {
	ChunkSize  utils.ByteSize `json:"chunk_size"`
	MaxSize    utils.ByteSize `json:"max_size"`
	StagingDir string         `json:"staging_dir"`
	// StaleAfter is how old a staging file must be before startup removes it.
	// Younger files may belong to another relay sharing the directory.
	StaleAfter Duration `json:"stale_after"`
}

type StoreConfig struct {
	Dir      string `json:"dir"`
	InMemory bool   `json:"in_memory"`
}

type AuthConfig struct {
	Secret    string   `json:"secret"`
	AdminUser string   `json:"admin_user"`
	TokenTTL  Duration `json:"token_ttl"`
	// ProtectAdmin requires the admin identity on /admin routes. Turning it
	// off restores the historical unauthenticated fleet endpoints.
	ProtectAdmin bool `json:"protect_admin"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:           ":5000",
			ReadHeaderTimeout: Duration(10 * time.Second),
			ShutdownTimeout:   Duration(15 * time.Second),
		},
		Cluster: ClusterConfig{
			Endpoint:       "127.0.0.1:9002",
			MaxMessageSize: utils.ByteSize(3 * utils.GiB),
			DialTimeout:    Duration(10 * time.Second),
			CallTimeout:    Duration(30 * time.Second),
			CommitTimeout:  Duration(10 * time.Minute),
			AdminToken:     "internal",
			PublicToken:    "public",
		},
		Upload: UploadConfig{
			ChunkSize:  utils.ByteSize(2 * utils.MiB),
			MaxSize:    utils.ByteSize(3000 * utils.MiB),
			StagingDir: "./uploads_temp",
			StaleAfter: Duration(time.Hour),
		},
		Store: StoreConfig{
			Dir: "./data/metadata",
		},
		Auth: AuthConfig{
			AdminUser:    "admin",
			TokenTTL:     Duration(24 * time.Hour),
			ProtectAdmin: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadConfig reads a JSON config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// LoadFromEnv returns the defaults overlaid with CIVICRELAY_* variables.
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.expandPaths()
	return cfg, nil
}

// ApplyEnv overlays environment variables onto c. CLOUD_GRPC_ENDPOINT and
// JWT_SECRET are honoured for compatibility with existing deployments.
func (c *Config) ApplyEnv() error {
	c.HTTP.Address = getEnv("CIVICRELAY_HTTP_ADDRESS", c.HTTP.Address)
	c.Cluster.Endpoint = getEnv("CIVICRELAY_CLUSTER_ENDPOINT", getEnv("CLOUD_GRPC_ENDPOINT", c.Cluster.Endpoint))
	c.Cluster.AdminToken = getEnv("CIVICRELAY_CLUSTER_ADMIN_TOKEN", c.Cluster.AdminToken)
	c.Upload.StagingDir = getEnv("CIVICRELAY_STAGING_DIR", c.Upload.StagingDir)
	c.Store.Dir = getEnv("CIVICRELAY_STORE_DIR", c.Store.Dir)
	c.Auth.Secret = getEnv("CIVICRELAY_JWT_SECRET", getEnv("JWT_SECRET", c.Auth.Secret))
	c.Auth.AdminUser = getEnv("CIVICRELAY_ADMIN_USER", c.Auth.AdminUser)
	c.Log.File = getEnv("CIVICRELAY_LOG_FILE", c.Log.File)

	sizes := []struct {
		key string
		dst *utils.ByteSize
	}{
		{"CIVICRELAY_CHUNK_SIZE", &c.Upload.ChunkSize},
		{"CIVICRELAY_MAX_UPLOAD_SIZE", &c.Upload.MaxSize},
		{"CIVICRELAY_MAX_MESSAGE_SIZE", &c.Cluster.MaxMessageSize},
	}
	for _, s := range sizes {
		v := os.Getenv(s.key)
		if v == "" {
			continue
		}
		n, err := utils.ParseDataSize(v)
		if err != nil {
			return fmt.Errorf("%s: %w", s.key, err)
		}
		*s.dst = utils.ByteSize(n)
	}

	if v := os.Getenv("CIVICRELAY_COMMIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CIVICRELAY_COMMIT_TIMEOUT: %w", err)
		}
		c.Cluster.CommitTimeout = Duration(d)
	}
	if v := os.Getenv("CIVICRELAY_PROTECT_ADMIN"); v != "" {
		c.Auth.ProtectAdmin = v != "false" && v != "0"
	}
	return nil
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch {
	case c.Cluster.Endpoint == "":
		return fmt.Errorf("cluster.endpoint is required")
	case c.Upload.ChunkSize <= 0:
		return fmt.Errorf("upload.chunk_size must be positive")
	case c.Upload.MaxSize <= 0:
		return fmt.Errorf("upload.max_size must be positive")
	case c.Cluster.MaxMessageSize > 0 && c.Upload.ChunkSize >= c.Cluster.MaxMessageSize:
		return fmt.Errorf("upload.chunk_size (%s) must be below cluster.max_message_size (%s)",
			c.Upload.ChunkSize, c.Cluster.MaxMessageSize)
	case c.Upload.StagingDir == "":
		return fmt.Errorf("upload.staging_dir is required")
	case c.Upload.StaleAfter <= 0:
		return fmt.Errorf("upload.stale_after must be positive")
	case !c.Store.InMemory && c.Store.Dir == "":
		return fmt.Errorf("store.dir is required unless store.in_memory is set")
	case c.Cluster.CallTimeout <= 0 || c.Cluster.CommitTimeout <= 0:
		return fmt.Errorf("cluster timeouts must be positive")
	}
	return nil
}

func (c *Config) expandPaths() {
	c.Upload.StagingDir = expandPath(c.Upload.StagingDir)
	c.Store.Dir = expandPath(c.Store.Dir)
	c.Log.File = expandPath(c.Log.File)
}

func expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
