package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Mirror  MirrorConfig
	Backup  BackupConfig
	Summary SummaryConfig
	Journal JournalConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type StorageConfig struct {
	Backend       string // "sqlite" or "redis"
	DataDir       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// MirrorConfig controls the one-way copy of records into MongoDB. The
// mirror is disabled while MongoURI is empty.
type MirrorConfig struct {
	MongoURI     string
	Database     string
	UserID       string
	PollInterval string
}

func (m MirrorConfig) Enabled() bool { return m.MongoURI != "" }

// PollEvery parses PollInterval, falling back to five seconds.
func (m MirrorConfig) PollEvery() time.Duration {
	d, err := time.ParseDuration(m.PollInterval)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

type BackupConfig struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

func (b BackupConfig) Enabled() bool { return b.Endpoint != "" && b.Bucket != "" }

// SummaryConfig selects the model behind monthly summaries. Provider is
// "gemini" (needs APIKey) or "ollama" (a local server at OllamaURL).
type SummaryConfig struct {
	Provider    string
	Model       string
	APIKey      string
	OllamaURL   string
	OllamaModel string
}

type JournalConfig struct {
	// Timezone decides which calendar day "today" is.
	Timezone string
}

// Location resolves Timezone, defaulting to the local zone.
func (j JournalConfig) Location() (*time.Location, error) {
	if j.Timezone == "" || j.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(j.Timezone)
}

type LogConfig struct {
	Level string
	File  string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:    4100,
			MCPPort: 4101,
		},
		Storage: StorageConfig{
			Backend:   "sqlite",
			DataDir:   dataDir,
			RedisAddr: "localhost:6379",
			RedisKey:  "stagelog_records",
		},
		Mirror: MirrorConfig{
			Database:     "stagelog",
			UserID:       "local",
			PollInterval: "5s",
		},
		Backup: BackupConfig{
			Bucket: "stagelog-backups",
			Region: "us-east-1",
			UseSSL: true,
		},
		Summary: SummaryConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "qwen2.5:7b",
		},
		Journal: JournalConfig{
			Timezone: "Local",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, .env files,
// environment variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.stagelog.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/stagelog/config.json
// and secrets live next to the data directory in secrets.json.
//
// A .env file in the working directory or next to config.json is read
// before the environment. Environment variables (STAGELOG_*) override
// backend values on all platforms.
func Load() (Config, error) {
	loadDotEnv(dotEnvFiles()...)
	return loadWith(newPlatformBackend(), NewKeychain())
}

// Keychain abstracts the platform secret store.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

const keychainService = "stagelog"

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Secrets not provided through the environment come from the keychain.
	for _, s := range specs {
		if !s.secret || s.extract(cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, secretAccount(s.key)); err == nil && v != "" {
			s.apply(&cfg, v)
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	switch cfg.Storage.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("invalid storage.backend %q: must be sqlite or redis", cfg.Storage.Backend)
	}
	switch cfg.Summary.Provider {
	case "gemini", "ollama":
	default:
		return fmt.Errorf("invalid summary.provider %q: must be gemini or ollama", cfg.Summary.Provider)
	}
	for _, p := range []struct {
		key  string
		port int
	}{{"server.port", cfg.Server.Port}, {"server.mcp_port", cfg.Server.MCPPort}} {
		if p.port < 0 || p.port > 65535 {
			return fmt.Errorf("invalid %s %d", p.key, p.port)
		}
	}
	if _, err := cfg.Journal.Location(); err != nil {
		return fmt.Errorf("invalid journal.timezone %q: %w", cfg.Journal.Timezone, err)
	}
	return nil
}

// secretAccount maps a dotted secret key to its keychain account name.
func secretAccount(key string) string {
	return strings.ReplaceAll(key, ".", "_")
}

func dotEnvFiles() []string {
	return []string{".env", filepath.Join(filepath.Dir(configFilePath()), ".env")}
}

// loadDotEnv loads the files that exist. Variables already set in the
// environment win.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not load %s: %v\n", p, err)
		}
	}
}

// keychainStore is the platform secret store.
type keychainStore struct{}

// NewKeychain returns the platform secret store.
func NewKeychain() Keychain { return keychainStore{} }

func (keychainStore) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainStore) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
