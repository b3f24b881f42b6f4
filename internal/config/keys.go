package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "STAGELOG_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "STAGELOG_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "storage.backend", typ: kString, env: "STAGELOG_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "STAGELOG_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.redis_addr", typ: kString, env: "STAGELOG_STORAGE_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisAddr = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisAddr },
	},
	{
		key: "storage.redis_password", typ: kString, env: "STAGELOG_STORAGE_REDIS_PASSWORD",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisPassword = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisPassword },
	},
	{
		key: "storage.redis_db", typ: kInt, env: "STAGELOG_STORAGE_REDIS_DB",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisDB = v.(int) },
		extract: func(cfg Config) any { return cfg.Storage.RedisDB },
	},
	{
		key: "storage.redis_key", typ: kString, env: "STAGELOG_STORAGE_REDIS_KEY",
		apply:   func(cfg *Config, v any) { cfg.Storage.RedisKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RedisKey },
	},
	{
		key: "mirror.mongo_uri", typ: kString, env: "STAGELOG_MIRROR_MONGO_URI",
		apply:   func(cfg *Config, v any) { cfg.Mirror.MongoURI = v.(string) },
		extract: func(cfg Config) any { return cfg.Mirror.MongoURI },
	},
	{
		key: "mirror.database", typ: kString, env: "STAGELOG_MIRROR_DATABASE",
		apply:   func(cfg *Config, v any) { cfg.Mirror.Database = v.(string) },
		extract: func(cfg Config) any { return cfg.Mirror.Database },
	},
	{
		key: "mirror.user_id", typ: kString, env: "STAGELOG_MIRROR_USER_ID",
		apply:   func(cfg *Config, v any) { cfg.Mirror.UserID = v.(string) },
		extract: func(cfg Config) any { return cfg.Mirror.UserID },
	},
	{
		key: "mirror.poll_interval", typ: kString, env: "STAGELOG_MIRROR_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Mirror.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Mirror.PollInterval },
	},
	{
		key: "backup.endpoint", typ: kString, env: "STAGELOG_BACKUP_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Backup.Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.Endpoint },
	},
	{
		key: "backup.bucket", typ: kString, env: "STAGELOG_BACKUP_BUCKET",
		apply:   func(cfg *Config, v any) { cfg.Backup.Bucket = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.Bucket },
	},
	{
		key: "backup.region", typ: kString, env: "STAGELOG_BACKUP_REGION",
		apply:   func(cfg *Config, v any) { cfg.Backup.Region = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.Region },
	},
	{
		key: "backup.access_key", typ: kString, env: "STAGELOG_BACKUP_ACCESS_KEY",
		apply:   func(cfg *Config, v any) { cfg.Backup.AccessKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.AccessKey },
	},
	{
		key: "backup.secret_key", typ: kString, env: "STAGELOG_BACKUP_SECRET_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Backup.SecretKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Backup.SecretKey },
	},
	{
		key: "backup.use_ssl", typ: kBool, env: "STAGELOG_BACKUP_USE_SSL",
		apply:   func(cfg *Config, v any) { cfg.Backup.UseSSL = v.(bool) },
		extract: func(cfg Config) any { return cfg.Backup.UseSSL },
	},
	{
		key: "summary.provider", typ: kString, env: "STAGELOG_SUMMARY_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Summary.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Summary.Provider },
	},
	{
		key: "summary.model", typ: kString, env: "STAGELOG_SUMMARY_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Summary.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Summary.Model },
	},
	{
		key: "summary.api_key", typ: kString, env: "STAGELOG_GEMINI_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Summary.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Summary.APIKey },
	},
	{
		key: "summary.ollama_url", typ: kString, env: "STAGELOG_OLLAMA_URL",
		apply:   func(cfg *Config, v any) { cfg.Summary.OllamaURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Summary.OllamaURL },
	},
	{
		key: "summary.ollama_model", typ: kString, env: "STAGELOG_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Summary.OllamaModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Summary.OllamaModel },
	},
	{
		key: "journal.timezone", typ: kString, env: "STAGELOG_JOURNAL_TIMEZONE",
		apply:   func(cfg *Config, v any) { cfg.Journal.Timezone = v.(string) },
		extract: func(cfg Config) any { return cfg.Journal.Timezone },
	},
	{
		key: "log.level", typ: kString, env: "STAGELOG_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "STAGELOG_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetBool(s.key)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] %v. Using default value.\n", err)
				continue
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
