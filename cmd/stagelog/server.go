package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/stagelog/internal/api"
	"github.com/kalambet/stagelog/internal/backup"
	"github.com/kalambet/stagelog/internal/config"
	"github.com/kalambet/stagelog/internal/logging"
	"github.com/kalambet/stagelog/internal/metrics"
	"github.com/kalambet/stagelog/internal/mirror"
	"github.com/kalambet/stagelog/internal/settings"
	"github.com/kalambet/stagelog/internal/shows"
	"github.com/kalambet/stagelog/internal/storage"
	"github.com/kalambet/stagelog/internal/summary"
)

const (
	shutdownTimeout = 5 * time.Second
	purgeEvery      = time.Hour
	purgeRetain     = 24 * time.Hour
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the stagelog server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		stdio, _ := cmd.Flags().GetBool("stdio")
		return runServer(stdio)
	},
}

func init() {
	startCmd.Flags().Bool("stdio", false, "also serve MCP over stdin/stdout")
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running stagelog server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stagelog status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "stagelog.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// openRecordKV picks where the record array lives.
func openRecordKV(ctx context.Context, cfg config.StorageConfig, store *storage.Store, logger *zap.Logger) (storage.KV, func(), error) {
	if cfg.Backend != "redis" {
		return store, func() {}, nil
	}
	kv, err := storage.OpenRedis(ctx, storage.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening redis: %w", err)
	}
	logger.Info("record array stored in redis", zap.String("addr", cfg.RedisAddr))
	return kv, func() {
		if err := kv.Close(); err != nil {
			logger.Warn("closing redis", zap.Error(err))
		}
	}, nil
}

// newGenerator builds the model client for monthly summaries. A nil
// Generator makes summaries answer with the missing key hint.
func newGenerator(ctx context.Context, cfg config.SummaryConfig, logger *zap.Logger) (summary.Generator, error) {
	if cfg.Provider == "ollama" {
		o := summary.NewOllama(cfg.OllamaURL, cfg.OllamaModel)
		if err := o.Ready(ctx); err != nil {
			logger.Warn("ollama not ready, summaries will fail until it is", zap.Error(err))
		} else {
			logger.Info("summaries use ollama", zap.String("model", cfg.OllamaModel))
		}
		return o, nil
	}
	gen, err := summary.NewGemini(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("creating summary client: %w", err)
	}
	if gen == nil {
		logger.Info("no gemini api key, summaries disabled")
	}
	return gen, nil
}

func runServer(stdio bool) error {
	fmt.Fprintf(os.Stderr, "stagelog version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	logger.Info("API bearer token available")

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("stagelog is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("stagelog is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Journal.Location()
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", cfg.Journal.Timezone, err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}()

	kv, closeKV, err := openRecordKV(ctx, cfg.Storage, store, logger)
	if err != nil {
		return err
	}
	defer closeKV()

	m := metrics.New()

	var (
		showMirror shows.Mirror
		jobs       api.MirrorJobs
		mirrored   api.MirrorReader
		worker     *mirror.Worker
	)
	if cfg.Mirror.Enabled() {
		mongo, err := storage.OpenMongo(ctx, cfg.Mirror.MongoURI, cfg.Mirror.Database)
		if err != nil {
			return fmt.Errorf("opening mongo mirror: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := mongo.Close(closeCtx); err != nil {
				logger.Warn("closing mongo", zap.Error(err))
			}
		}()
		if n, err := store.RequeueStaleJobs(time.Now()); err != nil {
			logger.Warn("requeueing abandoned mirror jobs", zap.Error(err))
		} else if n > 0 {
			logger.Info("requeued abandoned mirror jobs", zap.Int64("count", n))
		}
		showMirror = mirror.NewOutbox(store)
		jobs = store
		mirrored = mongo
		worker = mirror.NewWorker(store, mongo, cfg.Mirror.UserID, cfg.Mirror.PollEvery(), logger, m)
		logger.Info("mongo mirror enabled", zap.String("database", cfg.Mirror.Database))
	}

	svc := shows.New(shows.Options{
		Store:    storage.NewArrayStore(kv, cfg.Storage.RedisKey),
		Mirror:   showMirror,
		Location: loc,
		Logger:   logger,
		Metrics:  m,
	})

	var backups *backup.Service
	if cfg.Backup.Enabled() {
		objStore, err := backup.OpenMinio(ctx, backup.MinioOptions{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
			UseSSL:    cfg.Backup.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("opening backup bucket: %w", err)
		}
		backups = backup.New(objStore, svc, storage.RecordsKey, logger)
		logger.Info("snapshots enabled", zap.String("bucket", cfg.Backup.Bucket))
	}

	gen, err := newGenerator(ctx, cfg.Summary, logger)
	if err != nil {
		return err
	}
	summarizer := summary.New(gen, logger, m)
	settingsMgr := settings.NewManager(store)

	appHandler := api.NewAppHandler(api.AppDeps{
		Shows:      svc,
		Settings:   settingsMgr,
		Summarizer: summarizer,
		Backup:     backups,
		Jobs:       jobs,
		Metrics:    m,
		Logger:     logger,
		Token:      apiToken,

		MirrorReader: mirrored,
		MirrorUserID: cfg.Mirror.UserID,
	})
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Shows:      svc,
		Settings:   settingsMgr,
		Summarizer: summarizer,
	})

	servers := []*http.Server{
		{Addr: fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port), Handler: appHandler},
		{
			Addr:    fmt.Sprintf("127.0.0.1:%d", cfg.Server.MCPPort),
			Handler: api.BearerAuth(apiToken)(server.NewStreamableHTTPServer(mcpSrv)),
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	if stdio {
		g.Go(func() error {
			err := server.NewStdioServer(mcpSrv).Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", zap.Error(err))
			}
			return nil
		})
		logger.Info("MCP server started (stdio transport)")
	}
	if worker != nil {
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
		g.Go(func() error {
			mirror.RunPurge(gctx, store, purgeEvery, purgeRetain, logger)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("stagelog is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop stagelog (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to stagelog (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	httpClient := &http.Client{Timeout: 2 * time.Second}
	running := false
	resp, err := httpClient.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d (MCP on %d)", cfg.Server.Port, cfg.Server.MCPPort)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Storage", "%s", cfg.Storage.Backend)
	printStatus("Timezone", "%s", cfg.Journal.Timezone)
	switch {
	case cfg.Summary.Provider == "ollama":
		printStatus("Summaries", "ollama %s at %s", cfg.Summary.OllamaModel, cfg.Summary.OllamaURL)
	case cfg.Summary.APIKey == "":
		printStatus("Summaries", "no API key")
	default:
		printStatus("Summaries", "gemini %s", cfg.Summary.Model)
	}
	if cfg.Backup.Enabled() {
		printStatus("Backups", "%s/%s", cfg.Backup.Endpoint, cfg.Backup.Bucket)
	} else {
		printStatus("Backups", "disabled")
	}

	if running {
		if client, err := newAPIClient(); err == nil {
			statusCounts(ctx, client, cfg)
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// statusCounts prints the show buckets and mirror queue of a running server.
func statusCounts(ctx context.Context, client *apiClient, cfg config.Config) {
	for _, b := range []struct{ label, path string }{
		{"Upcoming", "/shows/upcoming"},
		{"History", "/shows/history"},
	} {
		resp, err := client.get(ctx, b.path)
		if err != nil {
			continue
		}
		var v shows.View
		if decodeJSON(resp, &v) == nil {
			printStatus(b.label, "%d shows", v.Count)
		}
	}

	resp, err := client.get(ctx, "/mirror/status")
	if err != nil {
		return
	}
	var ms struct {
		Enabled bool              `json:"enabled"`
		Jobs    storage.JobCounts `json:"jobs"`
	}
	if decodeJSON(resp, &ms) != nil {
		return
	}
	if !ms.Enabled {
		printStatus("Mirror", "disabled")
		return
	}
	data, _ := json.Marshal(ms.Jobs)
	printStatus("Mirror", "%s %s", cfg.Mirror.Database, data)
}
