// Package inspector provides a reusable pipeline failure-triage service
// that can be embedded into other Go applications.
package inspector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lei/pipeline-triage/internal/api"
	"github.com/lei/pipeline-triage/internal/config"
	gitlabsrc "github.com/lei/pipeline-triage/internal/provider/gitlab"
	"github.com/lei/pipeline-triage/internal/service"
	"github.com/lei/pipeline-triage/internal/triage"
	"github.com/lei/pipeline-triage/pkg/logger"
)

// Inspector represents a wired triage service instance that can be
// embedded in applications or run standalone over HTTP
type Inspector struct {
	config  *Config
	service *service.Service
	router  http.Handler
	server  *http.Server
	logger  *logger.Logger
}

// Config holds the configuration for the Inspector
type Config struct {
	// Server configuration
	Server ServerConfig

	// Authentication configuration
	Auth AuthConfig

	// GitLab platform configuration
	GitLab GitLabConfig

	// Triage policy (allow-lists, truncation, concurrency)
	Triage TriageConfig

	// Logger configuration
	Logging LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	APIKeys []APIKey
}

// APIKey represents an API key for authentication
type APIKey struct {
	Name string
	Key  string
}

// GitLabConfig holds GitLab connection configuration
type GitLabConfig struct {
	URL               string
	Token             string
	ProjectID         string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// TriageConfig holds the consolidation policy
type TriageConfig struct {
	PreserveFullNamePatterns []string
	ForceReportPatterns      []string
	MaxTruncatedLength       int
	LogFetchConcurrency      int
	CacheTTL                 time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// New creates a new Inspector instance with the provided configuration
func New(cfg *Config) (*Inspector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.GitLab.URL == "" || cfg.GitLab.ProjectID == "" {
		return nil, fmt.Errorf("gitlab url and project_id are required")
	}

	// Initialize logger
	appLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	// Initialize platform source
	source, err := gitlabsrc.NewSource(&gitlabsrc.Config{
		BaseURL:           cfg.GitLab.URL,
		Token:             cfg.GitLab.Token,
		ProjectID:         cfg.GitLab.ProjectID,
		RequestTimeout:    cfg.GitLab.RequestTimeout,
		RequestsPerSecond: cfg.GitLab.RequestsPerSecond,
	}, appLogger)
	if err != nil {
		return nil, fmt.Errorf("initialize gitlab source: %w", err)
	}
	appLogger.Info("initialized gitlab source",
		"url", cfg.GitLab.URL,
		"project", cfg.GitLab.ProjectID)

	// Compile the triage policy
	triageCfg := config.TriageConfig{
		PreserveFullNamePatterns: cfg.Triage.PreserveFullNamePatterns,
		ForceReportPatterns:      cfg.Triage.ForceReportPatterns,
		MaxTruncatedLength:       cfg.Triage.MaxTruncatedLength,
		LogFetchConcurrency:      cfg.Triage.LogFetchConcurrency,
		CacheTTL:                 cfg.Triage.CacheTTL,
	}
	policy, err := triageCfg.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile triage policy: %w", err)
	}

	consolidator := triage.NewConsolidator(policy, appLogger)
	correlator := triage.NewCorrelator(source, source, source, appLogger)

	// Initialize service layer
	svc := service.NewService(source, consolidator, correlator, cfg.Triage.CacheTTL, appLogger)

	// Initialize API layer
	handlers := api.NewHandlers(svc)

	configAPIKeys := make([]config.APIKey, len(cfg.Auth.APIKeys))
	for i, key := range cfg.Auth.APIKeys {
		configAPIKeys[i] = config.APIKey{
			Name: key.Name,
			Key:  key.Key,
		}
	}
	authMiddleware := api.NewAuthMiddleware(configAPIKeys)
	loggingMiddleware := api.NewLoggingMiddleware(appLogger)
	router := api.NewRouter(handlers, authMiddleware, loggingMiddleware)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Inspector{
		config:  cfg,
		service: svc,
		router:  router,
		server:  srv,
		logger:  appLogger,
	}, nil
}

// Start starts the HTTP server
// This is a blocking call that will run until the context is canceled or an error occurs
func (ins *Inspector) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		ins.logger.Info("starting http server", "port", ins.config.Server.Port)
		serverErrors <- ins.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		ins.logger.Info("shutdown signal received")

		// Graceful shutdown with 30s timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := ins.server.Shutdown(shutdownCtx); err != nil {
			ins.server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		ins.logger.Info("server stopped gracefully")
		return nil
	}
}

// Handler returns the http.Handler for the inspector
// Use this if you want to integrate the inspector into an existing HTTP server
func (ins *Inspector) Handler() http.Handler {
	return ins.router
}

// Service returns the underlying service layer
// Use this for direct programmatic access to inspections and correlation
func (ins *Inspector) Service() *service.Service {
	return ins.service
}

// NewFromConfigFile creates an Inspector from a YAML configuration file.
// Environment variables referenced in the file are expanded before
// parsing, so tokens can stay out of the file itself.
func NewFromConfigFile(path string) (*Inspector, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	insAPIKeys := make([]APIKey, len(cfg.Auth.APIKeys))
	for i, key := range cfg.Auth.APIKeys {
		insAPIKeys[i] = APIKey{
			Name: key.Name,
			Key:  key.Key,
		}
	}

	insConfig := &Config{
		Server: ServerConfig{
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		Auth: AuthConfig{
			APIKeys: insAPIKeys,
		},
		GitLab: GitLabConfig{
			URL:               cfg.GitLab.URL,
			Token:             cfg.GitLab.Token,
			ProjectID:         cfg.GitLab.ProjectID,
			RequestTimeout:    cfg.GitLab.RequestTimeout,
			RequestsPerSecond: cfg.GitLab.RequestsPerSecond,
		},
		Triage: TriageConfig{
			PreserveFullNamePatterns: cfg.Triage.PreserveFullNamePatterns,
			ForceReportPatterns:      cfg.Triage.ForceReportPatterns,
			MaxTruncatedLength:       cfg.Triage.MaxTruncatedLength,
			LogFetchConcurrency:      cfg.Triage.LogFetchConcurrency,
			CacheTTL:                 cfg.Triage.CacheTTL,
		},
		Logging: LoggingConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		},
	}

	return New(insConfig)
}
