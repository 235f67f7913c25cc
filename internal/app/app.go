package app

import (
	"fmt"
	"os"
	"time"

	"filekeep/internal/compress"
	"filekeep/internal/config"
	"filekeep/internal/encryption"
	"filekeep/internal/keep"
	"filekeep/internal/search"
	"filekeep/internal/store"
	"filekeep/internal/sync"
)

// App is the application layer between the CLI and the keep.Service.
// It constructs all collaborators from config, optionally runs the
// synchronization engine, and manages resource lifecycles on Close.
type App struct {
	cfg      *config.Config
	metadata keep.MetadataStore
	comments keep.CommentStore
	indexer  keep.Indexer
	shares   *keep.ShareRegistry
	service  *keep.Service
	engine   *sync.Engine
	logFile  *os.File
}

// New creates a fully wired App from the given config. When withSync
// is true the filesystem synchronizer is started as well. The caller
// must call Close when done.
func New(cfg *config.Config, withSync bool) (*App, error) {
	logger, logFile, err := newLogger(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	if cfg.InstanceID != "" {
		logger.Debug("starting", "instance", cfg.InstanceID)
	}

	metadata, comments, err := store.NewStoresFromConfig(cfg.Store)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating stores: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		metadata.Close()
		comments.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if age, ok := enc.(*encryption.AgeEncryptor); ok && age.Ephemeral {
		logger.Warn("no encryption identity configured, using ephemeral key; encrypted files are unrecoverable after this process exits")
	}

	indexer, err := search.NewIndexerFromConfig(cfg.Search)
	if err != nil {
		metadata.Close()
		comments.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating indexer: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.Root, 0755); err != nil {
		metadata.Close()
		comments.Close()
		indexer.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating storage root: %w", err)
	}

	shares := keep.NewShareRegistry(keep.RealClock{})
	svc := keep.NewService(keep.ServiceConfig{
		Root:                 cfg.Storage.Root,
		Store:                metadata,
		Comments:             comments,
		Shares:               shares,
		Indexer:              indexer,
		Compressor:           compress.New(),
		Encryptor:            enc,
		Logger:               logger,
		CompressionThreshold: cfg.Storage.CompressionThreshold,
		MaxUploadSize:        cfg.Storage.MaxUploadSize,
	})

	a := &App{
		cfg:      cfg,
		metadata: metadata,
		comments: comments,
		indexer:  indexer,
		shares:   shares,
		service:  svc,
		logFile:  logFile,
	}

	if withSync && cfg.Sync.Enabled {
		replica, err := sync.NewReplicaFromConfig(cfg.Sync.Replica)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating replica: %w", err)
		}
		engine := sync.NewEngine(cfg.Storage.Root, replica, cfg.Sync.QueueSize, logger)
		if err := engine.Start(); err != nil {
			a.Close()
			return nil, fmt.Errorf("starting sync engine: %w", err)
		}
		a.engine = engine
	}

	return a, nil
}

// Service returns the underlying file lifecycle service.
func (a *App) Service() *keep.Service { return a.service }

// ShareTTL returns the configured default share lifetime.
func (a *App) ShareTTL() time.Duration { return a.cfg.ShareTTL() }

// Close stops the sync engine if running and releases all resources.
// The first error encountered is returned; later cleanup still runs.
func (a *App) Close() error {
	var firstErr error

	if a.engine != nil {
		a.engine.Stop(a.cfg.StopTimeout())
	}

	if err := a.metadata.Close(); err != nil {
		firstErr = fmt.Errorf("closing metadata store: %w", err)
	}
	if err := a.comments.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing comment store: %w", err)
	}
	if err := a.indexer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing indexer: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
