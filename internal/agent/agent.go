package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/goremote/internal/config"
	"github.com/mwantia/goremote/pkg/configmgr"
	"github.com/mwantia/goremote/pkg/db/store"
	"github.com/mwantia/goremote/pkg/log"
	"github.com/mwantia/goremote/pkg/remote"
	"github.com/mwantia/goremote/pkg/remote/ftp"
	"github.com/mwantia/goremote/pkg/remote/sftp"
	"golang.org/x/text/language"
)

type GoRemoteAgent struct {
	mutex sync.RWMutex
	wait  sync.WaitGroup

	cfg      *config.BaseConfig
	sc       *container.ServiceContainer
	log      log.LoggerService
	registry *remote.Registry

	store    store.MetadataStore
	profiles *configmgr.StoreProvider
	manager  *configmgr.Manager
}

// NewAgent uses the ftp and sftp providers unless factories are given.
func NewAgent(cfg *config.BaseConfig, factories ...remote.ProviderFactory) *GoRemoteAgent {
	return NewAgentWithLogger(cfg, log.NewLoggerService("goremote", cfg.Log), factories...)
}

func NewAgentWithLogger(cfg *config.BaseConfig, logger log.LoggerService, factories ...remote.ProviderFactory) *GoRemoteAgent {
	if len(factories) == 0 {
		factories = []remote.ProviderFactory{ftp.Factory{}, sftp.Factory{}}
	}
	return &GoRemoteAgent{
		cfg:      cfg,
		sc:       container.NewServiceContainer(),
		log:      logger,
		registry: remote.NewRegistry(factories...),
	}
}

// Setup opens the metadata store, loads the profiles and registers both
// with the service container.
func (gra *GoRemoteAgent) Setup(ctx context.Context) error {
	gra.mutex.Lock()
	defer gra.mutex.Unlock()

	if gra.manager != nil {
		return nil
	}

	st, err := gra.openStore(ctx)
	if err != nil {
		return err
	}

	profiles := configmgr.NewStoreProvider(st, remote.SettingKeys(), remote.SettingPassword)
	manager, err := configmgr.NewManager(ctx, profiles)
	if err != nil {
		st.Close()
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	if gra.cfg.Language != "" {
		manager.SetLanguage(language.Make(gra.cfg.Language))
	}
	manager.Validate(gra.validateProfile)
	if err := manager.Subscribe(gra.currentChanged); err != nil {
		gra.log.Warn("Unable to subscribe to profile changes: %v", err)
	}

	gra.store = st
	gra.profiles = profiles
	gra.manager = manager

	return gra.setupServices(st, manager)
}

func (gra *GoRemoteAgent) openStore(ctx context.Context) (*store.SQLiteStore, error) {
	if gra.cfg.Metadata.Type != "" && gra.cfg.Metadata.Type != "sqlite" {
		return nil, fmt.Errorf("unsupported metadata type '%s'", gra.cfg.Metadata.Type)
	}

	st, err := store.NewSQLiteStore(store.SQLiteConfig{Path: gra.cfg.Metadata.SQLite.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata store: %w", err)
	}
	if err := initStore(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

type storeLifecycle interface {
	Connect(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// initStore connects and migrates st, closing it again on failure.
func initStore(ctx context.Context, st storeLifecycle) error {
	if err := st.Connect(ctx); err != nil {
		st.Close()
		return fmt.Errorf("failed to connect metadata store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return fmt.Errorf("failed to migrate metadata store: %w", err)
	}
	return nil
}

func (gra *GoRemoteAgent) setupServices(st *store.SQLiteStore, manager *configmgr.Manager) error {
	errs := container.Errors{}

	gra.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](gra.sc,
		container.With[log.LoggerService](),
		container.WithInstance(gra.log)))

	gra.log.Debug("Registering 'MetadataStore'...")
	errs.Add(container.Register[store.SQLiteStore](gra.sc,
		container.With[store.MetadataStore](),
		container.WithInstance(st)))

	gra.log.Debug("Registering 'Manager'...")
	errs.Add(container.Register[configmgr.Manager](gra.sc,
		container.WithInstance(manager)))

	return errs.Errors()
}

func (gra *GoRemoteAgent) currentChanged(previous, current string) {
	gra.log.Info("Current profile changed from '%s' to '%s'", gra.ProfileName(previous), gra.ProfileName(current))
}

func (gra *GoRemoteAgent) validateProfile(cfg *configmgr.Configuration) error {
	if cfg.IsDefault() {
		return nil
	}
	if _, err := gra.registry.NewProvider(cfg); err != nil {
		return err
	}
	if cfg.Value(remote.SettingLocalDirectory) == "" {
		return fmt.Errorf("'%s' is not set", remote.SettingLocalDirectory)
	}
	return nil
}

func (gra *GoRemoteAgent) Logger() log.LoggerService {
	return gra.log
}

func (gra *GoRemoteAgent) Store() store.MetadataStore {
	gra.mutex.RLock()
	defer gra.mutex.RUnlock()
	return gra.store
}

func (gra *GoRemoteAgent) Manager() *configmgr.Manager {
	gra.mutex.RLock()
	defer gra.mutex.RUnlock()
	return gra.manager
}

// ProtocolTypes lists the protocols profiles may use.
func (gra *GoRemoteAgent) ProtocolTypes() []string {
	return gra.registry.Types()
}

// Persist writes the in-memory profiles back to the metadata store.
func (gra *GoRemoteAgent) Persist(ctx context.Context) error {
	gra.mutex.RLock()
	defer gra.mutex.RUnlock()

	if gra.manager == nil {
		return fmt.Errorf("agent has not been set up")
	}
	gra.manager.Validate(gra.validateProfile)
	return gra.profiles.Persist(ctx, gra.manager)
}

// Close cleans up the service container and the metadata store.
func (gra *GoRemoteAgent) Close(ctx context.Context) error {
	gra.mutex.Lock()
	defer gra.mutex.Unlock()

	errs := container.Errors{}
	if err := gra.sc.Cleanup(ctx); err != nil {
		errs.Add(fmt.Errorf("failed to complete service container cleanup: %w", err))
	}
	if gra.store != nil {
		errs.Add(gra.store.Close())
		gra.store = nil
	}
	gra.manager = nil

	if closer, ok := gra.log.(interface{ Close() error }); ok {
		errs.Add(closer.Close())
	}
	return errs.Errors()
}

// ProfileName is name, or the localized default label for the default profile.
func (gra *GoRemoteAgent) ProfileName(name string) string {
	if name != configmgr.DefaultName {
		return name
	}
	if manager := gra.Manager(); manager != nil {
		return manager.DefaultLabel()
	}
	return configmgr.DefaultLabel(language.Und)
}
