package db

import (
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/vaultd-labs/vaultd/internal/core/domain"
	"github.com/vaultd-labs/vaultd/internal/core/ports"
	badgerdb "github.com/vaultd-labs/vaultd/internal/infrastructure/db/badger"
	sqlitedb "github.com/vaultd-labs/vaultd/internal/infrastructure/db/sqlite"
)

//go:embed sqlite/migration/*
var migrations embed.FS

var vaultStoreTypes = map[string]func(...interface{}) (domain.VaultRepository, error){
	"badger": badgerdb.NewVaultRepository,
	"sqlite": sqlitedb.NewVaultRepository,
}

const sqliteDbFile = "sqlite.db"

type ServiceConfig struct {
	DataStoreType   string
	DataStoreConfig []interface{}
}

type service struct {
	vaultStore domain.VaultRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	vaultStoreFactory, ok := vaultStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	var vaultStore domain.VaultRepository
	var err error

	switch config.DataStoreType {
	case "badger":
		vaultStore, err = vaultStoreFactory(config.DataStoreConfig...)
		if err != nil {
			return nil, fmt.Errorf("failed to open vault store: %s", err)
		}
	case "sqlite":
		if len(config.DataStoreConfig) != 1 {
			return nil, fmt.Errorf("invalid data store config for sqlite")
		}
		baseDir, ok := config.DataStoreConfig[0].(string)
		if !ok {
			return nil, fmt.Errorf("invalid base directory for sqlite")
		}

		db, err := sqlitedb.OpenDb(filepath.Join(baseDir, sqliteDbFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite db: %s", err)
		}

		driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to init sqlite migration driver: %s", err)
		}
		source, err := iofs.New(migrations, "sqlite/migration")
		if err != nil {
			return nil, fmt.Errorf("failed to embed sqlite migrations: %s", err)
		}
		m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite migration instance: %s", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("failed to run sqlite migrations: %s", err)
		}

		vaultStore, err = vaultStoreFactory(db)
		if err != nil {
			return nil, fmt.Errorf("failed to open vault store: %s", err)
		}
	}

	return &service{vaultStore}, nil
}

func (s *service) Vaults() domain.VaultRepository {
	return s.vaultStore
}

func (s *service) Close() {
	s.vaultStore.Close()
}
