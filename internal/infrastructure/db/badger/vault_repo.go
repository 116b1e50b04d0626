package badgerdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/vaultd-labs/vaultd/internal/core/domain"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
)

const vaultStoreDir = "vaults"

type vaultRepository struct {
	store *badgerhold.Store
}

// vaultDTO flattens the queryable record fields next to the entity so that
// badgerhold indexes can reach them.
type vaultDTO struct {
	domain.VaultUtxo
	Unlocking      bool
	UnlockDeadline int64
	UpdatedAt      int64
}

func newVaultDTO(vault domain.VaultUtxo) vaultDTO {
	return vaultDTO{
		VaultUtxo:      vault,
		Unlocking:      vault.IsUnlocking(),
		UnlockDeadline: vault.Record.Status.UnlockDeadline,
		UpdatedAt:      time.Now().UnixMilli(),
	}
}

func NewVaultRepository(config ...interface{}) (domain.VaultRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, vaultStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault store: %s", err)
	}

	return &vaultRepository{store}, nil
}

func (r *vaultRepository) AddVaults(
	ctx context.Context, vaults []domain.VaultUtxo,
) error {
	for _, vault := range vaults {
		dto := newVaultDTO(vault)
		key := vault.Ref.String()
		var insertFn func() error
		if ctx.Value("tx") != nil {
			tx := ctx.Value("tx").(*badger.Txn)
			insertFn = func() error {
				return r.store.TxInsert(tx, key, dto)
			}
		} else {
			insertFn = func() error {
				return r.store.Insert(key, dto)
			}
		}
		if err := insertFn(); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				continue
			}
			if errors.Is(err, badger.ErrConflict) {
				attempts := 1
				for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
					time.Sleep(100 * time.Millisecond)
					err = insertFn()
					attempts++
				}
			}
			return err
		}
	}
	return nil
}

func (r *vaultRepository) GetVault(
	ctx context.Context, ref ledger.OutRef,
) (*domain.VaultUtxo, error) {
	vault, err := r.getVault(ctx, ref)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		return nil, fmt.Errorf("vault %s not found", ref)
	}
	return vault, nil
}

func (r *vaultRepository) GetVaults(
	ctx context.Context, refs []ledger.OutRef,
) ([]domain.VaultUtxo, error) {
	vaults := make([]domain.VaultUtxo, 0, len(refs))
	for _, ref := range refs {
		vault, err := r.getVault(ctx, ref)
		if err != nil {
			return nil, err
		}
		if vault == nil {
			continue
		}
		vaults = append(vaults, *vault)
	}
	return vaults, nil
}

func (r *vaultRepository) GetAllVaults(ctx context.Context) ([]domain.VaultUtxo, error) {
	return r.findVaults(ctx, &badgerhold.Query{})
}

func (r *vaultRepository) GetUnlockingVaults(
	ctx context.Context, maxDeadline int64,
) ([]domain.VaultUtxo, error) {
	query := badgerhold.Where("Unlocking").Eq(true).
		And("Spent").Eq(false).
		And("UnlockDeadline").Le(maxDeadline)
	return r.findVaults(ctx, query)
}

func (r *vaultRepository) SpendVaults(
	ctx context.Context, spentVaults map[ledger.OutRef]string,
) error {
	for ref, spentBy := range spentVaults {
		if err := r.spendVault(ctx, ref, spentBy); err != nil {
			return err
		}
	}
	return nil
}

func (r *vaultRepository) Close() {
	// nolint:all
	r.store.Close()
}

func (r *vaultRepository) getVault(
	ctx context.Context, ref ledger.OutRef,
) (*domain.VaultUtxo, error) {
	var dto vaultDTO
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxGet(tx, ref.String(), &dto)
	} else {
		err = r.store.Get(ref.String(), &dto)
	}
	if err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &dto.VaultUtxo, nil
}

func (r *vaultRepository) spendVault(
	ctx context.Context, ref ledger.OutRef, spentBy string,
) error {
	vault, err := r.getVault(ctx, ref)
	if err != nil {
		return err
	}
	if vault == nil {
		return nil
	}
	if vault.Spent {
		return nil
	}

	vault.Spent = true
	vault.SpentBy = spentBy

	return r.updateVault(ctx, vault)
}

func (r *vaultRepository) findVaults(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.VaultUtxo, error) {
	vaults := make([]domain.VaultUtxo, 0)
	dtos := make([]vaultDTO, 0)
	var err error

	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxFind(tx, &dtos, query)
	} else {
		err = r.store.Find(&dtos, query)
	}

	for _, dto := range dtos {
		vaults = append(vaults, dto.VaultUtxo)
	}
	return vaults, err
}

func (r *vaultRepository) updateVault(ctx context.Context, vault *domain.VaultUtxo) error {
	dto := newVaultDTO(*vault)
	var updateFn func() error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		updateFn = func() error {
			return r.store.TxUpdate(tx, vault.Ref.String(), dto)
		}
	} else {
		updateFn = func() error {
			return r.store.Update(vault.Ref.String(), dto)
		}
	}

	if err := updateFn(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			attempts := 1
			for errors.Is(err, badger.ErrConflict) && attempts <= maxRetries {
				time.Sleep(100 * time.Millisecond)
				err = updateFn()
				attempts++
			}
		}
		return err
	}
	return nil
}
