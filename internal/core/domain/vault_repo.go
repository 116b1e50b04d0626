package domain

import (
	"context"

	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
)

type VaultRepository interface {
	AddVaults(ctx context.Context, vaults []VaultUtxo) error
	GetVault(ctx context.Context, ref ledger.OutRef) (*VaultUtxo, error)
	GetVaults(ctx context.Context, refs []ledger.OutRef) ([]VaultUtxo, error)
	GetAllVaults(ctx context.Context) ([]VaultUtxo, error)
	// GetUnlockingVaults returns the unspent unlocking vaults whose
	// deadline is at or before maxDeadline.
	GetUnlockingVaults(ctx context.Context, maxDeadline int64) ([]VaultUtxo, error)
	SpendVaults(ctx context.Context, spentVaults map[ledger.OutRef]string) error
	Close()
}
