package db_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultd-labs/vaultd/internal/core/domain"
	"github.com/vaultd-labs/vaultd/internal/core/ports"
	"github.com/vaultd-labs/vaultd/internal/infrastructure/db"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/value"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/vault"
)

var (
	vaultScriptHash = strings.Repeat("11", 28)
	ownerKeyHash    = strings.Repeat("ab", 28)
	assetPolicy     = strings.Repeat("22", 28)

	vaultAddress = ledger.Address{Payment: ledger.ScriptCredential(vaultScriptHash)}
)

func TestVaultRepository(t *testing.T) {
	stores := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "badger",
			config: db.ServiceConfig{
				DataStoreType:   "badger",
				DataStoreConfig: []interface{}{"", nil},
			},
		},
		{
			name: "sqlite",
			config: db.ServiceConfig{
				DataStoreType:   "sqlite",
				DataStoreConfig: []interface{}{t.TempDir()},
			},
		},
	}

	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			svc, err := db.NewService(store.config)
			require.NoError(t, err)
			defer svc.Close()

			testAddAndGetVaults(t, svc)
			testGetUnlockingVaults(t, svc)
			testSpendVaults(t, svc)
		})
	}
}

func testAddAndGetVaults(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()
	repo := svc.Vaults()

	vaults := []domain.VaultUtxo{
		newLockedVault(strings.Repeat("aa", 32), 0, 100),
		newLockedVault(strings.Repeat("aa", 32), 1, 250),
		newUnlockingVault(strings.Repeat("bb", 32), 0, 4000),
	}

	require.NoError(t, repo.AddVaults(ctx, vaults))
	// re-adding the same refs must not fail nor duplicate
	require.NoError(t, repo.AddVaults(ctx, vaults[:1]))

	got, err := repo.GetVault(ctx, vaults[0].Ref)
	require.NoError(t, err)
	require.Equal(t, vaults[0].Ref, got.Ref)
	require.Equal(t, vaults[0].Address, got.Address)
	require.True(t, got.Value.Equal(vaults[0].Value))
	require.Equal(t, vaults[0].Record, got.Record)
	require.False(t, got.Spent)

	_, err = repo.GetVault(ctx, ledger.OutRef{TxID: strings.Repeat("ff", 32), Index: 9})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")

	found, err := repo.GetVaults(ctx, []ledger.OutRef{
		vaults[0].Ref,
		{TxID: strings.Repeat("ff", 32), Index: 9},
		vaults[2].Ref,
	})
	require.NoError(t, err)
	require.Len(t, found, 2)

	all, err := repo.GetAllVaults(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func testGetUnlockingVaults(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()
	repo := svc.Vaults()

	unlocking, err := repo.GetUnlockingVaults(ctx, 4000)
	require.NoError(t, err)
	require.Len(t, unlocking, 1)
	require.Equal(t, int64(4000), unlocking[0].Record.Status.UnlockDeadline)

	unlocking, err = repo.GetUnlockingVaults(ctx, 3999)
	require.NoError(t, err)
	require.Empty(t, unlocking)
}

func testSpendVaults(t *testing.T, svc ports.RepoManager) {
	ctx := context.Background()
	repo := svc.Vaults()

	ref := ledger.OutRef{TxID: strings.Repeat("bb", 32), Index: 0}
	spendingTxid := strings.Repeat("cc", 32)

	require.NoError(t, repo.SpendVaults(ctx, map[ledger.OutRef]string{ref: spendingTxid}))

	got, err := repo.GetVault(ctx, ref)
	require.NoError(t, err)
	require.True(t, got.Spent)
	require.Equal(t, spendingTxid, got.SpentBy)

	// spent vaults are no longer claimable
	unlocking, err := repo.GetUnlockingVaults(ctx, 4000)
	require.NoError(t, err)
	require.Empty(t, unlocking)

	// spending again must not overwrite the spender
	require.NoError(t, repo.SpendVaults(
		ctx, map[ledger.OutRef]string{ref: strings.Repeat("dd", 32)},
	))
	got, err = repo.GetVault(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, spendingTxid, got.SpentBy)
}

func newLockedVault(txid string, index uint32, coin int64) domain.VaultUtxo {
	return domain.VaultUtxo{
		Ref:     ledger.OutRef{TxID: txid, Index: index},
		Address: vaultAddress,
		Value: value.New(
			value.Entry{Quantity: coin},
			value.Entry{
				Asset:    value.Asset{PolicyID: assetPolicy, Name: "0102"},
				Quantity: 1,
			},
		),
		Record: vault.Record{
			Owner:  vault.KeyOwner(ownerKeyHash),
			Status: vault.Locked(),
		},
		CreatedAt: 1000,
	}
}

func newUnlockingVault(txid string, index uint32, deadline int64) domain.VaultUtxo {
	return domain.VaultUtxo{
		Ref:     ledger.OutRef{TxID: txid, Index: index},
		Address: vaultAddress,
		Value:   value.FromCoin(500),
		Record: vault.Record{
			Owner: vault.KeyOwner(ownerKeyHash),
			Status: vault.Unlocking(
				ledger.OutRef{TxID: strings.Repeat("aa", 32), Index: 2}, deadline,
			),
		},
		CreatedAt: 1000,
	}
}
