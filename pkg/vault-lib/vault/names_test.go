package vault_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/vault"
)

func TestDeriveNamesIsDeterministic(t *testing.T) {
	t.Parallel()

	seed := ledger.OutRef{TxID: strings.Repeat("01", 32), Index: 3}

	first, err := vault.DeriveNames(seed, 3)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := vault.DeriveNames(seed, 3)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestDeriveNamesDisjointAcrossSeeds(t *testing.T) {
	t.Parallel()

	seedA := ledger.OutRef{TxID: strings.Repeat("01", 32), Index: 0}
	seedB := ledger.OutRef{TxID: strings.Repeat("02", 32), Index: 0}
	seedC := ledger.OutRef{TxID: strings.Repeat("01", 32), Index: 1}

	namesA, err := vault.DeriveNames(seedA, 3)
	require.NoError(t, err)
	namesB, err := vault.DeriveNames(seedB, 3)
	require.NoError(t, err)
	namesC, err := vault.DeriveNames(seedC, 3)
	require.NoError(t, err)

	for name := range namesA {
		require.NotContains(t, namesB, name)
		require.NotContains(t, namesC, name)
	}
}

func TestDeriveNamesZeroCount(t *testing.T) {
	t.Parallel()

	names, err := vault.DeriveNames(ledger.OutRef{TxID: strings.Repeat("03", 32)}, 0)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestDeriveNamesNegativeCount(t *testing.T) {
	t.Parallel()

	_, err := vault.DeriveNames(ledger.OutRef{TxID: strings.Repeat("03", 32)}, -1)
	require.Error(t, err)
}

func TestDeriveNamesRejectsBadSeed(t *testing.T) {
	t.Parallel()

	_, err := vault.DeriveNames(ledger.OutRef{TxID: "zz"}, 1)
	require.Error(t, err)
}
