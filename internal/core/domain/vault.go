package domain

import (
	"encoding/json"

	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/value"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/vault"
)

// VaultUtxo is a live vault output tracked by the host: the locked value
// bundle together with the record attached to it. One row exists per
// unspent vault output; it is marked spent when a transaction consuming it
// is accepted.
type VaultUtxo struct {
	Ref       ledger.OutRef
	Address   ledger.Address
	Value     value.Value
	Record    vault.Record
	Spent     bool
	SpentBy   string // txid of the accepted transaction that consumed it
	CreatedAt int64
}

func (v VaultUtxo) String() string {
	// nolint
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func (v VaultUtxo) IsUnlocking() bool {
	return v.Record.Status.Kind == vault.StatusUnlocking
}

// Claimable reports whether the unlock deadline has elapsed at the given
// ledger time.
func (v VaultUtxo) Claimable(now int64) bool {
	return v.IsUnlocking() && now >= v.Record.Status.UnlockDeadline
}

// Output rebuilds the ledger output this vault utxo was created from.
func (v VaultUtxo) Output() (ledger.Output, error) {
	datum, err := v.Record.Datum()
	if err != nil {
		return ledger.Output{}, err
	}
	return ledger.Output{Address: v.Address, Value: v.Value, Datum: datum}, nil
}
