package vault_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vaultd-labs/vaultd/pkg/errors"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/value"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/vault"
)

var (
	vaultScriptHash = strings.Repeat("11", 28)
	proofPolicy     = strings.Repeat("22", 28)
	proofName       = "70726f6f66" // "proof"
	assetX          = value.Asset{PolicyID: strings.Repeat("33", 28), Name: "58"}

	vaultAddress = ledger.Address{Payment: ledger.ScriptCredential(vaultScriptHash)}
	ownRef       = ledger.OutRef{TxID: strings.Repeat("aa", 32), Index: 0}
	proofRef     = ledger.OutRef{TxID: strings.Repeat("bb", 32), Index: 1}
)

func mustDatum(t *testing.T, rec vault.Record) []byte {
	t.Helper()
	datum, err := rec.Datum()
	require.NoError(t, err)
	return datum
}

func requireRejected(t *testing.T, err errors.Error, codeName string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, codeName, err.CodeName())
}

// lockedInput returns the vault input under test holding {coin:100, X:5}.
func lockedInput() ledger.Input {
	return ledger.Input{
		Ref: ownRef,
		Output: ledger.Output{
			Address: vaultAddress,
			Value: value.New(
				value.Entry{Quantity: 100},
				value.Entry{Asset: assetX, Quantity: 5},
			),
		},
	}
}

func TestUnlockRequestByKeyOwner(t *testing.T) {
	t.Parallel()

	record := vault.Record{Owner: vault.KeyOwner(testKeyHash), Status: vault.Locked()}
	continuation := vault.Record{
		Owner:  vault.KeyOwner(testKeyHash),
		Status: vault.Unlocking(ownRef, 1000+vault.MinimumLockTime),
	}

	newTx := func(outValue value.Value) ledger.Tx {
		return ledger.Tx{
			ID:     strings.Repeat("dd", 32),
			Inputs: []ledger.Input{lockedInput()},
			Outputs: []ledger.Output{
				{
					Address: vaultAddress,
					Value:   outValue,
					Datum:   mustDatum(t, continuation),
				},
			},
			ValidRange: ledger.TimeRange{Upper: ledger.FiniteBound(1000)},
			Signers:    []string{testKeyHash},
		}
	}

	t.Run("signed full unlock succeeds", func(t *testing.T) {
		tx := newTx(value.New(
			value.Entry{Quantity: 100},
			value.Entry{Asset: assetX, Quantity: 5},
		))
		require.NoError(t, vault.EvaluateSpend(tx, ownRef, record, vault.Request{}))
	})

	t.Run("excess base currency is allowed", func(t *testing.T) {
		tx := newTx(value.New(
			value.Entry{Quantity: 150},
			value.Entry{Asset: assetX, Quantity: 5},
		))
		require.NoError(t, vault.EvaluateSpend(tx, ownRef, record, vault.Request{}))
	})

	t.Run("unsigned fails", func(t *testing.T) {
		tx := newTx(value.New(
			value.Entry{Quantity: 100},
			value.Entry{Asset: assetX, Quantity: 5},
		))
		tx.Signers = nil
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.UNAUTHORIZED_OWNER.Name,
		)
	})

	t.Run("dropped asset fails", func(t *testing.T) {
		tx := newTx(value.New(
			value.Entry{Quantity: 100},
			value.Entry{Asset: assetX, Quantity: 4},
		))
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.VALUE_NOT_CONSERVED.Name,
		)
	})

	t.Run("foreign address fails", func(t *testing.T) {
		tx := newTx(value.New(
			value.Entry{Quantity: 100},
			value.Entry{Asset: assetX, Quantity: 5},
		))
		tx.Outputs[0].Address = ledger.Address{Payment: ledger.KeyCredential(testKeyHash)}
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.VALUE_NOT_CONSERVED.Name,
		)
	})

	t.Run("unbounded upper bound fails", func(t *testing.T) {
		tx := newTx(value.New(
			value.Entry{Quantity: 100},
			value.Entry{Asset: assetX, Quantity: 5},
		))
		tx.ValidRange.Upper = ledger.UnboundedBound()
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.INVALID_TIME_BOUND.Name,
		)
	})

	t.Run("wrong deadline in continuation fails", func(t *testing.T) {
		wrong := vault.Record{
			Owner:  vault.KeyOwner(testKeyHash),
			Status: vault.Unlocking(ownRef, 1000+vault.MinimumLockTime+1),
		}
		tx := newTx(value.New(
			value.Entry{Quantity: 100},
			value.Entry{Asset: assetX, Quantity: 5},
		))
		tx.Outputs[0].Datum = mustDatum(t, wrong)
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.ALIGNMENT_NOT_FOUND.Name,
		)
	})

	t.Run("not consumed by the transaction fails", func(t *testing.T) {
		tx := newTx(value.New(value.Entry{Quantity: 100}))
		otherRef := ledger.OutRef{TxID: strings.Repeat("ee", 32), Index: 9}
		requireRejected(
			t,
			vault.EvaluateSpend(tx, otherRef, record, vault.Request{}),
			errors.MALFORMED_PURPOSE.Name,
		)
	})

	t.Run("outputs before the alignment point are ignored", func(t *testing.T) {
		tx := newTx(value.New(
			value.Entry{Quantity: 100},
			value.Entry{Asset: assetX, Quantity: 5},
		))
		decoy := ledger.Output{
			Address: ledger.Address{Payment: ledger.KeyCredential(testKeyHash)},
			Value:   value.FromCoin(1),
		}
		tx.Outputs = append([]ledger.Output{decoy, decoy}, tx.Outputs...)
		require.NoError(t, vault.EvaluateSpend(tx, ownRef, record, vault.Request{}))
	})
}

func TestPartialUnlockRequest(t *testing.T) {
	t.Parallel()

	record := vault.Record{Owner: vault.KeyOwner(testKeyHash), Status: vault.Locked()}
	continuation := vault.Record{
		Owner:  vault.KeyOwner(testKeyHash),
		Status: vault.Unlocking(ownRef, 1000+vault.MinimumLockTime),
	}
	remainderRecord := vault.Record{Owner: vault.KeyOwner(testKeyHash), Status: vault.Locked()}

	newTx := func(withdrawal, remainder value.Value) ledger.Tx {
		return ledger.Tx{
			ID:     strings.Repeat("dd", 32),
			Inputs: []ledger.Input{lockedInput()},
			Outputs: []ledger.Output{
				{
					Address: vaultAddress,
					Value:   withdrawal,
					Datum:   mustDatum(t, continuation),
				},
				{
					Address: vaultAddress,
					Value:   remainder,
					Datum:   mustDatum(t, remainderRecord),
				},
			},
			ValidRange: ledger.TimeRange{Upper: ledger.FiniteBound(1000)},
			Signers:    []string{testKeyHash},
		}
	}
	partial := vault.Request{Partial: true}

	t.Run("conserving split succeeds", func(t *testing.T) {
		tx := newTx(
			value.FromCoin(40),
			value.New(value.Entry{Quantity: 60}, value.Entry{Asset: assetX, Quantity: 5}),
		)
		require.NoError(t, vault.EvaluateSpend(tx, ownRef, record, partial))
	})

	t.Run("asset shortfall in remainder fails", func(t *testing.T) {
		tx := newTx(
			value.FromCoin(40),
			value.New(value.Entry{Quantity: 60}, value.Entry{Asset: assetX, Quantity: 4}),
		)
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, partial),
			errors.VALUE_NOT_CONSERVED.Name,
		)
	})

	t.Run("base currency shortfall fails", func(t *testing.T) {
		tx := newTx(
			value.FromCoin(40),
			value.New(value.Entry{Quantity: 59}, value.Entry{Asset: assetX, Quantity: 5}),
		)
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, partial),
			errors.VALUE_NOT_CONSERVED.Name,
		)
	})

	t.Run("missing remainder output fails", func(t *testing.T) {
		tx := newTx(value.FromCoin(40), value.FromCoin(60))
		tx.Outputs = tx.Outputs[:1]
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, partial),
			errors.ALIGNMENT_NOT_FOUND.Name,
		)
	})

	t.Run("remainder skipping straight to unlocking fails", func(t *testing.T) {
		tx := newTx(
			value.FromCoin(40),
			value.New(value.Entry{Quantity: 60}, value.Entry{Asset: assetX, Quantity: 5}),
		)
		tx.Outputs[1].Datum = mustDatum(t, continuation)
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, partial),
			errors.ALIGNMENT_NOT_FOUND.Name,
		)
	})

	t.Run("remainder at foreign address fails", func(t *testing.T) {
		tx := newTx(
			value.FromCoin(40),
			value.New(value.Entry{Quantity: 60}, value.Entry{Asset: assetX, Quantity: 5}),
		)
		tx.Outputs[1].Address = ledger.Address{Payment: ledger.KeyCredential(testKeyHash)}
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, partial),
			errors.VALUE_NOT_CONSERVED.Name,
		)
	})
}

func TestClaimAfterDeadline(t *testing.T) {
	t.Parallel()

	deadline := int64(3000)
	record := vault.Record{
		Owner:  vault.KeyOwner(testKeyHash),
		Status: vault.Unlocking(ownRef, deadline),
	}

	newTx := func(lower ledger.Bound) ledger.Tx {
		return ledger.Tx{
			ID:     strings.Repeat("dd", 32),
			Inputs: []ledger.Input{lockedInput()},
			Outputs: []ledger.Output{
				// any output shape is fine once the wait has elapsed
				{
					Address: ledger.Address{Payment: ledger.KeyCredential(testKeyHash)},
					Value:   value.FromCoin(100),
				},
			},
			ValidRange: ledger.TimeRange{Lower: lower},
			Signers:    []string{testKeyHash},
		}
	}

	t.Run("claim at the deadline succeeds", func(t *testing.T) {
		tx := newTx(ledger.FiniteBound(deadline))
		require.NoError(t, vault.EvaluateSpend(tx, ownRef, record, vault.Request{}))
	})

	t.Run("claim after the deadline succeeds", func(t *testing.T) {
		tx := newTx(ledger.FiniteBound(deadline + 500))
		require.NoError(t, vault.EvaluateSpend(tx, ownRef, record, vault.Request{}))
	})

	t.Run("claim before the deadline fails", func(t *testing.T) {
		tx := newTx(ledger.FiniteBound(deadline - 1))
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.INVALID_TIME_BOUND.Name,
		)
	})

	t.Run("unbounded lower bound fails", func(t *testing.T) {
		tx := newTx(ledger.UnboundedBound())
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.INVALID_TIME_BOUND.Name,
		)
	})

	t.Run("claim still requires owner authorization", func(t *testing.T) {
		tx := newTx(ledger.FiniteBound(deadline))
		tx.Signers = nil
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.UNAUTHORIZED_OWNER.Name,
		)
	})
}

func TestUnlockRequestByAssetOwner(t *testing.T) {
	t.Parallel()

	owner := vault.AssetOwner(proofPolicy, proofName)
	record := vault.Record{Owner: owner, Status: vault.Locked()}
	continuation := vault.Record{
		Owner:  owner,
		Status: vault.Unlocking(ownRef, 1000+vault.MinimumLockTime),
	}

	newTx := func(proofQuantity int64) ledger.Tx {
		return ledger.Tx{
			ID: strings.Repeat("dd", 32),
			Inputs: []ledger.Input{
				lockedInput(),
				{
					Ref: proofRef,
					Output: ledger.Output{
						Address: ledger.Address{Payment: ledger.KeyCredential(testKeyHash)},
						Value: value.New(
							value.Entry{Quantity: 2},
							value.Entry{
								Asset:    value.Asset{PolicyID: proofPolicy, Name: proofName},
								Quantity: proofQuantity,
							},
						),
					},
				},
			},
			Outputs: []ledger.Output{
				{
					Address: vaultAddress,
					Value: value.New(
						value.Entry{Quantity: 100},
						value.Entry{Asset: assetX, Quantity: 5},
					),
					Datum: mustDatum(t, continuation),
				},
			},
			ValidRange: ledger.TimeRange{Upper: ledger.FiniteBound(1000)},
		}
	}

	t.Run("proof input with exactly one unit succeeds", func(t *testing.T) {
		tx := newTx(1)
		req := vault.Request{ProofInputRef: &proofRef}
		require.NoError(t, vault.EvaluateSpend(tx, ownRef, record, req))
	})

	t.Run("missing proof reference fails", func(t *testing.T) {
		tx := newTx(1)
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.MISSING_PROOF_INPUT.Name,
		)
	})

	t.Run("reference to an absent input fails", func(t *testing.T) {
		tx := newTx(1)
		absent := ledger.OutRef{TxID: strings.Repeat("ee", 32), Index: 4}
		req := vault.Request{ProofInputRef: &absent}
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, req),
			errors.MISSING_PROOF_INPUT.Name,
		)
	})

	t.Run("two units of the proof asset fails", func(t *testing.T) {
		tx := newTx(2)
		req := vault.Request{ProofInputRef: &proofRef}
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, req),
			errors.UNAUTHORIZED_OWNER.Name,
		)
	})
}

func TestUnlockRequestByReceiptOwner(t *testing.T) {
	t.Parallel()

	receiptName := "1234"
	nextName := "5678"
	record := vault.Record{Owner: vault.ReceiptOwner(receiptName), Status: vault.Locked()}
	continuation := vault.Record{
		Owner:  vault.ReceiptOwner(nextName),
		Status: vault.Unlocking(ownRef, 1000+vault.MinimumLockTime),
	}
	request := vault.Request{NextReceiptName: nextName}

	newTx := func(mint value.Value) ledger.Tx {
		return ledger.Tx{
			ID:     strings.Repeat("dd", 32),
			Inputs: []ledger.Input{lockedInput()},
			Outputs: []ledger.Output{
				{
					Address: vaultAddress,
					Value: value.New(
						value.Entry{Quantity: 100},
						value.Entry{Asset: assetX, Quantity: 5},
					),
					Datum: mustDatum(t, continuation),
				},
			},
			Mint:       mint,
			ValidRange: ledger.TimeRange{Upper: ledger.FiniteBound(1000)},
		}
	}
	burnAndReplace := value.New(
		value.Entry{
			Asset:    value.Asset{PolicyID: vaultScriptHash, Name: receiptName},
			Quantity: -1,
		},
		value.Entry{
			Asset:    value.Asset{PolicyID: vaultScriptHash, Name: nextName},
			Quantity: 1,
		},
	)

	t.Run("burn plus replacement mint succeeds", func(t *testing.T) {
		tx := newTx(burnAndReplace)
		require.NoError(t, vault.EvaluateSpend(tx, ownRef, record, request))
	})

	t.Run("missing next receipt name fails", func(t *testing.T) {
		tx := newTx(burnAndReplace)
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, vault.Request{}),
			errors.UNAUTHORIZED_OWNER.Name,
		)
	})

	t.Run("missing burn fails", func(t *testing.T) {
		tx := newTx(value.New(value.Entry{
			Asset:    value.Asset{PolicyID: vaultScriptHash, Name: nextName},
			Quantity: 1,
		}))
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, request),
			errors.UNAUTHORIZED_OWNER.Name,
		)
	})

	t.Run("missing replacement mint fails while locked", func(t *testing.T) {
		tx := newTx(value.New(value.Entry{
			Asset:    value.Asset{PolicyID: vaultScriptHash, Name: receiptName},
			Quantity: -1,
		}))
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, request),
			errors.UNAUTHORIZED_OWNER.Name,
		)
	})

	t.Run("key credential input fails", func(t *testing.T) {
		tx := newTx(burnAndReplace)
		tx.Inputs[0].Output.Address = ledger.Address{Payment: ledger.KeyCredential(testKeyHash)}
		requireRejected(
			t,
			vault.EvaluateSpend(tx, ownRef, record, request),
			errors.UNAUTHORIZED_OWNER.Name,
		)
	})

	t.Run("no replacement mint required while unlocking", func(t *testing.T) {
		unlocking := vault.Record{
			Owner:  vault.ReceiptOwner(receiptName),
			Status: vault.Unlocking(ownRef, 500),
		}
		tx := newTx(value.New(value.Entry{
			Asset:    value.Asset{PolicyID: vaultScriptHash, Name: receiptName},
			Quantity: -1,
		}))
		tx.ValidRange.Lower = ledger.FiniteBound(500)
		require.NoError(t, vault.EvaluateSpend(tx, ownRef, unlocking, request))
	})
}
