package vault

import (
	"bytes"

	"github.com/vaultd-labs/vaultd/pkg/errors"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
)

// EvaluateMint decides whether the transaction may mint or burn receipt
// tokens under the vault policy identified by policyID. It applies
// policy-wide, independent of any specific record.
//
// Burns are always safe: they only shrink the supply of proof tokens. Every
// fresh mint must be uniquely named from the first input's reference and
// paired one to one with a newly locked deposit naming it as owner.
func EvaluateMint(tx ledger.Tx, policyID string, request IssuanceRequest) errors.Error {
	entries := tx.Mint.UnderPolicy(policyID)

	switch request.Kind {
	case IssueBurn:
		for _, entry := range entries {
			if entry.Quantity != -1 {
				return errors.INVALID_ISSUANCE_QUANTITY.New(
					"burn entry %s has quantity %d, expected exactly -1",
					entry.Name, entry.Quantity,
				).WithMetadata(errors.IssuanceQuantityMetadata{
					AssetName: entry.Name,
					Quantity:  entry.Quantity,
				})
			}
		}
		return nil

	case IssueMint:
		if request.Count < 0 {
			return errors.INVALID_ISSUANCE_QUANTITY.New(
				"mint count must be non-negative, got %d", request.Count,
			)
		}
		if len(tx.Inputs) == 0 {
			return errors.MALFORMED_TX.New(
				"minting requires at least one input as uniqueness seed",
			).WithMetadata(errors.TxMetadata{Txid: tx.ID})
		}
		expectedNames, err := DeriveNames(tx.Inputs[0].Ref, int(request.Count))
		if err != nil {
			return errors.INTERNAL_ERROR.Wrap(err)
		}

		for _, entry := range entries {
			switch entry.Quantity {
			case -1:
				// burning alongside a mint is allowed per entry
			case 1:
				if _, ok := expectedNames[entry.Name]; !ok {
					return errors.NAME_NOT_EXPECTED.New(
						"minted name %s is not derived from the seed input", entry.Name,
					).WithMetadata(errors.ReceiptNameMetadata{AssetName: entry.Name})
				}
				if !hasPairedLockedOutput(tx, policyID, entry.Name) {
					return errors.MISSING_PAIRED_OUTPUT.New(
						"minted receipt %s has no matching locked deposit", entry.Name,
					).WithMetadata(errors.ReceiptNameMetadata{AssetName: entry.Name})
				}
			default:
				return errors.INVALID_ISSUANCE_QUANTITY.New(
					"mint entry %s has quantity %d, expected exactly +1 or -1",
					entry.Name, entry.Quantity,
				).WithMetadata(errors.IssuanceQuantityMetadata{
					AssetName: entry.Name,
					Quantity:  entry.Quantity,
				})
			}
		}
		return nil

	default:
		return errors.MALFORMED_PURPOSE.New("unknown issuance kind %d", request.Kind)
	}
}

// hasPairedLockedOutput reports whether some output sits at the policy's
// own script credential with a datum that is exactly a locked record owned
// by the given receipt name.
func hasPairedLockedOutput(tx ledger.Tx, policyID, name string) bool {
	expected := Record{Owner: ReceiptOwner(name), Status: Locked()}
	expectedDatum, err := expected.Datum()
	if err != nil {
		return false
	}
	ownCredential := ledger.ScriptCredential(policyID)
	for _, out := range tx.Outputs {
		if out.Address.Payment == ownCredential && bytes.Equal(out.Datum, expectedDatum) {
			return true
		}
	}
	return false
}
