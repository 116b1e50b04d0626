package vault

import (
	"slices"

	"github.com/vaultd-labs/vaultd/pkg/errors"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
)

// VerifyOwner proves that the transaction is authorized to act for the
// record's owner, and returns the owner descriptor to carry forward into
// the continuation record: the same owner for key and asset schemes, a
// freshly named receipt owner for the receipt scheme.
//
// Authorization is by transaction composition only. Nothing is mutated and
// no state outside the transaction context is consulted.
func VerifyOwner(
	tx ledger.Tx, ownInput ledger.Input, record Record, request Request,
) (Owner, errors.Error) {
	owner := record.Owner
	switch owner.Kind {
	case OwnerByKey:
		if !slices.Contains(tx.Signers, owner.KeyHash) {
			return Owner{}, errors.UNAUTHORIZED_OWNER.New(
				"transaction is not signed by key %s", owner.KeyHash,
			).WithMetadata(errors.OwnerMetadata{OwnerKind: owner.Kind.String()})
		}
		return owner, nil

	case OwnerByAsset:
		if request.ProofInputRef == nil {
			return Owner{}, errors.MISSING_PROOF_INPUT.New(
				"asset owner requires a proof input reference",
			)
		}
		proofInput := tx.FindInput(*request.ProofInputRef)
		if proofInput == nil {
			return Owner{}, errors.MISSING_PROOF_INPUT.New(
				"proof input %s is not consumed by the transaction", request.ProofInputRef,
			).WithMetadata(errors.ProofInputMetadata{Ref: request.ProofInputRef.String()})
		}
		if qty := proofInput.Output.Value.QuantityOf(owner.PolicyID, owner.AssetName); qty != 1 {
			return Owner{}, errors.UNAUTHORIZED_OWNER.New(
				"proof input %s holds %d units of %s.%s, expected exactly 1",
				request.ProofInputRef, qty, owner.PolicyID, owner.AssetName,
			).WithMetadata(errors.OwnerMetadata{OwnerKind: owner.Kind.String()})
		}
		return owner, nil

	case OwnerByReceipt:
		ownCredential := ownInput.Output.Address.Payment
		if ownCredential.Kind != ledger.CredentialScript {
			return Owner{}, errors.UNAUTHORIZED_OWNER.New(
				"receipt owner requires the consumed output to sit at a script credential",
			).WithMetadata(errors.OwnerMetadata{OwnerKind: owner.Kind.String()})
		}
		if request.NextReceiptName == "" {
			return Owner{}, errors.UNAUTHORIZED_OWNER.New(
				"receipt owner requires the next receipt name",
			).WithMetadata(errors.OwnerMetadata{OwnerKind: owner.Kind.String()})
		}
		ownPolicy := ownCredential.Hash
		if qty := tx.Mint.QuantityOf(ownPolicy, owner.AssetName); qty != -1 {
			return Owner{}, errors.UNAUTHORIZED_OWNER.New(
				"receipt %s must be burned exactly once, got quantity %d", owner.AssetName, qty,
			).WithMetadata(errors.OwnerMetadata{OwnerKind: owner.Kind.String()})
		}
		// A locked record re-locks under a replacement receipt, so its mint
		// is mandatory. Once unlocking has begun no re-lock occurs and no
		// replacement is required.
		if record.Status.Kind == StatusLocked {
			if qty := tx.Mint.QuantityOf(ownPolicy, request.NextReceiptName); qty != 1 {
				return Owner{}, errors.UNAUTHORIZED_OWNER.New(
					"replacement receipt %s must be minted exactly once, got quantity %d",
					request.NextReceiptName, qty,
				).WithMetadata(errors.OwnerMetadata{OwnerKind: owner.Kind.String()})
			}
		}
		return ReceiptOwner(request.NextReceiptName), nil

	default:
		return Owner{}, errors.UNAUTHORIZED_OWNER.New("unknown owner kind %d", owner.Kind)
	}
}
