package vault

import (
	"bytes"

	"github.com/vaultd-labs/vaultd/pkg/errors"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
)

// EvaluateSpend decides whether the transaction may consume the vault
// output at ownRef carrying the given record. A nil return is acceptance;
// any error is a fatal rejection of the candidate transaction.
//
// From a locked record the transaction must prove ownership and produce an
// unlocking continuation bound to this input and to the validity window's
// upper bound plus MinimumLockTime. From an unlocking record the
// transaction must prove ownership and start no earlier than the recorded
// deadline; value movement is then unconstrained, which is the point of
// the two-phase design.
func EvaluateSpend(
	tx ledger.Tx, ownRef ledger.OutRef, record Record, request Request,
) errors.Error {
	ownInput := tx.FindInput(ownRef)
	if ownInput == nil {
		return errors.MALFORMED_PURPOSE.New(
			"spend purpose references %s but the transaction does not consume it", ownRef,
		).WithMetadata(errors.PurposeMetadata{Purpose: "spend", Ref: ownRef.String()})
	}

	switch record.Status.Kind {
	case StatusLocked:
		nextOwner, err := VerifyOwner(tx, *ownInput, record, request)
		if err != nil {
			return err
		}
		return checkUnlockRequest(tx, *ownInput, nextOwner, request)

	case StatusUnlocking:
		if _, err := VerifyOwner(tx, *ownInput, record, request); err != nil {
			return err
		}
		lower := tx.ValidRange.Lower
		if !lower.Finite {
			return errors.INVALID_TIME_BOUND.New(
				"claim requires a finite validity lower bound",
			).WithMetadata(errors.TimeBoundMetadata{Deadline: record.Status.UnlockDeadline})
		}
		if lower.Time < record.Status.UnlockDeadline {
			return errors.INVALID_TIME_BOUND.New(
				"claim at %d is earlier than the unlock deadline %d",
				lower.Time, record.Status.UnlockDeadline,
			).WithMetadata(errors.TimeBoundMetadata{
				Bound:    lower.Time,
				Deadline: record.Status.UnlockDeadline,
			})
		}
		return nil

	default:
		return errors.MALFORMED_PURPOSE.New("unknown record status %d", record.Status.Kind)
	}
}

// checkUnlockRequest validates the locked -> unlocking transition: the
// expected continuation record must appear in the outputs, and the value
// leaving this input must be fully accounted for.
func checkUnlockRequest(
	tx ledger.Tx, ownInput ledger.Input, nextOwner Owner, request Request,
) errors.Error {
	upper := tx.ValidRange.Upper
	if !upper.Finite {
		return errors.INVALID_TIME_BOUND.New(
			"unlock request requires a finite validity upper bound",
		)
	}
	deadline := upper.Time + MinimumLockTime

	continuation := Record{
		Owner:  nextOwner,
		Status: Unlocking(ownInput.Ref, deadline),
	}
	continuationDatum, err := continuation.Datum()
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}

	// Alignment point: first output whose datum matches the expected
	// continuation, byte for byte. Outputs before it are irrelevant.
	alignment := -1
	for i := range tx.Outputs {
		if bytes.Equal(tx.Outputs[i].Datum, continuationDatum) {
			alignment = i
			break
		}
	}
	if alignment < 0 {
		return errors.ALIGNMENT_NOT_FOUND.New(
			"no output carries the expected unlocking continuation",
		).WithMetadata(errors.AlignmentMetadata{NumOutputs: len(tx.Outputs)})
	}

	if request.Partial {
		return checkPartialWithdrawal(tx, ownInput, nextOwner, alignment)
	}
	return checkFullWithdrawal(ownInput, tx.Outputs[alignment])
}

// checkFullWithdrawal requires the alignment output to carry the whole
// input value at the input's address. Base currency may only grow; every
// other entry must match the input exactly, item for item.
func checkFullWithdrawal(ownInput ledger.Input, withdrawal ledger.Output) errors.Error {
	inValue := ownInput.Output.Value
	outValue := withdrawal.Value

	if withdrawal.Address != ownInput.Output.Address {
		return errors.VALUE_NOT_CONSERVED.New(
			"continuation output does not stay at the vault address",
		)
	}
	if outValue.Coin() < inValue.Coin() {
		return errors.VALUE_NOT_CONSERVED.New(
			"continuation output holds %d base units, input holds %d",
			outValue.Coin(), inValue.Coin(),
		).WithMetadata(errors.ConservationMetadata{
			InputValue:  inValue.String(),
			OutputValue: outValue.String(),
		})
	}
	if !outValue.WithoutCoin().Equal(inValue.WithoutCoin()) {
		return errors.VALUE_NOT_CONSERVED.New(
			"continuation output does not conserve the input's assets",
		).WithMetadata(errors.ConservationMetadata{
			InputValue:  inValue.String(),
			OutputValue: outValue.String(),
		})
	}
	return nil
}

// checkPartialWithdrawal requires the alignment output plus the
// immediately following remainder output to jointly account for the input
// value, with the remainder re-locked under the continuation owner.
func checkPartialWithdrawal(
	tx ledger.Tx, ownInput ledger.Input, nextOwner Owner, alignment int,
) errors.Error {
	if alignment+1 >= len(tx.Outputs) {
		return errors.ALIGNMENT_NOT_FOUND.New(
			"partial withdrawal requires a remainder output after the continuation",
		).WithMetadata(errors.AlignmentMetadata{NumOutputs: len(tx.Outputs)})
	}
	withdrawal := tx.Outputs[alignment]
	remainder := tx.Outputs[alignment+1]

	remainderRecord := Record{Owner: nextOwner, Status: Locked()}
	remainderDatum, err := remainderRecord.Datum()
	if err != nil {
		return errors.INTERNAL_ERROR.Wrap(err)
	}
	if !bytes.Equal(remainder.Datum, remainderDatum) {
		return errors.ALIGNMENT_NOT_FOUND.New(
			"remainder output does not re-lock under the continuation owner",
		)
	}

	inValue := ownInput.Output.Value
	if withdrawal.Address != ownInput.Output.Address ||
		remainder.Address != ownInput.Output.Address {
		return errors.VALUE_NOT_CONSERVED.New(
			"split outputs do not stay at the vault address",
		)
	}
	if withdrawal.Value.Coin()+remainder.Value.Coin() < inValue.Coin() {
		return errors.VALUE_NOT_CONSERVED.New(
			"split outputs hold %d base units, input holds %d",
			withdrawal.Value.Coin()+remainder.Value.Coin(), inValue.Coin(),
		).WithMetadata(errors.ConservationMetadata{
			InputValue:  inValue.String(),
			OutputValue: withdrawal.Value.Add(remainder.Value).String(),
		})
	}
	merged := withdrawal.Value.WithoutCoin().Add(remainder.Value.WithoutCoin())
	if !merged.Equal(inValue.WithoutCoin()) {
		return errors.VALUE_NOT_CONSERVED.New(
			"split outputs do not conserve the input's assets",
		).WithMetadata(errors.ConservationMetadata{
			InputValue:  inValue.String(),
			OutputValue: merged.String(),
		})
	}
	return nil
}
