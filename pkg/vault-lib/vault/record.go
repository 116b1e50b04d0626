package vault

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
)

// MinimumLockTime is the fixed delay, in ledger time units, between an
// unlock request and the earliest claim.
const MinimumLockTime int64 = 2000

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

type OwnerKind uint8

const (
	OwnerByKey OwnerKind = iota
	OwnerByAsset
	OwnerByReceipt
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerByKey:
		return "key"
	case OwnerByAsset:
		return "asset"
	case OwnerByReceipt:
		return "receipt"
	default:
		return "unknown"
	}
}

// Owner is the closed set of proof schemes controlling a vault. Exactly one
// scheme applies to a given owner; the fields beyond Kind are populated
// per scheme.
type Owner struct {
	Kind OwnerKind

	// OwnerByKey
	KeyHash string

	// OwnerByAsset
	PolicyID  string
	AssetName string
}

// KeyOwner is authorized by a signature matching the given key hash.
func KeyOwner(keyHash string) Owner {
	return Owner{Kind: OwnerByKey, KeyHash: keyHash}
}

// AssetOwner is authorized by consuming an input holding exactly one unit
// of the given asset.
func AssetOwner(policyID, assetName string) Owner {
	return Owner{Kind: OwnerByAsset, PolicyID: policyID, AssetName: assetName}
}

// ReceiptOwner is authorized by burning exactly one unit of the named
// receipt token minted under the vault's own policy.
func ReceiptOwner(assetName string) Owner {
	return Owner{Kind: OwnerByReceipt, AssetName: assetName}
}

type StatusKind uint8

const (
	StatusLocked StatusKind = iota
	StatusUnlocking
)

func (k StatusKind) String() string {
	switch k {
	case StatusLocked:
		return "locked"
	case StatusUnlocking:
		return "unlocking"
	default:
		return "unknown"
	}
}

// Status is the vault state machine position. RequestRef and UnlockDeadline
// are meaningful only while unlocking.
type Status struct {
	Kind           StatusKind
	RequestRef     ledger.OutRef
	UnlockDeadline int64
}

func Locked() Status {
	return Status{Kind: StatusLocked}
}

func Unlocking(requestRef ledger.OutRef, unlockDeadline int64) Status {
	return Status{
		Kind:           StatusUnlocking,
		RequestRef:     requestRef,
		UnlockDeadline: unlockDeadline,
	}
}

// Record is the state attached to a locked value bundle. It is the only
// persisted structure of the policy; the engine compares records by their
// canonical datum bytes, never structurally.
type Record struct {
	Owner  Owner
	Status Status
}

// Request is the caller-supplied spend intent. ProofInputRef is required
// only for asset owners, NextReceiptName only for receipt owners.
type Request struct {
	Partial         bool
	ProofInputRef   *ledger.OutRef
	NextReceiptName string
}

type IssuanceKind uint8

const (
	IssueMint IssuanceKind = iota
	IssueBurn
)

// IssuanceRequest is the caller-supplied mint intent. Count is meaningful
// only for IssueMint.
type IssuanceRequest struct {
	Kind  IssuanceKind
	Count int64
}

// Datum returns the canonical encoding of the record. Records encode as
// constructor-tagged arrays so that field order and presence are fixed and
// equality against a freshly constructed expected record is exact.
func (r Record) Datum() ([]byte, error) {
	owner, err := r.Owner.wire()
	if err != nil {
		return nil, err
	}
	status, err := r.Status.wire()
	if err != nil {
		return nil, err
	}
	return encMode.Marshal([]any{owner, status})
}

// RecordFromDatum decodes a canonical record datum. It fails on any datum
// that does not round-trip to the exact bytes given, so malleable
// re-encodings of a record are rejected.
func RecordFromDatum(datum []byte) (*Record, error) {
	var raw []cbor.RawMessage
	if err := decMode.Unmarshal(datum, &raw); err != nil {
		return nil, fmt.Errorf("invalid record datum: %w", err)
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("invalid record datum: expected 2 fields, got %d", len(raw))
	}
	owner, err := ownerFromWire(raw[0])
	if err != nil {
		return nil, err
	}
	status, err := statusFromWire(raw[1])
	if err != nil {
		return nil, err
	}
	rec := &Record{Owner: *owner, Status: *status}

	reencoded, err := rec.Datum()
	if err != nil {
		return nil, err
	}
	if string(reencoded) != string(datum) {
		return nil, fmt.Errorf("record datum is not canonically encoded")
	}
	return rec, nil
}

func (o Owner) wire() ([]any, error) {
	switch o.Kind {
	case OwnerByKey:
		keyHash, err := hex.DecodeString(o.KeyHash)
		if err != nil {
			return nil, fmt.Errorf("invalid owner key hash: %w", err)
		}
		return []any{uint64(OwnerByKey), keyHash}, nil
	case OwnerByAsset:
		policy, err := hex.DecodeString(o.PolicyID)
		if err != nil {
			return nil, fmt.Errorf("invalid owner policy id: %w", err)
		}
		name, err := hex.DecodeString(o.AssetName)
		if err != nil {
			return nil, fmt.Errorf("invalid owner asset name: %w", err)
		}
		return []any{uint64(OwnerByAsset), policy, name}, nil
	case OwnerByReceipt:
		name, err := hex.DecodeString(o.AssetName)
		if err != nil {
			return nil, fmt.Errorf("invalid receipt name: %w", err)
		}
		return []any{uint64(OwnerByReceipt), name}, nil
	default:
		return nil, fmt.Errorf("unknown owner kind %d", o.Kind)
	}
}

func ownerFromWire(raw cbor.RawMessage) (*Owner, error) {
	var fields []cbor.RawMessage
	if err := decMode.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("invalid owner encoding: %w", err)
	}
	if len(fields) < 1 {
		return nil, fmt.Errorf("invalid owner encoding: missing tag")
	}
	var tag uint64
	if err := decMode.Unmarshal(fields[0], &tag); err != nil {
		return nil, fmt.Errorf("invalid owner tag: %w", err)
	}
	decodeBytes := func(raw cbor.RawMessage) (string, error) {
		var buf []byte
		if err := decMode.Unmarshal(raw, &buf); err != nil {
			return "", err
		}
		return hex.EncodeToString(buf), nil
	}
	switch OwnerKind(tag) {
	case OwnerByKey:
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid key owner encoding")
		}
		keyHash, err := decodeBytes(fields[1])
		if err != nil {
			return nil, err
		}
		owner := KeyOwner(keyHash)
		return &owner, nil
	case OwnerByAsset:
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid asset owner encoding")
		}
		policy, err := decodeBytes(fields[1])
		if err != nil {
			return nil, err
		}
		name, err := decodeBytes(fields[2])
		if err != nil {
			return nil, err
		}
		owner := AssetOwner(policy, name)
		return &owner, nil
	case OwnerByReceipt:
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid receipt owner encoding")
		}
		name, err := decodeBytes(fields[1])
		if err != nil {
			return nil, err
		}
		owner := ReceiptOwner(name)
		return &owner, nil
	default:
		return nil, fmt.Errorf("unknown owner tag %d", tag)
	}
}

func (s Status) wire() ([]any, error) {
	switch s.Kind {
	case StatusLocked:
		return []any{uint64(StatusLocked)}, nil
	case StatusUnlocking:
		txid, err := hex.DecodeString(s.RequestRef.TxID)
		if err != nil {
			return nil, fmt.Errorf("invalid request ref txid: %w", err)
		}
		ref := []any{txid, uint64(s.RequestRef.Index)}
		return []any{uint64(StatusUnlocking), ref, s.UnlockDeadline}, nil
	default:
		return nil, fmt.Errorf("unknown status kind %d", s.Kind)
	}
}

func statusFromWire(raw cbor.RawMessage) (*Status, error) {
	var fields []cbor.RawMessage
	if err := decMode.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("invalid status encoding: %w", err)
	}
	if len(fields) < 1 {
		return nil, fmt.Errorf("invalid status encoding: missing tag")
	}
	var tag uint64
	if err := decMode.Unmarshal(fields[0], &tag); err != nil {
		return nil, fmt.Errorf("invalid status tag: %w", err)
	}
	switch StatusKind(tag) {
	case StatusLocked:
		if len(fields) != 1 {
			return nil, fmt.Errorf("invalid locked status encoding")
		}
		status := Locked()
		return &status, nil
	case StatusUnlocking:
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid unlocking status encoding")
		}
		var ref []cbor.RawMessage
		if err := decMode.Unmarshal(fields[1], &ref); err != nil {
			return nil, fmt.Errorf("invalid request ref encoding: %w", err)
		}
		if len(ref) != 2 {
			return nil, fmt.Errorf("invalid request ref encoding")
		}
		var txid []byte
		if err := decMode.Unmarshal(ref[0], &txid); err != nil {
			return nil, fmt.Errorf("invalid request ref txid: %w", err)
		}
		var index uint64
		if err := decMode.Unmarshal(ref[1], &index); err != nil {
			return nil, fmt.Errorf("invalid request ref index: %w", err)
		}
		var deadline int64
		if err := decMode.Unmarshal(fields[2], &deadline); err != nil {
			return nil, fmt.Errorf("invalid unlock deadline: %w", err)
		}
		status := Unlocking(
			ledger.OutRef{TxID: hex.EncodeToString(txid), Index: uint32(index)}, deadline,
		)
		return &status, nil
	default:
		return nil, fmt.Errorf("unknown status tag %d", tag)
	}
}
