package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vaultd-labs/vaultd/pkg/vault-lib/value"
)

// OutRef is a reference to a transaction output.
type OutRef struct {
	TxID  string
	Index uint32
}

func (r *OutRef) FromString(s string) error {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return fmt.Errorf("invalid outpoint string: %s", s)
	}
	r.TxID = parts[0]
	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid index string: %s", parts[1])
	}
	r.Index = uint32(index)
	return nil
}

func (r OutRef) String() string {
	return fmt.Sprintf("%s:%d", r.TxID, r.Index)
}

type CredentialKind uint8

const (
	CredentialKey CredentialKind = iota
	CredentialScript
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialKey:
		return "key"
	case CredentialScript:
		return "script"
	default:
		return "unknown"
	}
}

// Credential is a payment or delegation credential: a key hash or a script
// hash, hex-encoded.
type Credential struct {
	Kind CredentialKind
	Hash string
}

// ScriptCredential builds a script credential for the given script hash.
func ScriptCredential(hash string) Credential {
	return Credential{Kind: CredentialScript, Hash: hash}
}

// KeyCredential builds a key credential for the given key hash.
func KeyCredential(hash string) Credential {
	return Credential{Kind: CredentialKey, Hash: hash}
}

// Address is a ledger address. Delegation is optional and carried only for
// address equality, the engine never interprets it.
type Address struct {
	Payment    Credential
	Delegation string
}

// Output is a transaction output payload.
type Output struct {
	Address Address
	Value   value.Value
	Datum   []byte // canonical encoding, nil when absent
}

// Input is a consumed output together with its reference.
type Input struct {
	Ref    OutRef
	Output Output
}

// Bound is one end of a transaction validity window. A non-finite bound is
// unbounded in that direction.
type Bound struct {
	Time   int64
	Finite bool
}

func FiniteBound(t int64) Bound {
	return Bound{Time: t, Finite: true}
}

func UnboundedBound() Bound {
	return Bound{}
}

type TimeRange struct {
	Lower Bound
	Upper Bound
}

// Tx is the transaction context supplied by the host: already-validated,
// tamper-proof facts about the candidate transfer.
type Tx struct {
	ID         string
	Inputs     []Input
	Outputs    []Output
	Mint       value.Value
	ValidRange TimeRange
	Signers    []string // verified signer key hashes, hex-encoded
}

// FindInput returns the input consuming the given reference, nil if the
// transaction does not consume it.
func (t Tx) FindInput(ref OutRef) *Input {
	for i := range t.Inputs {
		if t.Inputs[i].Ref == ref {
			return &t.Inputs[i]
		}
	}
	return nil
}
