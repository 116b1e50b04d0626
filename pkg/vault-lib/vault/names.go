package vault

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
	"golang.org/x/crypto/blake2b"
)

// DeriveNames derives count distinct receipt-token names from a unique
// transaction input reference. Each name is the blake2b-256 digest of the
// seed reference concatenated with a counter in 1..count, so the set is
// deterministic for a given seed and collision-resistant across seeds.
// The result is a membership set: issuance checks never depend on order.
func DeriveNames(seed ledger.OutRef, count int) (map[string]struct{}, error) {
	if count < 0 {
		return nil, fmt.Errorf("name count must be non-negative, got %d", count)
	}
	txid, err := hex.DecodeString(seed.TxID)
	if err != nil {
		return nil, fmt.Errorf("invalid seed txid: %w", err)
	}

	seedBytes := make([]byte, 0, len(txid)+4)
	seedBytes = append(seedBytes, txid...)
	seedBytes = binary.BigEndian.AppendUint32(seedBytes, seed.Index)

	names := make(map[string]struct{}, count)
	for i := 1; i <= count; i++ {
		preimage := binary.BigEndian.AppendUint64(seedBytes, uint64(i))
		digest := blake2b.Sum256(preimage)
		names[hex.EncodeToString(digest[:])] = struct{}{}
	}
	return names, nil
}
