package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/vaultd-labs/vaultd/internal/core/domain"
	"github.com/vaultd-labs/vaultd/pkg/errors"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/vault"
)

// TxRequest is a candidate transaction together with the purposes the
// submitter attaches to it: one spend request per consumed vault output,
// keyed by outpoint string, and at most one issuance request covering the
// mint field.
type TxRequest struct {
	Tx            ledger.Tx
	SpendRequests map[string]vault.Request
	Issuance      *vault.IssuanceRequest
}

// TransactionEvent is emitted once per accepted transaction.
type TransactionEvent struct {
	ID          uuid.UUID
	Txid        string
	AcceptedAt  int64
	SpentVaults []ledger.OutRef
	NewVaults   []domain.VaultUtxo
}

type Service interface {
	Start() error
	Stop()
	// EvaluateTransaction runs the candidate through the policy without
	// touching the store.
	EvaluateTransaction(ctx context.Context, req TxRequest) errors.Error
	// ProcessTransaction evaluates the candidate and, on acceptance,
	// marks the consumed vaults spent and records the new ones.
	ProcessTransaction(ctx context.Context, req TxRequest) (*TransactionEvent, errors.Error)
	ListVaults(ctx context.Context) ([]domain.VaultUtxo, error)
	GetVault(ctx context.Context, ref ledger.OutRef) (*domain.VaultUtxo, error)
	GetClaimableVaults(ctx context.Context, now int64) ([]domain.VaultUtxo, error)
	TransactionEvents() <-chan TransactionEvent
}
