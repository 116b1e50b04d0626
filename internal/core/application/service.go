package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vaultd-labs/vaultd/internal/core/domain"
	"github.com/vaultd-labs/vaultd/internal/core/ports"
	"github.com/vaultd-labs/vaultd/pkg/errors"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/vault"
)

type service struct {
	repoManager     ports.RepoManager
	scheduler       ports.SchedulerService
	vaultScriptHash string
	vaultCredential ledger.Credential

	eventsCh chan TransactionEvent
	stopOnce sync.Once
}

func NewService(
	repoManager ports.RepoManager,
	schedulerSvc ports.SchedulerService,
	vaultScriptHash string,
) (Service, error) {
	buf, err := hex.DecodeString(vaultScriptHash)
	if err != nil {
		return nil, fmt.Errorf("invalid vault script hash: %s", err)
	}
	if len(buf) != 28 {
		return nil, fmt.Errorf("invalid vault script hash: got %d bytes, expected 28", len(buf))
	}

	return &service{
		repoManager:     repoManager,
		scheduler:       schedulerSvc,
		vaultScriptHash: vaultScriptHash,
		vaultCredential: ledger.ScriptCredential(vaultScriptHash),
		eventsCh:        make(chan TransactionEvent, 32),
	}, nil
}

func (s *service) Start() error {
	s.scheduler.Start()
	if err := s.restoreClaimWatchers(); err != nil {
		return fmt.Errorf("failed to restore claim watchers: %s", err)
	}
	log.Debug("scheduler started")
	return nil
}

func (s *service) Stop() {
	s.stopOnce.Do(func() {
		s.scheduler.Stop()
		close(s.eventsCh)
		s.repoManager.Close()
		log.Debug("closed connection to db")
	})
}

func (s *service) EvaluateTransaction(ctx context.Context, req TxRequest) errors.Error {
	_, _, err := s.evaluate(ctx, req)
	return err
}

func (s *service) ProcessTransaction(
	ctx context.Context, req TxRequest,
) (*TransactionEvent, errors.Error) {
	spent, newVaults, err := s.evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()

	if len(spent) > 0 {
		spentBy := make(map[ledger.OutRef]string)
		for _, v := range spent {
			spentBy[v.Ref] = req.Tx.ID
		}
		if err := s.repoManager.Vaults().SpendVaults(ctx, spentBy); err != nil {
			return nil, errors.INTERNAL_ERROR.Wrap(err)
		}
	}
	if len(newVaults) > 0 {
		for i := range newVaults {
			newVaults[i].CreatedAt = now
		}
		if err := s.repoManager.Vaults().AddVaults(ctx, newVaults); err != nil {
			return nil, errors.INTERNAL_ERROR.Wrap(err)
		}
	}

	for _, v := range newVaults {
		if v.IsUnlocking() {
			s.scheduleClaimNotice(v)
		}
	}

	event := TransactionEvent{
		ID:          uuid.New(),
		Txid:        req.Tx.ID,
		AcceptedAt:  now,
		SpentVaults: refsOf(spent),
		NewVaults:   newVaults,
	}
	select {
	case s.eventsCh <- event:
	default:
		log.WithField("txid", event.Txid).Warn("event channel full, dropping event")
	}

	log.WithFields(log.Fields{
		"txid":   req.Tx.ID,
		"spent":  len(spent),
		"new":    len(newVaults),
		"minted": len(req.Tx.Mint.UnderPolicy(s.vaultScriptHash)),
	}).Info("accepted transaction")

	return &event, nil
}

func (s *service) ListVaults(ctx context.Context) ([]domain.VaultUtxo, error) {
	return s.repoManager.Vaults().GetAllVaults(ctx)
}

func (s *service) GetVault(
	ctx context.Context, ref ledger.OutRef,
) (*domain.VaultUtxo, error) {
	return s.repoManager.Vaults().GetVault(ctx, ref)
}

func (s *service) GetClaimableVaults(
	ctx context.Context, now int64,
) ([]domain.VaultUtxo, error) {
	return s.repoManager.Vaults().GetUnlockingVaults(ctx, now)
}

func (s *service) TransactionEvents() <-chan TransactionEvent {
	return s.eventsCh
}

// evaluate resolves the transaction's inputs against the store, runs the
// policy for every consumed vault and for the mint field, and returns the
// vaults the transaction consumes and creates.
func (s *service) evaluate(
	ctx context.Context, req TxRequest,
) ([]domain.VaultUtxo, []domain.VaultUtxo, errors.Error) {
	tx := req.Tx

	if _, err := hex.DecodeString(tx.ID); err != nil || tx.ID == "" {
		return nil, nil, errors.MALFORMED_TX.New(
			"transaction id is not a hex string",
		).WithMetadata(errors.TxMetadata{Txid: tx.ID})
	}
	if len(tx.Inputs) == 0 {
		return nil, nil, errors.MALFORMED_TX.New(
			"transaction has no inputs",
		).WithMetadata(errors.TxMetadata{Txid: tx.ID})
	}

	refs := make([]ledger.OutRef, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		refs = append(refs, in.Ref)
	}
	tracked, err := s.repoManager.Vaults().GetVaults(ctx, refs)
	if err != nil {
		return nil, nil, errors.INTERNAL_ERROR.Wrap(err)
	}
	trackedByRef := make(map[ledger.OutRef]domain.VaultUtxo)
	for _, v := range tracked {
		trackedByRef[v.Ref] = v
	}

	// Inputs consuming a tracked vault get their output resolved from the
	// store before the policy sees the transaction. The inputs slice is
	// copied so the caller's request is never mutated, dry-runs included.
	tx.Inputs = append([]ledger.Input(nil), req.Tx.Inputs...)
	spent := make([]domain.VaultUtxo, 0, len(tracked))
	for i := range tx.Inputs {
		v, ok := trackedByRef[tx.Inputs[i].Ref]
		if !ok {
			continue
		}
		if v.Spent {
			return nil, nil, errors.VAULT_ALREADY_SPENT.New(
				"vault %s was spent by %s", v.Ref, v.SpentBy,
			).WithMetadata(errors.VaultMetadata{Outpoint: v.Ref.String()})
		}
		out, err := v.Output()
		if err != nil {
			return nil, nil, errors.INTERNAL_ERROR.Wrap(err)
		}
		tx.Inputs[i].Output = out
		spent = append(spent, v)
	}

	for _, v := range spent {
		request := req.SpendRequests[v.Ref.String()]
		if err := vault.EvaluateSpend(tx, v.Ref, v.Record, request); err != nil {
			return nil, nil, err
		}
	}

	if minted := tx.Mint.UnderPolicy(s.vaultScriptHash); len(minted) > 0 {
		if req.Issuance == nil {
			return nil, nil, errors.MALFORMED_PURPOSE.New(
				"transaction mints under the vault policy without an issuance purpose",
			).WithMetadata(errors.PurposeMetadata{Purpose: "issue"})
		}
		if err := vault.EvaluateMint(tx, s.vaultScriptHash, *req.Issuance); err != nil {
			return nil, nil, err
		}
	}

	newVaults, evalErr := s.collectNewVaults(tx)
	if evalErr != nil {
		return nil, nil, evalErr
	}
	return spent, newVaults, nil
}

// collectNewVaults picks the outputs paying to the vault credential and
// decodes their records. An undecodable record at the vault address is a
// rejection, not a skip: such an output would be unspendable.
func (s *service) collectNewVaults(tx ledger.Tx) ([]domain.VaultUtxo, errors.Error) {
	vaults := make([]domain.VaultUtxo, 0)
	for i, out := range tx.Outputs {
		if out.Address.Payment != s.vaultCredential {
			continue
		}
		record, err := vault.RecordFromDatum(out.Datum)
		if err != nil {
			return nil, errors.MALFORMED_TX.New(
				"output %d pays to the vault address but carries an undecodable record: %s",
				i, err,
			).WithMetadata(errors.TxMetadata{Txid: tx.ID})
		}
		vaults = append(vaults, domain.VaultUtxo{
			Ref:     ledger.OutRef{TxID: tx.ID, Index: uint32(i)},
			Address: out.Address,
			Value:   out.Value,
			Record:  *record,
		})
	}
	return vaults, nil
}

func refsOf(vaults []domain.VaultUtxo) []ledger.OutRef {
	refs := make([]ledger.OutRef, 0, len(vaults))
	for _, v := range vaults {
		refs = append(refs, v.Ref)
	}
	return refs
}
