package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vaultd-labs/vaultd/internal/core/domain"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/value"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/vault"
)

type vaultRepository struct {
	db *sql.DB
}

func NewVaultRepository(config ...interface{}) (domain.VaultRepository, error) {
	if len(config) != 1 {
		return nil, fmt.Errorf("invalid config")
	}
	db, ok := config[0].(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("cannot open vault repository: invalid config")
	}

	return &vaultRepository{db}, nil
}

func (r *vaultRepository) AddVaults(
	ctx context.Context, vaults []domain.VaultUtxo,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// nolint:errcheck
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, v := range vaults {
		valueJSON, err := json.Marshal(v.Value)
		if err != nil {
			return err
		}
		record, err := v.Record.Datum()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO vault (
				txid, vout, payment_kind, payment_hash, delegation, value, record,
				unlocking, unlock_deadline, spent, spent_by, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (txid, vout) DO NOTHING`,
			v.Ref.TxID, v.Ref.Index,
			v.Address.Payment.Kind, v.Address.Payment.Hash, v.Address.Delegation,
			string(valueJSON), record,
			v.IsUnlocking(), v.Record.Status.UnlockDeadline,
			v.Spent, v.SpentBy, v.CreatedAt, now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *vaultRepository) GetVault(
	ctx context.Context, ref ledger.OutRef,
) (*domain.VaultUtxo, error) {
	row := r.db.QueryRowContext(
		ctx, selectVault+` WHERE txid = ? AND vout = ?`, ref.TxID, ref.Index,
	)
	v, err := scanVault(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vault %s not found", ref)
		}
		return nil, err
	}
	return v, nil
}

func (r *vaultRepository) GetVaults(
	ctx context.Context, refs []ledger.OutRef,
) ([]domain.VaultUtxo, error) {
	vaults := make([]domain.VaultUtxo, 0, len(refs))
	for _, ref := range refs {
		row := r.db.QueryRowContext(
			ctx, selectVault+` WHERE txid = ? AND vout = ?`, ref.TxID, ref.Index,
		)
		v, err := scanVault(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, err
		}
		vaults = append(vaults, *v)
	}
	return vaults, nil
}

func (r *vaultRepository) GetAllVaults(ctx context.Context) ([]domain.VaultUtxo, error) {
	rows, err := r.db.QueryContext(ctx, selectVault)
	if err != nil {
		return nil, err
	}
	// nolint:errcheck
	defer rows.Close()
	return scanVaults(rows)
}

func (r *vaultRepository) GetUnlockingVaults(
	ctx context.Context, maxDeadline int64,
) ([]domain.VaultUtxo, error) {
	rows, err := r.db.QueryContext(
		ctx,
		selectVault+` WHERE unlocking = true AND spent = false AND unlock_deadline <= ?`,
		maxDeadline,
	)
	if err != nil {
		return nil, err
	}
	// nolint:errcheck
	defer rows.Close()
	return scanVaults(rows)
}

func (r *vaultRepository) SpendVaults(
	ctx context.Context, spentVaults map[ledger.OutRef]string,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// nolint:errcheck
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for ref, spentBy := range spentVaults {
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE vault SET spent = true, spent_by = ?, updated_at = ?
			WHERE txid = ? AND vout = ? AND spent = false`,
			spentBy, now, ref.TxID, ref.Index,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *vaultRepository) Close() {
	_ = r.db.Close()
}

const selectVault = `SELECT txid, vout, payment_kind, payment_hash, delegation,
	value, record, spent, spent_by, created_at FROM vault`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVault(row rowScanner) (*domain.VaultUtxo, error) {
	var (
		txid, paymentHash, delegation, valueJSON, spentBy string
		vout                                              uint32
		paymentKind                                       int
		record                                            []byte
		spent                                             bool
		createdAt                                         int64
	)
	if err := row.Scan(
		&txid, &vout, &paymentKind, &paymentHash, &delegation,
		&valueJSON, &record, &spent, &spentBy, &createdAt,
	); err != nil {
		return nil, err
	}

	var val value.Value
	if err := json.Unmarshal([]byte(valueJSON), &val); err != nil {
		return nil, fmt.Errorf("failed to decode vault value: %s", err)
	}
	rec, err := vault.RecordFromDatum(record)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vault record: %s", err)
	}

	return &domain.VaultUtxo{
		Ref: ledger.OutRef{TxID: txid, Index: vout},
		Address: ledger.Address{
			Payment: ledger.Credential{
				Kind: ledger.CredentialKind(paymentKind),
				Hash: paymentHash,
			},
			Delegation: delegation,
		},
		Value:     val,
		Record:    *rec,
		Spent:     spent,
		SpentBy:   spentBy,
		CreatedAt: createdAt,
	}, nil
}

func scanVaults(rows *sql.Rows) ([]domain.VaultUtxo, error) {
	vaults := make([]domain.VaultUtxo, 0)
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, err
		}
		vaults = append(vaults, *v)
	}
	return vaults, rows.Err()
}
