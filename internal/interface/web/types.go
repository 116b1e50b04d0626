package web

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/vaultd-labs/vaultd/internal/core/application"
	"github.com/vaultd-labs/vaultd/internal/core/domain"
	"github.com/vaultd-labs/vaultd/pkg/errors"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/value"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/vault"
)

type assetQuantity struct {
	PolicyID string `json:"policyId"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

type addressPayload struct {
	PaymentKind string `json:"paymentKind"`
	PaymentHash string `json:"paymentHash"`
	Delegation  string `json:"delegation,omitempty"`
}

type outputPayload struct {
	Address addressPayload  `json:"address"`
	Value   []assetQuantity `json:"value"`
	Datum   string          `json:"datum,omitempty"`
}

type inputPayload struct {
	Outpoint string         `json:"outpoint"`
	Output   *outputPayload `json:"output,omitempty"`
}

type txPayload struct {
	Txid       string          `json:"txid"`
	Inputs     []inputPayload  `json:"inputs"`
	Outputs    []outputPayload `json:"outputs"`
	Mint       []assetQuantity `json:"mint,omitempty"`
	ValidFrom  *int64          `json:"validFrom,omitempty"`
	ValidUntil *int64          `json:"validUntil,omitempty"`
	Signers    []string        `json:"signers,omitempty"`
}

type spendRequestPayload struct {
	Outpoint        string `json:"outpoint"`
	Partial         bool   `json:"partial,omitempty"`
	ProofInput      string `json:"proofInput,omitempty"`
	NextReceiptName string `json:"nextReceiptName,omitempty"`
}

type issuancePayload struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count,omitempty"`
}

type txRequestPayload struct {
	Tx            txPayload             `json:"tx"`
	SpendRequests []spendRequestPayload `json:"spendRequests,omitempty"`
	Issuance      *issuancePayload      `json:"issuance,omitempty"`
}

func decodeTxRequest(r *http.Request) (*application.TxRequest, errors.Error) {
	var payload txRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, errors.MALFORMED_TX.New("invalid request body: %s", err)
	}

	tx, err := payload.Tx.parse()
	if err != nil {
		return nil, err
	}

	spendRequests := make(map[string]vault.Request)
	for _, req := range payload.SpendRequests {
		parsed, err := req.parse()
		if err != nil {
			return nil, err
		}
		spendRequests[req.Outpoint] = *parsed
	}

	var issuance *vault.IssuanceRequest
	if payload.Issuance != nil {
		parsed, err := payload.Issuance.parse()
		if err != nil {
			return nil, err
		}
		issuance = parsed
	}

	return &application.TxRequest{
		Tx:            *tx,
		SpendRequests: spendRequests,
		Issuance:      issuance,
	}, nil
}

func (p txPayload) parse() (*ledger.Tx, errors.Error) {
	inputs := make([]ledger.Input, 0, len(p.Inputs))
	for _, in := range p.Inputs {
		var ref ledger.OutRef
		if err := ref.FromString(in.Outpoint); err != nil {
			return nil, errors.MALFORMED_TX.New("invalid input outpoint: %s", err).
				WithMetadata(errors.TxMetadata{Txid: p.Txid})
		}
		input := ledger.Input{Ref: ref}
		if in.Output != nil {
			out, err := in.Output.parse(p.Txid)
			if err != nil {
				return nil, err
			}
			input.Output = *out
		}
		inputs = append(inputs, input)
	}

	outputs := make([]ledger.Output, 0, len(p.Outputs))
	for _, o := range p.Outputs {
		out, err := o.parse(p.Txid)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, *out)
	}

	validRange := ledger.TimeRange{
		Lower: ledger.UnboundedBound(),
		Upper: ledger.UnboundedBound(),
	}
	if p.ValidFrom != nil {
		validRange.Lower = ledger.FiniteBound(*p.ValidFrom)
	}
	if p.ValidUntil != nil {
		validRange.Upper = ledger.FiniteBound(*p.ValidUntil)
	}

	return &ledger.Tx{
		ID:         p.Txid,
		Inputs:     inputs,
		Outputs:    outputs,
		Mint:       parseValue(p.Mint),
		ValidRange: validRange,
		Signers:    p.Signers,
	}, nil
}

func (p outputPayload) parse(txid string) (*ledger.Output, errors.Error) {
	var kind ledger.CredentialKind
	switch p.Address.PaymentKind {
	case "key":
		kind = ledger.CredentialKey
	case "script":
		kind = ledger.CredentialScript
	default:
		return nil, errors.MALFORMED_TX.New(
			"invalid payment credential kind %q", p.Address.PaymentKind,
		).WithMetadata(errors.TxMetadata{Txid: txid})
	}

	for _, e := range p.Value {
		if e.Quantity <= 0 {
			return nil, errors.MALFORMED_TX.New(
				"output quantity must be positive, got %d for %s.%s",
				e.Quantity, e.PolicyID, e.Name,
			).WithMetadata(errors.TxMetadata{Txid: txid})
		}
	}

	var datum []byte
	if p.Datum != "" {
		buf, err := hex.DecodeString(p.Datum)
		if err != nil {
			return nil, errors.MALFORMED_TX.New("invalid output datum: %s", err).
				WithMetadata(errors.TxMetadata{Txid: txid})
		}
		datum = buf
	}

	return &ledger.Output{
		Address: ledger.Address{
			Payment:    ledger.Credential{Kind: kind, Hash: p.Address.PaymentHash},
			Delegation: p.Address.Delegation,
		},
		Value: parseValue(p.Value),
		Datum: datum,
	}, nil
}

func (p spendRequestPayload) parse() (*vault.Request, errors.Error) {
	req := &vault.Request{
		Partial:         p.Partial,
		NextReceiptName: p.NextReceiptName,
	}
	if p.ProofInput != "" {
		var ref ledger.OutRef
		if err := ref.FromString(p.ProofInput); err != nil {
			return nil, errors.MALFORMED_TX.New("invalid proof input outpoint: %s", err)
		}
		req.ProofInputRef = &ref
	}
	return req, nil
}

func (p issuancePayload) parse() (*vault.IssuanceRequest, errors.Error) {
	switch p.Kind {
	case "mint":
		return &vault.IssuanceRequest{Kind: vault.IssueMint, Count: p.Count}, nil
	case "burn":
		return &vault.IssuanceRequest{Kind: vault.IssueBurn}, nil
	default:
		return nil, errors.MALFORMED_PURPOSE.New("invalid issuance kind %q", p.Kind).
			WithMetadata(errors.PurposeMetadata{Purpose: p.Kind})
	}
}

func parseValue(entries []assetQuantity) value.Value {
	parsed := make([]value.Entry, 0, len(entries))
	for _, e := range entries {
		parsed = append(parsed, value.Entry{
			Asset:    value.Asset{PolicyID: e.PolicyID, Name: e.Name},
			Quantity: e.Quantity,
		})
	}
	return value.New(parsed...)
}

type ownerResponse struct {
	Kind      string `json:"kind"`
	KeyHash   string `json:"keyHash,omitempty"`
	PolicyID  string `json:"policyId,omitempty"`
	AssetName string `json:"assetName,omitempty"`
}

type statusResponse struct {
	Kind           string `json:"kind"`
	RequestRef     string `json:"requestRef,omitempty"`
	UnlockDeadline int64  `json:"unlockDeadline,omitempty"`
}

type vaultResponse struct {
	Outpoint  string          `json:"outpoint"`
	Address   addressPayload  `json:"address"`
	Value     []assetQuantity `json:"value"`
	Owner     ownerResponse   `json:"owner"`
	Status    statusResponse  `json:"status"`
	Spent     bool            `json:"spent"`
	SpentBy   string          `json:"spentBy,omitempty"`
	CreatedAt int64           `json:"createdAt"`
}

type eventResponse struct {
	ID          string          `json:"id"`
	Txid        string          `json:"txid"`
	AcceptedAt  int64           `json:"acceptedAt"`
	SpentVaults []string        `json:"spentVaults"`
	NewVaults   []vaultResponse `json:"newVaults"`
}

func newVaultResponse(v domain.VaultUtxo) vaultResponse {
	status := statusResponse{Kind: v.Record.Status.Kind.String()}
	if v.IsUnlocking() {
		status.RequestRef = v.Record.Status.RequestRef.String()
		status.UnlockDeadline = v.Record.Status.UnlockDeadline
	}
	return vaultResponse{
		Outpoint: v.Ref.String(),
		Address: addressPayload{
			PaymentKind: v.Address.Payment.Kind.String(),
			PaymentHash: v.Address.Payment.Hash,
			Delegation:  v.Address.Delegation,
		},
		Value: formatValue(v.Value),
		Owner: ownerResponse{
			Kind:      v.Record.Owner.Kind.String(),
			KeyHash:   v.Record.Owner.KeyHash,
			PolicyID:  v.Record.Owner.PolicyID,
			AssetName: v.Record.Owner.AssetName,
		},
		Status:    status,
		Spent:     v.Spent,
		SpentBy:   v.SpentBy,
		CreatedAt: v.CreatedAt,
	}
}

func newVaultListResponse(vaults []domain.VaultUtxo) []vaultResponse {
	list := make([]vaultResponse, 0, len(vaults))
	for _, v := range vaults {
		list = append(list, newVaultResponse(v))
	}
	return list
}

func newEventResponse(event application.TransactionEvent) eventResponse {
	spent := make([]string, 0, len(event.SpentVaults))
	for _, ref := range event.SpentVaults {
		spent = append(spent, ref.String())
	}
	return eventResponse{
		ID:          event.ID.String(),
		Txid:        event.Txid,
		AcceptedAt:  event.AcceptedAt,
		SpentVaults: spent,
		NewVaults:   newVaultListResponse(event.NewVaults),
	}
}

func formatValue(v value.Value) []assetQuantity {
	entries := make([]assetQuantity, 0, len(v))
	for _, e := range v {
		entries = append(entries, assetQuantity{
			PolicyID: e.PolicyID,
			Name:     e.Name,
			Quantity: e.Quantity,
		})
	}
	return entries
}
