package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	grpccodes "google.golang.org/grpc/codes"

	"github.com/vaultd-labs/vaultd/internal/core/application"
	"github.com/vaultd-labs/vaultd/pkg/errors"
	"github.com/vaultd-labs/vaultd/pkg/vault-lib/ledger"
)

type handler struct {
	appSvc application.Service
}

func newHandler(appSvc application.Service) *handler {
	return &handler{appSvc}
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /v1/transactions", h.processTransaction)
	mux.HandleFunc("POST /v1/transactions/evaluate", h.evaluateTransaction)
	mux.HandleFunc("GET /v1/vaults", h.listVaults)
	mux.HandleFunc("GET /v1/vaults/claimable", h.listClaimableVaults)
	mux.HandleFunc("GET /v1/vaults/{txid}/{vout}", h.getVault)
	return logRequests(mux)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) processTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTxRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := h.appSvc.ProcessTransaction(r.Context(), *req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEventResponse(*event))
}

func (h *handler) evaluateTransaction(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTxRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.appSvc.EvaluateTransaction(r.Context(), *req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func (h *handler) listVaults(w http.ResponseWriter, r *http.Request) {
	vaults, err := h.appSvc.ListVaults(r.Context())
	if err != nil {
		writeError(w, errors.INTERNAL_ERROR.Wrap(err))
		return
	}
	writeJSON(w, http.StatusOK, newVaultListResponse(vaults))
}

func (h *handler) listClaimableVaults(w http.ResponseWriter, r *http.Request) {
	now := time.Now().Unix()
	if q := r.URL.Query().Get("now"); q != "" {
		parsed, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			writeError(w, errors.MALFORMED_TX.New("invalid 'now' query parameter"))
			return
		}
		now = parsed
	}

	vaults, err := h.appSvc.GetClaimableVaults(r.Context(), now)
	if err != nil {
		writeError(w, errors.INTERNAL_ERROR.Wrap(err))
		return
	}
	writeJSON(w, http.StatusOK, newVaultListResponse(vaults))
}

func (h *handler) getVault(w http.ResponseWriter, r *http.Request) {
	vout, err := strconv.ParseUint(r.PathValue("vout"), 10, 32)
	if err != nil {
		writeError(w, errors.MALFORMED_TX.New("invalid output index"))
		return
	}
	ref := ledger.OutRef{TxID: r.PathValue("txid"), Index: uint32(vout)}

	vault, getErr := h.appSvc.GetVault(r.Context(), ref)
	if getErr != nil {
		if strings.Contains(getErr.Error(), "not found") {
			writeError(w, errors.VAULT_NOT_FOUND.New("vault %s not found", ref).
				WithMetadata(errors.VaultMetadata{Outpoint: ref.String()}))
			return
		}
		writeError(w, errors.INTERNAL_ERROR.Wrap(getErr))
		return
	}
	writeJSON(w, http.StatusOK, newVaultResponse(*vault))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nolint:errcheck
	json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Code     uint16            `json:"code"`
	Name     string            `json:"name"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeError(w http.ResponseWriter, err errors.Error) {
	status := httpStatus(err.GrpcCode())
	if status >= http.StatusInternalServerError {
		err.Log().Error("request failed")
	} else {
		err.Log().Debug("request rejected")
	}
	writeJSON(w, status, errorResponse{
		Code:     err.Code(),
		Name:     err.CodeName(),
		Message:  err.Error(),
		Metadata: err.Metadata(),
	})
}

func httpStatus(code grpccodes.Code) int {
	switch code {
	case grpccodes.InvalidArgument:
		return http.StatusUnprocessableEntity
	case grpccodes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	case grpccodes.PermissionDenied:
		return http.StatusForbidden
	case grpccodes.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.WithFields(log.Fields{
			"method":  r.Method,
			"path":    r.URL.Path,
			"elapsed": time.Since(start).String(),
		}).Trace("handled request")
	})
}
