package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	app "github.com/CommonsHub/community_layer/internal/app"
	govdomain "github.com/CommonsHub/community_layer/internal/app/domain/governance"
	ledgerdomain "github.com/CommonsHub/community_layer/internal/app/domain/ledger"
	"github.com/CommonsHub/community_layer/internal/app/metrics"
	governancesvc "github.com/CommonsHub/community_layer/internal/app/services/governance"
	ledgersvc "github.com/CommonsHub/community_layer/internal/app/services/ledger"
	"github.com/CommonsHub/community_layer/internal/app/storage"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application, audit: newAuditLog(0, nil)}
	return h.recordAudit(newMux(h))
}

// NewHandlerWithAuditFile additionally persists the audit trail as JSONL at
// path. An empty path keeps the trail in memory only.
func NewHandlerWithAuditFile(application *app.Application, path string) (http.Handler, error) {
	sink, err := newFileAuditSink(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	var s auditSink
	if sink != nil {
		s = sink
	}
	h := &handler{app: application, audit: newAuditLog(0, s)}
	return h.recordAudit(newMux(h)), nil
}

func newMux(h *handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts", h.accounts)
	mux.HandleFunc("/accounts/", h.accountResources)
	mux.HandleFunc("/governance/", h.governanceResources)
	mux.HandleFunc("/dashboard", h.dashboard)
	mux.HandleFunc("/audit", h.auditEntries)
	mux.HandleFunc("/healthz", h.healthz)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) accounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Owner string `json:"owner"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(payload.Owner) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("owner is required"))
		return
	}

	acct, err := h.app.Ledger.EnsureAccount(r.Context(), payload.Owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

func (h *handler) accountResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/accounts"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID := parts[0]
	rest := parts[1:]

	if len(rest) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch rest[0] {
	case "balance":
		h.accountBalance(w, r, userID, rest[1:])
	case "income":
		h.accountIncome(w, r, userID, rest[1:])
	case "payments":
		h.accountPayments(w, r, userID, rest[1:])
	case "transactions":
		h.accountTransactions(w, r, userID, rest[1:])
	case "savings":
		h.accountSavings(w, r, userID, rest[1:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) accountBalance(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) != 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	balance, err := h.app.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (h *handler) accountIncome(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) != 1 || rest[0] != "claim" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tx, err := h.app.Ledger.ClaimDailyIncome(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *handler) accountPayments(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) != 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Counterparty string `json:"counterparty"`
		Amount       int64  `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := h.app.Ledger.SendPayment(r.Context(), userID, payload.Counterparty, ledgerdomain.Cents(payload.Amount))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *handler) accountTransactions(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) != 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	txs, err := h.app.Ledger.ListTransactions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *handler) accountSavings(w http.ResponseWriter, r *http.Request, userID string, rest []string) {
	if len(rest) != 1 || rest[0] != "deposits" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := h.app.Savings.Deposit(r.Context(), userID, ledgerdomain.Cents(payload.Amount))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *handler) governanceResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/governance"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[0] {
	case "proposals":
		h.proposals(w, r, parts[1:])
	case "goals":
		h.goals(w, r, parts[1:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) proposals(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			proposals, err := h.app.Governance.ListProposals(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, proposals)
		case http.MethodPost:
			var payload struct {
				Author      string `json:"author"`
				Title       string `json:"title"`
				Description string `json:"description"`
				Category    string `json:"category"`
				Budget      int64  `json:"budget"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			proposal, err := h.app.Governance.CreateProposal(r.Context(), payload.Author, payload.Title,
				payload.Description, payload.Category, ledgerdomain.Cents(payload.Budget))
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, proposal)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	proposalID := rest[0]
	if len(rest) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		view, err := h.app.Governance.GetProposal(r.Context(), proposalID, r.URL.Query().Get("user_id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	switch rest[1] {
	case "votes":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			UserID string `json:"user_id"`
			Choice string `json:"choice"`
			Reason string `json:"reason"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		vote, err := h.app.Governance.CastVote(r.Context(), proposalID, payload.UserID,
			govdomain.VoteChoice(payload.Choice), payload.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, vote)
	case "execute":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		proposal, err := h.app.Governance.ExecuteProposal(r.Context(), proposalID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, proposal)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) goals(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			goals, err := h.app.Governance.ListGoals(r.Context())
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, goals)
		case http.MethodPost:
			var payload struct {
				Title        string `json:"title"`
				Category     string `json:"category"`
				TargetAmount int64  `json:"target_amount"`
				Deadline     string `json:"deadline"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			deadline, err := time.Parse(time.RFC3339, strings.TrimSpace(payload.Deadline))
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("deadline must be RFC3339 timestamp"))
				return
			}
			goal, err := h.app.Governance.CreateGoal(r.Context(), payload.Title, payload.Category,
				ledgerdomain.Cents(payload.TargetAmount), deadline)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, goal)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	goalID := rest[0]
	if len(rest) != 2 || rest[1] != "contributions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		UserID    string `json:"user_id"`
		Amount    int64  `json:"amount"`
		Anonymous bool   `json:"anonymous"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	contribution, goal, err := h.app.Governance.ContributeToGoal(r.Context(), goalID, payload.UserID,
		ledgerdomain.Cents(payload.Amount), payload.Anonymous)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Contribution govdomain.Contribution `json:"contribution"`
		Goal         govdomain.GoalView     `json:"goal"`
	}{
		Contribution: contribution,
		Goal:         goal,
	})
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user_id is required"))
		return
	}
	snap, err := h.app.Dashboard.Snapshot(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *handler) auditEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be an integer"))
			return
		}
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

// writeServiceError translates service sentinel errors into HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusForError(err), err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledgersvc.ErrCooldownActive),
		errors.Is(err, governancesvc.ErrAlreadyVoted),
		errors.Is(err, storage.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, governancesvc.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, ledgersvc.ErrInsufficientFunds),
		errors.Is(err, governancesvc.ErrVotingClosed),
		errors.Is(err, governancesvc.ErrAlreadyExecuted),
		errors.Is(err, governancesvc.ErrQuorumNotMet):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
