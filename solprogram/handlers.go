package solprogram

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"

	"tokenmigration/exchange"
)

// BuildTransactionRequest - Body of POST /api/v1/migration/transaction/build
type BuildTransactionRequest struct {
	Kind        TxKind `json:"kind"`
	ProjectID   string `json:"project_id"`
	UserAddress string `json:"user_address"`
	// Amount is in raw units; AmountDecimal is a human amount in the input token's
	// decimals. Exactly one is needed except for refunds.
	Amount        uint64   `json:"amount,omitempty"`
	AmountDecimal string   `json:"amount_decimal,omitempty"`
	Proof         []string `json:"proof,omitempty"` // hex encoded 32-byte nodes
}

// Response type
type Response struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	ErrorCode   ErrorCode   `json:"error_code,omitempty"`
	Retryable   bool        `json:"retryable,omitempty"`
	ProgramLogs []string    `json:"program_logs,omitempty"`
}

// EligibilityResponse - Eligibility plus the preferred claim
type EligibilityResponse struct {
	ClaimEligibility
	Phase     Phase     `json:"phase"`
	BestClaim ClaimType `json:"best_claim"`
}

// DeriveResponse - Project PDAs and optionally the user's migration record address
type DeriveResponse struct {
	ProgramID     solana.PublicKey  `json:"program_id"`
	ProjectID     string            `json:"project_id"`
	Addresses     ProjectAddresses  `json:"addresses"`
	UserMigration *solana.PublicKey `json:"user_migration,omitempty"`
}

// RegisterRoutes mounts the migration endpoints on mux.
func (c *MigrationClient) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/migration/project", c.HandleGetProject)
	mux.HandleFunc("/api/v1/migration/balances", c.HandleGetBalances)
	mux.HandleFunc("/api/v1/migration/eligibility", c.HandleGetEligibility)
	mux.HandleFunc("/api/v1/migration/derive", c.HandleDerive)
	mux.HandleFunc("/api/v1/migration/transaction/build", c.HandleBuildTransaction)
}

// HandleGetProject handles GET ?project_id=
func (c *MigrationClient) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	view, err := c.LoadProjectState(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: view})
}

// HandleGetBalances handles GET ?project_id=&user_address=
func (c *MigrationClient) HandleGetBalances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, err := parseAddress(q.Get("user_address"))
	if err != nil {
		writeError(w, err)
		return
	}

	snap, err := c.GetBalances(r.Context(), q.Get("project_id"), user, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: snap})
}

// HandleGetEligibility handles GET ?project_id=&user_address=
func (c *MigrationClient) HandleGetEligibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, err := parseAddress(q.Get("user_address"))
	if err != nil {
		writeError(w, err)
		return
	}

	elig, project, err := c.GetEligibility(r.Context(), q.Get("project_id"), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: EligibilityResponse{
		ClaimEligibility: elig,
		Phase:            project.Phase,
		BestClaim:        BestClaimType(elig),
	}})
}

// HandleDerive handles GET ?project_id=[&user_address=]. It never touches the ledger.
func (c *MigrationClient) HandleDerive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	projectID := q.Get("project_id")
	addrs, err := DeriveProjectAddresses(c.programID, projectID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := DeriveResponse{ProgramID: c.programID, ProjectID: projectID, Addresses: addrs}
	if raw := q.Get("user_address"); raw != "" {
		user, err := parseAddress(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		pda, _, err := DeriveUserMigrationPDA(c.programID, projectID, user)
		if err != nil {
			writeError(w, err)
			return
		}
		resp.UserMigration = &pda
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: resp})
}

// HandleBuildTransaction handles POST of a BuildTransactionRequest
func (c *MigrationClient) HandleBuildTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Success: false, Message: "method not allowed"})
		return
	}

	var req BuildTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	user, err := parseAddress(req.UserAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	proof, err := parseProof(req.Proof)
	if err != nil {
		writeError(w, err)
		return
	}

	buildReq := BuildRequest{ProjectID: req.ProjectID, User: user, Amount: req.Amount, Proof: proof}
	if req.AmountDecimal != "" {
		project, err := c.LoadProjectState(r.Context(), req.ProjectID)
		if err != nil {
			writeError(w, err)
			return
		}
		amount, err := exchange.ParseAmount(req.AmountDecimal, InputDecimals(req.Kind, project))
		if err != nil {
			writeError(w, err)
			return
		}
		buildReq.Amount = amount
		buildReq.Project = &project
	}

	built, err := c.BuildTransaction(r.Context(), req.Kind, buildReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Unsigned transaction created",
		Data:    built,
	})
}

// InputDecimals - Decimals of the token a transaction kind consumes
func InputDecimals(kind TxKind, project ProjectView) uint8 {
	if kind == TxClaimReceipt || kind == TxClaimRefund {
		return project.ReceiptDecimals
	}
	return project.OldDecimals
}

func parseAddress(raw string) (solana.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return solana.PublicKey{}, NewError(CodeInvalidAddress, "user_address is required", nil)
	}
	pk, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, NewError(CodeInvalidAddress, fmt.Sprintf("invalid address %q", raw), err)
	}
	return pk, nil
}

// parseProof decodes hex merkle nodes.
func parseProof(nodes []string) ([][32]byte, error) {
	out := make([][32]byte, 0, len(nodes))
	for i, node := range nodes {
		b, err := hex.DecodeString(strings.TrimPrefix(node, "0x"))
		if err != nil || len(b) != 32 {
			return nil, NewError(CodeInvalidAmount, fmt.Sprintf("proof node %d is not 32 hex-encoded bytes", i), err)
		}
		var n [32]byte
		copy(n[:], b)
		out = append(out, n)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, err error) {
	e := NormalizeError(err)
	writeJSON(w, httpStatus(e.Code), Response{
		Success:     false,
		Message:     e.Message,
		ErrorCode:   e.Code,
		Retryable:   e.Retryable,
		ProgramLogs: ExtractLogMessages(e.Cause),
	})
}

func httpStatus(code ErrorCode) int {
	switch code {
	case CodeNotFound, CodeAccountNotFound:
		return http.StatusNotFound
	case CodeInvalidAmount, CodeInvalidAddress, CodeInvalidMint:
		return http.StatusBadRequest
	case CodePaused, CodeWindowClosed, CodeInvalidPhase, CodeInsufficientBalance:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeRPCError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
