package solprogram

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"tokenmigration/exchange"
)

// ErrorCode - Closed set of failure categories exposed to callers
type ErrorCode string

const (
	CodeNotFound            ErrorCode = "NotFound"
	CodePaused              ErrorCode = "Paused"
	CodeWindowClosed        ErrorCode = "WindowClosed"
	CodeInvalidPhase        ErrorCode = "InvalidPhase"
	CodeAccountNotFound     ErrorCode = "AccountNotFound"
	CodeInsufficientBalance ErrorCode = "InsufficientBalance"
	CodeInvalidMint         ErrorCode = "InvalidMint"
	CodeTransactionFailed   ErrorCode = "TransactionFailed"
	CodeSimulationFailed    ErrorCode = "SimulationFailed"
	CodeRPCError            ErrorCode = "RpcError"
	CodeRateLimited         ErrorCode = "RateLimited"
	CodeInvalidAmount       ErrorCode = "InvalidAmount"
	CodeInvalidAddress      ErrorCode = "InvalidAddress"
	CodeUnknown             ErrorCode = "Unknown"
)

// Retryable reports whether a failure with this code may succeed on a later attempt.
func (c ErrorCode) Retryable() bool {
	switch c {
	case CodeRPCError, CodeRateLimited, CodeSimulationFailed, CodeTransactionFailed, CodeUnknown:
		return true
	default:
		return false
	}
}

// Error is the normalized failure returned at every public boundary of the package.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an *Error with the retryable flag implied by code.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: code.Retryable(),
		Cause:     cause,
	}
}

// IsCode reports whether err normalizes to code.
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return NormalizeError(err).Code == code
}

// programError maps an on-chain error number to a category and a readable message.
type programError struct {
	Code    ErrorCode
	Message string
}

// ProgramErrors codes from the migration program and the Anchor framework
var ProgramErrors = map[int]programError{
	6000: {CodePaused, "ProjectPaused - Migration is paused for this project"},
	6001: {CodeInvalidPhase, "MigrationNotStarted - Migration window has not opened"},
	6002: {CodeWindowClosed, "MigrationWindowClosed - Migration window has closed"},
	6003: {CodeInvalidPhase, "ClaimsNotEnabled - Claims are not enabled for this project"},
	6004: {CodeInvalidAmount, "InvalidAmount - Amount must be greater than zero"},
	6005: {CodeInsufficientBalance, "InsufficientBalance - Not enough tokens to migrate"},
	6006: {CodeInvalidMint, "InvalidMint - Mint does not match project configuration"},
	6007: {CodeInvalidAmount, "MathOverflow - Math calculation overflow"},
	6008: {CodeTransactionFailed, "InvalidProof - Merkle proof does not verify"},
	6009: {CodeInvalidPhase, "RefundNotAvailable - Migration has not failed"},
	6010: {CodeInvalidPhase, "RefundAlreadyClaimed - Refund already claimed"},
	6011: {CodeTransactionFailed, "Unauthorized - Signer is not allowed to perform this action"},

	2006: {CodeInvalidAddress, "ConstraintSeeds - A seeds constraint was violated"},
	2014: {CodeInvalidMint, "ConstraintMintMintAuthority - Mint constraint was violated"},
	3007: {CodeInvalidAddress, "AccountOwnedByWrongProgram - Account is owned by a different program"},
	3012: {CodeAccountNotFound, "AccountNotInitialized - Account is not initialized"},
}

var (
	jsonCustomPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"Custom":\s*(\d+)`),
		regexp.MustCompile(`"Custom":\s*"(\d+)"`),
		regexp.MustCompile(`Custom:\s*(\d+)`),
		regexp.MustCompile(`Custom\((\d+)\)`),
		regexp.MustCompile(`error code:\s*(\d+)`),
		regexp.MustCompile(`Error Number:\s*(\d+)`),
	}
	hexCustomPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)
	logPatterns      = []*regexp.Regexp{
		regexp.MustCompile(`Program log: ([^"\\\n]+?)(?:"|\\n|$)`),
		regexp.MustCompile(`Program log: ([^\n]+)`),
	}
)

// ExtractErrorCode tries multiple methods to extract custom program error code
func ExtractErrorCode(err error) *int {
	if err == nil {
		return nil
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Data != nil {
		if raw, mErr := json.Marshal(rpcErr.Data); mErr == nil {
			if code := extractCodeFromString(string(raw)); code != nil {
				return code
			}
		}
	}
	return extractCodeFromString(err.Error())
}

func extractCodeFromString(errStr string) *int {
	// Method 1: JSON structure "err": {"InstructionError": [0, {"Custom": 6002}]}
	if code := customFromInstructionError(errStr); code != nil {
		return code
	}

	// Method 2: textual Custom markers
	for _, re := range jsonCustomPatterns {
		if matches := re.FindStringSubmatch(errStr); len(matches) > 1 {
			if code, err := strconv.Atoi(matches[1]); err == nil {
				return &code
			}
		}
	}

	// Method 3: Hex format - custom program error: 0x1772
	if matches := hexCustomPattern.FindStringSubmatch(errStr); len(matches) > 1 {
		if code, err := strconv.ParseInt(matches[1], 16, 64); err == nil {
			intCode := int(code)
			return &intCode
		}
	}
	return nil
}

func customFromInstructionError(errStr string) *int {
	jsonStart := strings.Index(errStr, `"err":`)
	if jsonStart == -1 {
		return nil
	}

	// Extract balanced JSON object following the key
	body := errStr[jsonStart+len(`"err":`):]
	braceCount := 0
	begin, end := -1, -1
	for i, ch := range body {
		switch ch {
		case '{':
			if begin == -1 {
				begin = i
			}
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 && begin != -1 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}
	if begin == -1 || end == -1 {
		return nil
	}

	var wrapper struct {
		InstructionError []interface{} `json:"InstructionError"`
	}
	if err := json.Unmarshal([]byte(body[begin:end]), &wrapper); err != nil {
		return nil
	}
	if len(wrapper.InstructionError) < 2 {
		return nil
	}
	customMap, ok := wrapper.InstructionError[1].(map[string]interface{})
	if !ok {
		return nil
	}
	switch v := customMap["Custom"].(type) {
	case float64:
		code := int(v)
		return &code
	case string:
		if code, err := strconv.Atoi(v); err == nil {
			return &code
		}
	}
	return nil
}

// NormalizeError maps any failure onto the closed ErrorCode set. The original error is
// kept as Cause so errors.Is and errors.As still see it.
func NormalizeError(err error) *Error {
	if err == nil {
		return nil
	}

	var already *Error
	if errors.As(err, &already) {
		return already
	}

	switch {
	case errors.Is(err, exchange.ErrOverflow):
		return NewError(CodeInvalidAmount, "amount overflows a 64-bit unsigned integer", err)
	case errors.Is(err, exchange.ErrInvalidDecimals):
		return NewError(CodeInvalidAmount, "token decimals out of range", err)
	case errors.Is(err, exchange.ErrInvalidAmount):
		return NewError(CodeInvalidAmount, "invalid amount", err)
	case errors.Is(err, rpc.ErrNotFound):
		return NewError(CodeAccountNotFound, "account not found", err)
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	if isRateLimited(err, lower) {
		return NewError(CodeRateLimited, "rate limited by RPC endpoint", err)
	}

	if code := ExtractErrorCode(err); code != nil {
		if pe, ok := ProgramErrors[*code]; ok {
			return NewError(pe.Code, pe.Message, err)
		}
		return NewError(CodeTransactionFailed, fmt.Sprintf("Custom program error code: %d", *code), err)
	}

	switch {
	case strings.Contains(errStr, "BlockhashNotFound") || strings.Contains(lower, "blockhash not found"):
		return NewError(CodeTransactionFailed, "Transaction expired. The blockhash is no longer valid. Please create a new transaction and try again.", err)
	case strings.Contains(lower, "simulation failed"):
		return NewError(CodeSimulationFailed, "Transaction simulation failed. Check program logs for details.", err)
	case strings.Contains(lower, "insufficient funds") || strings.Contains(lower, "insufficient lamports"):
		return NewError(CodeInsufficientBalance, "Insufficient balance to pay for transaction", err)
	case strings.Contains(lower, "could not find account") || strings.Contains(lower, "account not found"):
		return NewError(CodeAccountNotFound, "account not found", err)
	case strings.Contains(lower, "invalid mint"):
		return NewError(CodeInvalidMint, "invalid mint", err)
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return NewError(CodeRPCError, rpcErr.Message, err)
	}
	if isTransportError(lower) {
		return NewError(CodeRPCError, "RPC request failed", err)
	}

	return NewError(CodeUnknown, truncate(errStr, 300), err)
}

func isRateLimited(err error, lower string) bool {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == 429 {
		return true
	}
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "rate limit")
}

func isTransportError(lower string) bool {
	for _, marker := range []string{"rpc", "connection", "timeout", "deadline exceeded", "eof", "no such host", "status code"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// ExtractLogMessages extracts program logs from error
func ExtractLogMessages(err error) []string {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	logs := []string{}

	for _, re := range logPatterns {
		for _, match := range re.FindAllStringSubmatch(errStr, -1) {
			if len(match) > 1 {
				log := strings.TrimSpace(match[1])
				if log != "" && !contains(logs, log) {
					logs = append(logs, log)
				}
			}
		}
	}

	return logs
}

// Helper function to check if slice contains string
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
