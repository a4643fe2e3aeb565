package solprogram

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenmigration/exchange"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"exchange overflow", fmt.Errorf("quote: %w", exchange.ErrOverflow), CodeInvalidAmount},
		{"exchange decimals", exchange.ErrInvalidDecimals, CodeInvalidAmount},
		{"exchange amount", exchange.ErrInvalidAmount, CodeInvalidAmount},
		{"rpc not found", fmt.Errorf("load: %w", rpc.ErrNotFound), CodeAccountNotFound},
		{"http 429", errors.New("rpc call getBalance() on https://x: HTTP status code 429"), CodeRateLimited},
		{"too many requests", errors.New("Too Many Requests"), CodeRateLimited},
		{"rate limit text", errors.New("rate limit exceeded"), CodeRateLimited},
		{"json rpc 429", &jsonrpc.RPCError{Code: 429, Message: "slow down"}, CodeRateLimited},
		{"instruction error json", errors.New(`failed: {"err": {"InstructionError": [0, {"Custom": 6002}]}}`), CodeWindowClosed},
		{"custom text", errors.New("Custom: 6000"), CodePaused},
		{"custom hex", errors.New("Transaction simulation failed: custom program error: 0x1775"), CodeInsufficientBalance},
		{"anchor not initialized", errors.New("Error Number: 3012. Error Message: AccountNotInitialized"), CodeAccountNotFound},
		{"unmapped custom code", errors.New("custom program error: 0x2710"), CodeTransactionFailed},
		{"blockhash expired", errors.New("Transaction simulation failed: Blockhash not found"), CodeTransactionFailed},
		{"simulation", errors.New("Transaction simulation failed: Error processing Instruction 0"), CodeSimulationFailed},
		{"insufficient funds", errors.New("Attempt to debit an account but found no record of a prior credit: insufficient funds"), CodeInsufficientBalance},
		{"missing account", errors.New("Invalid param: could not find account"), CodeAccountNotFound},
		{"invalid mint", errors.New("Invalid Mint for token account"), CodeInvalidMint},
		{"json rpc error", &jsonrpc.RPCError{Code: -32603, Message: "internal error"}, CodeRPCError},
		{"transport", errors.New("Post \"https://x\": dial tcp: connection refused"), CodeRPCError},
		{"anything else", errors.New("boom"), CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
			assert.Equal(t, tt.want.Retryable(), got.Retryable)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestNormalizeError_KeepsExisting(t *testing.T) {
	orig := NewError(CodePaused, "paused", nil)
	wrapped := fmt.Errorf("build: %w", orig)

	assert.Same(t, orig, NormalizeError(wrapped))
	assert.Nil(t, NormalizeError(nil))
}

func TestNormalizeError_UnwrapsCause(t *testing.T) {
	e := NormalizeError(fmt.Errorf("read: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, e, context.DeadlineExceeded)
	assert.True(t, e.Retryable)
}

func TestErrorCode_Retryable(t *testing.T) {
	retryable := map[ErrorCode]bool{
		CodeRPCError:          true,
		CodeRateLimited:       true,
		CodeSimulationFailed:  true,
		CodeTransactionFailed: true,
		CodeUnknown:           true,
	}
	all := []ErrorCode{
		CodeNotFound, CodePaused, CodeWindowClosed, CodeInvalidPhase, CodeAccountNotFound,
		CodeInsufficientBalance, CodeInvalidMint, CodeTransactionFailed, CodeSimulationFailed,
		CodeRPCError, CodeRateLimited, CodeInvalidAmount, CodeInvalidAddress, CodeUnknown,
	}
	for _, c := range all {
		assert.Equal(t, retryable[c], c.Retryable(), c)
	}
}

func TestExtractErrorCode(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{`{"err": {"InstructionError": [1, {"Custom": 6004}]}}`, 6004},
		{`"Custom": "6005"`, 6005},
		{`InstructionError(0, Custom(6009))`, 6009},
		{`custom program error: 0x1770`, 6000},
		{`Error Number: 2006.`, 2006},
	}
	for _, tt := range tests {
		code := ExtractErrorCode(errors.New(tt.in))
		require.NotNil(t, code, tt.in)
		assert.Equal(t, tt.want, *code, tt.in)
	}

	assert.Nil(t, ExtractErrorCode(errors.New("nothing here")))
	assert.Nil(t, ExtractErrorCode(nil))
}

func TestExtractErrorCode_FromRPCData(t *testing.T) {
	err := &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed",
		Data: map[string]interface{}{
			"err": map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6008}}},
		},
	}
	code := ExtractErrorCode(err)
	require.NotNil(t, code)
	assert.Equal(t, 6008, *code)
	assert.Equal(t, CodeTransactionFailed, NormalizeError(err).Code)
}

func TestExtractLogMessages(t *testing.T) {
	err := errors.New("simulation failed\nProgram log: Instruction: Migrate\nProgram log: AnchorError thrown\nProgram log: Instruction: Migrate")
	assert.Equal(t, []string{"Instruction: Migrate", "AnchorError thrown"}, ExtractLogMessages(err))
	assert.Nil(t, ExtractLogMessages(nil))
}
