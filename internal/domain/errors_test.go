package domain

import (
	"errors"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("dial", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "dial: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "dial: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		retriable := NewNetworkError("read", baseErr)
		plain := errors.New("plain error")

		if !IsRetriable(retriable) {
			t.Error("IsRetriable should return true for retriable error")
		}

		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestClassifyExecution(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want ExecutionKind
	}{
		{"insufficient balance", "400: New order cost exceeds available balance", ExecutionInsufficientBalance},
		{"precision", "400: Invalid quantity precision for order", ExecutionPrecision},
		{"anything else", "order rejected: market closed", ExecutionUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := errors.New(tt.msg)
			execErr := ClassifyExecution("BTC-USD", base)

			if execErr.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", execErr.Kind, tt.want)
			}
			if !errors.Is(execErr, base) {
				t.Error("Expected classified error to wrap the venue error")
			}
			if execErr.IsRetriable() {
				t.Error("A rejected placement must never be retriable")
			}
			if execErr.Market != "BTC-USD" {
				t.Errorf("Market = %q, want BTC-USD", execErr.Market)
			}
		})
	}
}

func TestExecutionKindString(t *testing.T) {
	if got := ExecutionInsufficientBalance.String(); got != "INSUFFICIENT_BALANCE" {
		t.Errorf("String() = %q", got)
	}
	if got := ExecutionPrecision.String(); got != "PRECISION_ERROR" {
		t.Errorf("String() = %q", got)
	}
	if got := ExecutionUnclassified.String(); got != "EXECUTION_FAILED" {
		t.Errorf("String() = %q", got)
	}
}
