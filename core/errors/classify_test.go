package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"lendchain/native/arbitration"
	"lendchain/native/bank"
	"lendchain/native/common"
	"lendchain/native/escrow"
)

func TestClassifyWrappedSentinels(t *testing.T) {
	cases := []struct {
		err   error
		class Class
		code  int
		name  string
	}{
		{escrow.ErrUnauthorized, ClassAuthorization, CodeAuthorization, "ErrUnauthorized"},
		{fmt.Errorf("borrow: %w", escrow.ErrInvalidSignature), ClassValidation, CodeValidation, "ErrInvalidSignature"},
		{arbitration.ErrSeverityOutOfRange, ClassValidation, CodeValidation, "ErrSeverityOutOfRange"},
		{fmt.Errorf("finalize: %w", common.ErrReentrant), ClassState, CodeState, "ErrReentrant"},
		{arbitration.ErrVotingPeriodNotOver, ClassState, CodeState, "ErrVotingPeriodNotOver"},
		{fmt.Errorf("transfer: %w", bank.ErrInsufficientBalance), ClassInvariant, CodeInvariant, "ErrInsufficientBalance"},
		{escrow.ErrPayoutExceedsDeposit, ClassInvariant, CodeInvariant, "ErrPayoutExceedsDeposit"},
		{stderrors.New("disk on fire"), ClassUnknown, CodeUnknown, ""},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.class {
			t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.class)
		}
		if got := Code(tc.err); got != tc.code {
			t.Fatalf("Code(%v) = %d, want %d", tc.err, got, tc.code)
		}
		if got := Name(tc.err); got != tc.name {
			t.Fatalf("Name(%v) = %q, want %q", tc.err, got, tc.name)
		}
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(nil) != ClassNone {
		t.Fatalf("expected ClassNone for nil")
	}
	if Name(nil) != "" {
		t.Fatalf("expected empty name for nil")
	}
}
