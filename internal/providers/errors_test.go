package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":                     ErrorQuota,
		"429 rate":                               ErrorRate,
		"input too long for model":               ErrorContext,
		"timeout":                                ErrorTransient,
		"dial tcp: connection refused":           ErrorTransient,
		"ollama embedding error 503: overloaded": ErrorTransient,
		"bad request":                            ErrorPermanent,
	}
	for msg, want := range cases {
		if got := ClassifyError(errors.New(msg)); got != want {
			t.Fatalf("classify %q: got %s want %s", msg, got, want)
		}
	}
	if got := ClassifyError(fmt.Errorf("embed: %w", context.Canceled)); got != ErrorCanceled {
		t.Fatalf("canceled context classified as %s", got)
	}
	if ClassifyError(nil) != "" {
		t.Fatalf("nil error must have no class")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(ErrorRate) || !Retryable(ErrorTransient) {
		t.Fatalf("rate and transient errors are retryable")
	}
	if Retryable(ErrorPermanent) || Retryable(ErrorQuota) || Retryable(ErrorCanceled) {
		t.Fatalf("permanent, quota and canceled errors are not retryable")
	}
}
