package trading

import (
	"context"
	"errors"
	"strings"
	"testing"

	"options-webhook-trader/broker"
)

func TestValidateCredentialsSuccess(t *testing.T) {
	b := &stubBroker{}

	result, err := ValidateCredentials(context.Background(), b, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK {
		t.Errorf("expected OK, got message %q", result.Message)
	}
}

func TestValidateCredentialsAuthFailureIsNotAnError(t *testing.T) {
	b := &stubBroker{accountErr: &broker.APIError{StatusCode: 401, Body: "unauthorized"}}

	result, err := ValidateCredentials(context.Background(), b, 2, 0)
	if err != nil {
		t.Fatalf("auth failure must not surface as error, got %v", err)
	}
	if result.OK {
		t.Error("expected OK=false for rejected credentials")
	}
	if !strings.Contains(result.Message, "invalid credentials") {
		t.Errorf("message %q should identify bad credentials", result.Message)
	}
	if b.accountCalls != 1 {
		t.Errorf("API-level failure must not be retried, got %d calls", b.accountCalls)
	}
}

func TestValidateCredentialsTransportFailureRetriesThenErrors(t *testing.T) {
	b := &stubBroker{accountErr: errors.New("dial tcp: i/o timeout")}

	_, err := ValidateCredentials(context.Background(), b, 2, 0)
	if !errors.Is(err, ErrServiceUnreachable) {
		t.Fatalf("expected ServiceUnreachable, got %v", err)
	}
	if b.accountCalls != 3 {
		t.Errorf("expected initial call + 2 retries = 3 calls, got %d", b.accountCalls)
	}
}

func TestValidateCredentialsServerErrorIsServiceFailure(t *testing.T) {
	b := &stubBroker{accountErr: &broker.APIError{StatusCode: 500, Body: "internal"}}

	_, err := ValidateCredentials(context.Background(), b, 2, 0)
	if !errors.Is(err, ErrServiceUnreachable) {
		t.Fatalf("a 500 says nothing about the credentials, want ServiceUnreachable, got %v", err)
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error %q should carry the status code", err)
	}
	if b.accountCalls != 1 {
		t.Errorf("API-level failure must not be retried, got %d calls", b.accountCalls)
	}
}
