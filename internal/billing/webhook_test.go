package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

const testSecret = "whsec_test_secret"

func signedHeader(t *testing.T, body []byte, ts time.Time) string {
	t.Helper()
	message := fmt.Sprintf("%d.%s", ts.Unix(), body)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(message))
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), sig)
}

func TestVerifyWebhookSignatureAccepts(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	header := signedHeader(t, body, time.Now())
	if err := VerifyWebhookSignature(body, header, testSecret); err != nil {
		t.Fatalf("VerifyWebhookSignature: %v", err)
	}
}

func TestVerifyWebhookSignatureRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	header := signedHeader(t, body, time.Now())
	tampered := []byte(`{"id":"evt_2"}`)
	if err := VerifyWebhookSignature(tampered, header, testSecret); err != ErrSignatureMismatch {
		t.Fatalf("got %v, want ErrSignatureMismatch", err)
	}
}

func TestVerifyWebhookSignatureRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	header := signedHeader(t, body, time.Now().Add(-10*time.Minute))
	if err := VerifyWebhookSignature(body, header, testSecret); err != ErrTimestampSkew {
		t.Fatalf("got %v, want ErrTimestampSkew", err)
	}
}

func TestVerifyWebhookSignatureRejectsMissingHeader(t *testing.T) {
	if err := VerifyWebhookSignature([]byte("{}"), "", testSecret); err != ErrMissingSignatureHeader {
		t.Fatalf("got %v, want ErrMissingSignatureHeader", err)
	}
}

func TestVerifyWebhookSignatureRejectsMalformedHeader(t *testing.T) {
	if err := VerifyWebhookSignature([]byte("{}"), "not-a-valid-header", testSecret); err != ErrMalformedSignature {
		t.Fatalf("got %v, want ErrMalformedSignature", err)
	}
}
