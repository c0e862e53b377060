package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func TestVerifySignature_Valid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := ComputeSignature(time.Now().Unix(), payload, testSecret)
	assert.NoError(t, VerifySignature(payload, header, testSecret))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := ComputeSignature(time.Now().Unix(), payload, "other-secret")
	assert.ErrorIs(t, VerifySignature(payload, header, testSecret), ErrBadSignature)
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","amount":100}`)
	header := ComputeSignature(time.Now().Unix(), payload, testSecret)
	tampered := []byte(`{"id":"evt_1","amount":999}`)
	assert.ErrorIs(t, VerifySignature(tampered, header, testSecret), ErrBadSignature)
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	for _, header := range []string{"", "t=123", "v1=deadbeef", "garbage", "t=,v1="} {
		assert.ErrorIs(t, VerifySignature(payload, header, testSecret), ErrBadSignature, "header %q", header)
	}
}

func TestVerifySignature_TimestampIsPartOfTheSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := ComputeSignature(1700000000, payload, testSecret)
	require.NoError(t, VerifySignature(payload, header, testSecret))

	// Re-stamping the header without recomputing the MAC must fail.
	forged := "t=1700000001" + header[len("t=1700000000"):]
	assert.ErrorIs(t, VerifySignature(payload, forged, testSecret), ErrBadSignature)
}
