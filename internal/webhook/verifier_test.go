package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orchestrator/internal/domain"
)

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	body := []byte(`{"event":"generation.completed","task_id":"t1"}`)
	secret := "whsec_test"

	header := Sign(body, secret)
	assert.True(t, Verify(body, header, secret))
}

func TestVerifyRejectsMutations(t *testing.T) {
	t.Parallel()
	body := []byte(`{"event":"generation.completed","task_id":"t1"}`)
	secret := "whsec_test"
	header := Sign(body, secret)

	t.Run("body_bit_flip", func(t *testing.T) {
		t.Parallel()
		for i := range body {
			mutated := append([]byte(nil), body...)
			mutated[i] ^= 0x01
			assert.False(t, Verify(mutated, header, secret), "flipped byte %d accepted", i)
		}
	})

	t.Run("signature_bit_flip", func(t *testing.T) {
		t.Parallel()
		// Flip one hex nibble of the signature.
		raw := []byte(header)
		last := len(raw) - 1
		if raw[last] == 'a' {
			raw[last] = 'b'
		} else {
			raw[last] = 'a'
		}
		assert.False(t, Verify(body, string(raw), secret))
	})

	t.Run("wrong_secret", func(t *testing.T) {
		t.Parallel()
		assert.False(t, Verify(body, header, "other-secret"))
	})
}

func TestVerifyMalformedHeader(t *testing.T) {
	t.Parallel()
	body := []byte("payload")
	secret := "s"

	cases := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"missing_prefix", "deadbeef"},
		{"wrong_prefix", "sha512=deadbeef"},
		{"not_hex", "sha256=zzzz"},
		{"truncated", "sha256=dead"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.False(t, Verify(body, tc.header, secret))
		})
	}
}

func TestVerifyEmptySecret(t *testing.T) {
	t.Parallel()
	body := []byte("payload")
	assert.False(t, Verify(body, Sign(body, ""), ""))
}

func TestParsePayload(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"event":"generation.completed","task_id":"t1","data":{"status":"completed","image_url":"https://x/y.jpg"}}`)

	p, err := ParsePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, "t1", p.TaskID)

	snap := p.Snapshot()
	assert.Equal(t, domain.TaskStatusCompleted, snap.Status)
	assert.Equal(t, "https://x/y.jpg", snap.ResultURL)
}

func TestParsePayloadFailure(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"event":"generation.failed","task_id":"t2","data":{"status":"failed"}}`)

	p, err := ParsePayload(raw)
	require.NoError(t, err)
	snap := p.Snapshot()
	assert.Equal(t, domain.TaskStatusFailed, snap.Status)
	assert.NotEmpty(t, snap.ErrorMessage)
}

func TestParsePayloadRequiresTaskID(t *testing.T) {
	t.Parallel()
	_, err := ParsePayload([]byte(`{"event":"x","data":{}}`))
	assert.Error(t, err)
}
