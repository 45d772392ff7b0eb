package credential

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coriolis-robotics/teleop/internal/didkey"
)

const multicodecEd25519Pub = byte(0xed)

type testIssuer struct {
	did string
	pub ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newTestIssuer(t *testing.T) testIssuer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	encoded := append([]byte{multicodecEd25519Pub}, pub...)
	return testIssuer{did: "did:key:z" + base58.Encode(encoded), pub: pub, priv: priv}
}

func (ti testIssuer) sign(t *testing.T, subject string, credential map[string]any, ttl time.Duration) []byte {
	t.Helper()
	payload, err := json.Marshal(credential)
	require.NoError(t, err)
	sig := ed25519.Sign(ti.priv, payload)

	exp := time.Now().Add(ttl).Unix()
	env := Envelope{
		Issuer:    ti.did,
		Subject:   subject,
		Algorithm: "ed25519",
		IssuedAt:  time.Now().Unix(),
		Expiry:    &exp,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
		Payload:   base64.RawURLEncoding.EncodeToString(payload),
		Credential: credential,
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	return raw
}

func newTestVerifier(issuer testIssuer) *Verifier {
	issuers := NewIssuerSet(issuer.did)
	resolver := didkey.NewResolver(time.Minute, 10)
	return NewVerifier(issuers, resolver, 5*time.Second)
}

func TestVerifier_VerifiesValidEnvelope(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(issuer)

	raw := issuer.sign(t, "robot-1", map[string]any{"id": "robot-1", "role": "robot", "region": "us-west"}, time.Hour)

	result, err := v.Verify(raw, "robot-1")
	require.NoError(t, err)
	assert.Equal(t, "robot", result.Attributes.Role)
	assert.Equal(t, "robot-1", result.Attributes.Subject)
	assert.Equal(t, "us-west", result.Attributes.Extra["region"])
}

func TestVerifier_RejectsUntrustedIssuer(t *testing.T) {
	issuer := newTestIssuer(t)
	resolver := didkey.NewResolver(time.Minute, 10)
	v := NewVerifier(NewIssuerSet(), resolver, 5*time.Second) // empty trust set

	raw := issuer.sign(t, "robot-1", map[string]any{"id": "robot-1"}, time.Hour)

	_, err := v.Verify(raw, "robot-1")
	assert.ErrorIs(t, err, ErrUntrustedIssuer)
}

func TestVerifier_RejectsExpiredCredential(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(issuer)

	raw := issuer.sign(t, "robot-1", map[string]any{"id": "robot-1"}, -time.Hour)

	_, err := v.Verify(raw, "robot-1")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifier_RejectsCredentialAtExactExpiryWithZeroSkew(t *testing.T) {
	issuer := newTestIssuer(t)
	resolver := didkey.NewResolver(time.Minute, 10)
	v := &Verifier{issuers: NewIssuerSet(issuer.did), resolver: resolver, skew: 0}

	raw := issuer.sign(t, "robot-1", map[string]any{"id": "robot-1"}, 0)

	_, err := v.Verify(raw, "robot-1")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifier_RejectsTamperedSignature(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(issuer)

	raw := issuer.sign(t, "robot-1", map[string]any{"id": "robot-1"}, time.Hour)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	env.Signature = base64.RawURLEncoding.EncodeToString([]byte("not-a-real-signature-0000000000"))
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = v.Verify(tampered, "robot-1")
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerifier_RejectsSubjectMismatch(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(issuer)

	raw := issuer.sign(t, "robot-1", map[string]any{"id": "robot-1"}, time.Hour)

	_, err := v.Verify(raw, "robot-2")
	assert.ErrorIs(t, err, ErrMissingCredentialClaim)
}

func TestVerifier_RejectsMissingCredentialClaim(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(issuer)

	payload, _ := json.Marshal(map[string]any{})
	sig := ed25519.Sign(issuer.priv, payload)
	exp := time.Now().Add(time.Hour).Unix()
	env := Envelope{
		Issuer:    issuer.did,
		Subject:   "robot-1",
		Algorithm: "ed25519",
		IssuedAt:  time.Now().Unix(),
		Expiry:    &exp,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
		Payload:   base64.RawURLEncoding.EncodeToString(payload),
	}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	_, err = v.Verify(raw, "robot-1")
	assert.ErrorIs(t, err, ErrMissingCredentialClaim)
}

func TestVerifier_ExtractForPolicySkipsSignatureCheck(t *testing.T) {
	issuer := newTestIssuer(t)
	v := newTestVerifier(issuer)

	raw := issuer.sign(t, "robot-1", map[string]any{"id": "robot-1", "role": "operator"}, time.Hour)

	attrs, err := v.ExtractForPolicy(raw)
	require.NoError(t, err)
	assert.Equal(t, "operator", attrs.Role)
}
