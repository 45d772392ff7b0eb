// Package credential verifies externally issued verifiable-credential
// envelopes. It does not evaluate policy — see internal/policy for that.
package credential

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coriolis-robotics/teleop/internal/didkey"
)

var (
	ErrInvalidEnvelope       = errors.New("credential: invalid envelope")
	ErrUnsupportedAlgorithm  = errors.New("credential: unsupported algorithm")
	ErrUntrustedIssuer       = errors.New("credential: untrusted issuer")
	ErrIssuerResolutionFailed = errors.New("credential: issuer resolution failed")
	ErrSignatureInvalid      = errors.New("credential: signature invalid")
	ErrExpired               = errors.New("credential: expired")
	ErrNotYetValid           = errors.New("credential: not yet valid")
	ErrMissingCredentialClaim = errors.New("credential: missing credential claim")
)

// Envelope is the externally issued signed attestation, decoded but not
// yet verified.
type Envelope struct {
	Issuer    string         `json:"iss"`
	Subject   string         `json:"sub"`
	Algorithm string         `json:"alg"`
	IssuedAt  int64          `json:"iat"`
	Expiry    *int64         `json:"exp,omitempty"`
	NotBefore *int64         `json:"nbf,omitempty"`
	Signature string         `json:"sig"`
	Payload   string         `json:"payload"` // base64url(signed input)
	Credential map[string]any `json:"credential"`
}

// Attributes is what survives verification: everything policy evaluation
// needs, and nothing else.
type Attributes struct {
	Issuer  string
	Subject string
	Role    string
	Extra   map[string]any
}

// IssuedAt/Expiry in wall-clock, surfaced alongside Attributes.
type VerifyResult struct {
	Attributes Attributes
	IssuedAt   time.Time
	Expiry     time.Time
}

// Verifier verifies VC envelopes against a trusted-issuer set and a DID
// resolver, with a single configured clock-skew tolerance.
type Verifier struct {
	issuers  *IssuerSet
	resolver *didkey.Resolver
	skew     time.Duration
}

func NewVerifier(issuers *IssuerSet, resolver *didkey.Resolver, skew time.Duration) *Verifier {
	if skew <= 0 {
		skew = 60 * time.Second
	}
	return &Verifier{issuers: issuers, resolver: resolver, skew: skew}
}

// Verify implements §4.1's six-step algorithm.
func (v *Verifier) Verify(raw []byte, requestedSubject string) (VerifyResult, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Issuer == "" || env.Signature == "" || env.Payload == "" {
		return VerifyResult{}, ErrInvalidEnvelope
	}
	if !v.issuers.IsTrusted(env.Issuer) {
		return VerifyResult{}, ErrUntrustedIssuer
	}

	doc, err := v.resolver.Resolve(env.Issuer)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrIssuerResolutionFailed, err)
	}

	signedInput, err := base64.RawURLEncoding.DecodeString(env.Payload)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: bad payload encoding", ErrInvalidEnvelope)
	}
	sig, err := base64.RawURLEncoding.DecodeString(env.Signature)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: bad signature encoding", ErrInvalidEnvelope)
	}

	switch env.Algorithm {
	case "ed25519":
		pub, ok := doc.PublicKey.(ed25519.PublicKey)
		if !ok {
			return VerifyResult{}, ErrUnsupportedAlgorithm
		}
		if !ed25519.Verify(pub, signedInput, sig) {
			return VerifyResult{}, ErrSignatureInvalid
		}
	case "ecdsa-p256":
		pub, ok := doc.PublicKey.(*ecdsa.PublicKey)
		if !ok {
			return VerifyResult{}, ErrUnsupportedAlgorithm
		}
		digest := sha256.Sum256(signedInput)
		if !ecdsa.VerifyASN1(pub, digest[:], sig) {
			return VerifyResult{}, ErrSignatureInvalid
		}
	default:
		return VerifyResult{}, ErrUnsupportedAlgorithm
	}

	now := time.Now().UTC()
	if env.NotBefore != nil {
		nbf := time.Unix(*env.NotBefore, 0).Add(-v.skew)
		if now.Before(nbf) {
			return VerifyResult{}, ErrNotYetValid
		}
	}
	var expiry time.Time
	if env.Expiry != nil {
		expiry = time.Unix(*env.Expiry, 0)
		if !now.Before(expiry.Add(v.skew)) {
			return VerifyResult{}, ErrExpired
		}
	}

	if env.Credential == nil {
		return VerifyResult{}, ErrMissingCredentialClaim
	}

	attrs, err := extractAttributes(env)
	if err != nil {
		return VerifyResult{}, err
	}
	if requestedSubject != "" && attrs.Subject != requestedSubject {
		return VerifyResult{}, ErrMissingCredentialClaim
	}

	return VerifyResult{
		Attributes: attrs,
		IssuedAt:   time.Unix(env.IssuedAt, 0),
		Expiry:     expiry,
	}, nil
}

// ExtractForPolicy returns attributes from an already-verified (or
// debug-only) envelope without checking the signature.
func (v *Verifier) ExtractForPolicy(raw []byte) (Attributes, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Attributes{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Credential == nil {
		return Attributes{}, ErrMissingCredentialClaim
	}
	return extractAttributes(env)
}

func extractAttributes(env Envelope) (Attributes, error) {
	subject := env.Subject
	if idVal, ok := env.Credential["id"]; ok {
		if s, ok := idVal.(string); ok && subject == "" {
			subject = s
		}
	}
	if subject == "" {
		return Attributes{}, ErrMissingCredentialClaim
	}

	role, _ := env.Credential["role"].(string)

	extra := make(map[string]any, len(env.Credential))
	for k, val := range env.Credential {
		if k == "id" || k == "role" {
			continue
		}
		extra[k] = val
	}

	return Attributes{
		Issuer:  env.Issuer,
		Subject: subject,
		Role:    role,
		Extra:   extra,
	}, nil
}
