package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired     = errors.New("token: expired")
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrSessionMismatch  = errors.New("token: session mismatch")
	ErrAudienceMismatch = errors.New("token: audience mismatch")
	ErrMalformed        = errors.New("token: malformed")
)

// Claims is the capability-token payload per §3/§6:
// {sub, aud, sid, scope[], iat, exp, jti, nonce}.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string   `json:"sid"`
	Scope     []string `json:"scope"`
	Nonce     string   `json:"nonce"`
}

// Issuer mints and verifies capability tokens.
type Issuer struct {
	keys *KeyManager
	skew time.Duration
}

func NewIssuer(keys *KeyManager, skew time.Duration) *Issuer {
	if skew <= 0 {
		skew = 60 * time.Second
	}
	return &Issuer{keys: keys, skew: skew}
}

// GenerateResult carries the signed token alongside the values a caller
// (the Gateway HTTP surface, the token registry) needs without
// re-parsing it.
type GenerateResult struct {
	SignedToken string
	TokenID     string
	ExpiresAt   time.Time
}

// Generate implements §4.4's Generate(operator, robot, session,
// allowedActions, ttlSeconds).
func (i *Issuer) Generate(operator, robot, sessionID string, allowedActions []string, ttl time.Duration) (GenerateResult, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()
	nonce := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			Audience:  jwt.ClaimStrings{robot},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
		SessionID: sessionID,
		Scope:     allowedActions,
		Nonce:     nonce,
	}

	kid, priv := i.keys.Sign()
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = kid

	signed, err := tok.SignedString(priv)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("token: sign: %w", err)
	}

	return GenerateResult{SignedToken: signed, TokenID: jti, ExpiresAt: exp}, nil
}

// Parse verifies signature and expiry (with skew) and returns claims,
// without checking audience/session binding — callers that need those
// (the Robot Session Manager) check them explicitly.
func (i *Issuer) Parse(signed string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMalformed
		}
		return i.keys.PublicKeyFor(kid)
	}, jwt.WithValidMethods([]string{"EdDSA"}), jwt.WithLeeway(i.skew))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, ErrKeyNotFound) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidSignature
	}
	return claims, nil
}
