package robotsession

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired     = errors.New("robotsession: token expired")
	ErrInvalidSignature = errors.New("robotsession: invalid token signature")
	ErrSessionMismatch  = errors.New("robotsession: token session mismatch")
	ErrAudienceMismatch = errors.New("robotsession: token audience mismatch")
)

type claims struct {
	jwt.RegisteredClaims
	SessionID string   `json:"sid"`
	Scope     []string `json:"scope"`
	Nonce     string   `json:"nonce"`
}

// TokenValidator verifies capability tokens against the robot's own id
// and the Gateway's published key set, with clock-skew tolerance.
type TokenValidator struct {
	jwks    *JWKSFetcher
	robotID string
	skew    time.Duration
}

func NewTokenValidator(jwks *JWKSFetcher, robotID string, skew time.Duration) *TokenValidator {
	if skew <= 0 {
		skew = 60 * time.Second
	}
	return &TokenValidator{jwks: jwks, robotID: robotID, skew: skew}
}

func (v *TokenValidator) Validate(sessionID, signed string) (Info, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(signed, &c, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.jwks.PublicKey(kid)
	}, jwt.WithValidMethods([]string{"EdDSA"}), jwt.WithLeeway(v.skew))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Info{}, ErrTokenExpired
		}
		return Info{}, ErrInvalidSignature
	}
	if !parsed.Valid {
		return Info{}, ErrInvalidSignature
	}

	aud, _ := c.GetAudience()
	matchesAudience := false
	for _, a := range aud {
		if a == v.robotID {
			matchesAudience = true
			break
		}
	}
	if !matchesAudience {
		return Info{}, ErrAudienceMismatch
	}
	if c.SessionID != sessionID {
		return Info{}, ErrSessionMismatch
	}

	exp, _ := c.GetExpirationTime()
	return Info{
		SessionID:  c.SessionID,
		OperatorID: c.Subject,
		Scope:      c.Scope,
		ExpiresAt:  exp.Time,
	}, nil
}

// HasScope reports whether info's scope contains the named action.
func HasScope(info Info, scope string) bool {
	for _, s := range info.Scope {
		if s == scope {
			return true
		}
	}
	return false
}
