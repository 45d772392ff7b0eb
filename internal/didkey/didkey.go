// Package didkey resolves did:key identifiers into DID documents, per
// the did:key method restricted to ed25519 (multicodec 0xed).
package didkey

import (
	"crypto/ed25519"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

var (
	ErrInvalidDID         = errors.New("didkey: invalid DID")
	ErrUnsupportedMethod  = errors.New("didkey: unsupported method")
	ErrInvalidMultibase   = errors.New("didkey: invalid multibase encoding")
	ErrUnsupportedKeyType = errors.New("didkey: unsupported key type")
	ErrInvalidPublicKey   = errors.New("didkey: invalid public key")
)

const (
	multicodecEd25519Pub byte = 0xed
	multibasePrefixB58   byte = 'z' // base58btc
)

// VerificationMethod mirrors a single entry of a DID document's
// verificationMethod array.
type VerificationMethod struct {
	ID                 string
	Type               string
	Controller         string
	PublicKeyMultibase string
}

// Document is the minimal DID document shape this resolver produces:
// one verification method referenced by both relationships.
type Document struct {
	ID                   string
	VerificationMethod   []VerificationMethod
	Authentication       []string
	AssertionMethod       []string
	PublicKey            any // concrete key material, e.g. ed25519.PublicKey
}

// Parse decodes a did:key identifier without any caching.
func Parse(did string) (*Document, error) {
	parts := strings.Split(did, ":")
	if len(parts) != 3 {
		return nil, ErrInvalidDID
	}
	if parts[0] != "did" {
		return nil, ErrInvalidDID
	}
	if parts[1] != "key" {
		return nil, ErrUnsupportedMethod
	}
	mb := parts[2]
	if mb == "" || mb[0] != multibasePrefixB58 {
		return nil, ErrInvalidMultibase
	}

	decoded, err := base58.Decode(mb[1:])
	if err != nil {
		return nil, ErrInvalidMultibase
	}
	if len(decoded) < 2 {
		return nil, ErrInvalidMultibase
	}
	if decoded[0] != multicodecEd25519Pub {
		return nil, ErrUnsupportedKeyType
	}
	keyBytes := decoded[1:]
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}

	vmID := did + "#" + mb
	doc := &Document{
		ID: did,
		VerificationMethod: []VerificationMethod{{
			ID:                 vmID,
			Type:               "Ed25519VerificationKey2020",
			Controller:         did,
			PublicKeyMultibase: mb,
		}},
		Authentication:  []string{vmID},
		AssertionMethod: []string{vmID},
		PublicKey:       ed25519.PublicKey(keyBytes),
	}
	return doc, nil
}
