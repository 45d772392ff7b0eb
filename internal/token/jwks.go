package token

import (
	"github.com/go-jose/go-jose/v4"
)

// JWKS builds the verification key set published at GET /v1/jwks.
func JWKS(km *KeyManager) jose.JSONWebKeySet {
	keys := km.PublicKeySet()
	set := jose.JSONWebKeySet{Keys: make([]jose.JSONWebKey, 0, len(keys))}
	for kid, pub := range keys {
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       pub,
			KeyID:     kid,
			Algorithm: "EdDSA",
			Use:       "sig",
		})
	}
	return set
}
