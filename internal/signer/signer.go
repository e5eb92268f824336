// Package signer issues and verifies the short-lived tokens embedded in
// artifact download URLs. Tokens are Ed25519-signed JWTs binding a single
// storage key to an expiry, so a leaked URL grants access to exactly one
// object for a bounded time.
package signer

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "renderlog"

// Signer mints and checks artifact URL tokens.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// New creates a signer from an Ed25519 private key.
func New(priv ed25519.PrivateKey) *Signer {
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

// Generate creates a signer with a fresh ephemeral key pair. URLs signed
// before a restart become invalid, which is acceptable for short TTLs.
func Generate() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("signer: generate key: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// Load reads a PKCS#8-encoded Ed25519 private key from a PEM file, so
// signed URLs survive restarts when a stable key is configured.
func Load(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signer: read key %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("signer: no PEM block in %s", path)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("signer: parse key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signer: key in %s is not Ed25519", path)
	}
	return New(priv), nil
}

type urlClaims struct {
	StorageKey string `json:"key"`
	jwt.RegisteredClaims
}

// Sign returns a token granting access to storageKey until now+ttl.
func (s *Signer) Sign(storageKey string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := urlClaims{
		StorageKey: storageKey,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.priv)
	if err != nil {
		return "", fmt.Errorf("signer: sign: %w", err)
	}
	return token, nil
}

// Verify checks the token and returns the storage key it grants.
func (s *Signer) Verify(token string) (string, error) {
	var claims urlClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.pub, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("signer: verify: %w", err)
	}
	if claims.StorageKey == "" {
		return "", fmt.Errorf("signer: token missing storage key")
	}
	return claims.StorageKey, nil
}
