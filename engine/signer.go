package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/veraison/go-cose"
)

// ReceiptSigner holds the engine's ECDSA key pair for COSE_Sign1
// settlement receipts. A fresh key is generated per engine instance;
// consumers fetch the public key once and verify receipts offline.
type ReceiptSigner struct {
	privateKey *ecdsa.PrivateKey // keep private - sensitive!
	PublicKey  *ecdsa.PublicKey
	signer     cose.Signer
}

// NewReceiptSigner generates a P-256 key pair and the ES256 signer built
// on it.
func NewReceiptSigner() (*ReceiptSigner, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("create COSE signer: %w", err)
	}
	return &ReceiptSigner{
		privateKey: key,
		PublicKey:  &key.PublicKey,
		signer:     signer,
	}, nil
}

// Sign wraps the payload in a COSE_Sign1 envelope signed with ES256.
func (s *ReceiptSigner) Sign(payload []byte) ([]byte, error) {
	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: cose.AlgorithmES256,
		},
	}
	signed, err := cose.Sign1(rand.Reader, s.signer, headers, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("COSE sign: %w", err)
	}
	return signed, nil
}

// PublicKeyPEM returns the public key in PEM format.
func (s *ReceiptSigner) PublicKeyPEM() (string, error) {
	derBytes, err := x509.MarshalPKIXPublicKey(s.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}
	return string(pem.EncodeToMemory(pemBlock)), nil
}

// generateNonce returns 256 bits of hex-encoded entropy for receipt
// hashing.
func generateNonce() (string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("entropy generation failed: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
