// Package cardcrypto prepares card data for the eligibility request.
package cardcrypto

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"go.mozilla.org/pkcs7"
)

// ErrNoRecipient is returned when no issuer certificate is configured.
var ErrNoRecipient = errors.New("no issuer certificate configured")

func init() {
	pkcs7.ContentEncryptionAlgorithm = pkcs7.EncryptionAlgorithmAES256CBC
}

// Envelope encrypts card data into a base64 PKCS#7 enveloped-data structure
// readable only by the issuer certificate holders.
type Envelope struct {
	recipients []*x509.Certificate
}

// NewEnvelope parses one or more PEM encoded certificates.
func NewEnvelope(certPEM []byte) (*Envelope, error) {
	var recipients []*x509.Certificate
	for rest := certPEM; len(rest) > 0; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse issuer certificate: %w", err)
		}
		recipients = append(recipients, cert)
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipient
	}
	return &Envelope{recipients: recipients}, nil
}

// LoadEnvelope reads the issuer certificate bundle from path.
func LoadEnvelope(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issuer certificate: %w", err)
	}
	return NewEnvelope(data)
}

// Encrypt seals raw and returns the base64 encoded DER envelope. The caller
// owns raw and must wipe it.
func (e *Envelope) Encrypt(_ context.Context, raw []byte) (string, error) {
	der, err := pkcs7.Encrypt(raw, e.recipients)
	if err != nil {
		return "", fmt.Errorf("encrypt card data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}
