package cardcrypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"testing"
	"time"

	"go.mozilla.org/pkcs7"
)

func issuerCertificate(t *testing.T) (*x509.Certificate, *rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "issuer-enrollment"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert, key, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func TestEnvelopeEncryptsForIssuer(t *testing.T) {
	cert, key, certPEM := issuerCertificate(t)
	env, err := NewEnvelope(certPEM)
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}

	raw, err := CardJSON([]byte("4111111111111111"), []byte("1225"), []byte("123"))
	if err != nil {
		t.Fatalf("card json: %v", err)
	}
	want := string(raw)

	encoded, err := env.Encrypt(context.Background(), raw)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	Wipe(raw)
	for _, b := range raw {
		if b != 0 {
			t.Fatal("expected wiped buffer")
		}
	}

	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	p7, err := pkcs7.Parse(der)
	if err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
	plain, err := p7.Decrypt(cert, key)
	if err != nil {
		t.Fatalf("decrypt envelope: %v", err)
	}
	if string(plain) != want {
		t.Fatalf("expected %s got %s", want, plain)
	}
}

func TestNewEnvelopeRequiresCertificate(t *testing.T) {
	if _, err := NewEnvelope([]byte("not a pem")); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestCardJSON(t *testing.T) {
	raw, err := CardJSON([]byte("4111111111111111"), []byte("1225"), []byte("123"))
	if err != nil {
		t.Fatalf("card json: %v", err)
	}
	if string(raw) != `{"fpan":"4111111111111111","exp":"1225","cvv":"123"}` {
		t.Fatalf("unexpected payload %s", raw)
	}

	if _, err := CardJSON([]byte("4111-1111"), []byte("1225"), []byte("123")); err == nil {
		t.Fatal("expected error for non digit pan")
	}
	if _, err := CardJSON([]byte("4111111111111111"), nil, []byte("123")); err == nil {
		t.Fatal("expected error for missing expiry")
	}
}

func TestReferenceIsKeyedAndStable(t *testing.T) {
	pan := []byte("4111111111111111")
	a := Reference([]byte("key-one"), pan)
	b := Reference([]byte("key-one"), pan)
	c := Reference([]byte("key-two"), pan)
	if a != b {
		t.Fatalf("expected stable reference, got %s and %s", a, b)
	}
	if a == c {
		t.Fatal("expected different keys to give different references")
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}

func TestEphemeralEnvelopeEncrypts(t *testing.T) {
	env, err := NewEphemeralEnvelope()
	if err != nil {
		t.Fatalf("ephemeral envelope: %v", err)
	}
	encoded, err := env.Encrypt(context.Background(), []byte(`{"fpan":"4111111111111111"}`))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := pkcs7.Parse(der); err != nil {
		t.Fatalf("parse envelope: %v", err)
	}
}
