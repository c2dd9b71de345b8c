package signature

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"
)

func TestParsePrivateKeyFormats(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate private key failed: %v", err)
	}
	pkcs1 := x509.MarshalPKCS1PrivateKey(key)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal pkcs8 failed: %v", err)
	}
	pkcs1PEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: pkcs1}))

	inputs := map[string]string{
		"pkcs1_pem":      pkcs1PEM,
		"pkcs8_pem":      string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})),
		"base64_body":    base64.StdEncoding.EncodeToString(pkcs1),
		"escaped_breaks": strings.ReplaceAll(pkcs1PEM, "\n", "\\n"),
	}
	for name, raw := range inputs {
		parsed, err := ParsePrivateKey(raw, "")
		if err != nil {
			t.Fatalf("%s: parse private key failed: %v", name, err)
		}
		if parsed.N.Cmp(key.N) != 0 {
			t.Fatalf("%s: private key modulus mismatch", name)
		}
	}
}

func TestParseEncryptedPrivateKeyRequiresPassphrase(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate private key failed: %v", err)
	}
	//nolint:staticcheck
	block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key), []byte("s3cret"), x509.PEMCipherAES256)
	if err != nil {
		t.Fatalf("encrypt pem failed: %v", err)
	}
	raw := string(pem.EncodeToMemory(block))

	if _, err := ParsePrivateKey(raw, ""); err == nil {
		t.Fatalf("expected error without passphrase")
	}
	parsed, err := ParsePrivateKey(raw, "s3cret")
	if err != nil {
		t.Fatalf("parse encrypted key failed: %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Fatalf("private key modulus mismatch")
	}
}

func TestParsePublicKeyFormats(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate private key failed: %v", err)
	}
	pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key failed: %v", err)
	}
	inputs := map[string]string{
		"pkix_pem":    string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix})),
		"pkcs1_pem":   string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})),
		"base64_body": base64.StdEncoding.EncodeToString(pkix),
	}
	for name, raw := range inputs {
		parsed, err := ParsePublicKey(raw)
		if err != nil {
			t.Fatalf("%s: parse public key failed: %v", name, err)
		}
		if parsed.N.Cmp(key.N) != 0 {
			t.Fatalf("%s: public key modulus mismatch", name)
		}
	}
}

func TestParseKeyRejectsGarbage(t *testing.T) {
	if _, err := ParsePrivateKey("", ""); err == nil {
		t.Fatalf("expected error for empty private key")
	}
	if _, err := ParsePublicKey("not a key at all"); err == nil {
		t.Fatalf("expected error for garbage public key")
	}
}

func TestNewSignerFromConfig(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate private key failed: %v", err)
	}
	privatePEM := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))

	signer, err := NewSigner(KeyConfig{PrivateKey: privatePEM, Algorithm: "SHA1"})
	if err != nil {
		t.Fatalf("new signer failed: %v", err)
	}
	if signer.Algorithm() != AlgorithmSHA1 {
		t.Fatalf("unexpected algorithm: %s", signer.Algorithm())
	}
	sig, err := signer.SignParams(map[string]string{"A": "1"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if !signer.VerifyParams(map[string]string{"A": "1", "B": ""}, sig) {
		t.Fatalf("expected verify success when only empty params differ")
	}

	if _, err := NewSigner(KeyConfig{}); err == nil {
		t.Fatalf("expected error when no key configured")
	}
	if _, err := NewSigner(KeyConfig{PrivateKey: privatePEM, Algorithm: "md5"}); err == nil {
		t.Fatalf("expected error for unsupported algorithm")
	}
}
