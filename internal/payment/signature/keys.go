package signature

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
)

// ParsePrivateKey 解析 RSA 私钥，支持 PEM(PKCS#1/PKCS#8)、加密 PEM 与裸 base64
func ParsePrivateKey(raw, passphrase string) (*rsa.PrivateKey, error) {
	normalized := normalizeKeyText(raw)
	if normalized == "" {
		return nil, ErrKeyInvalid
	}
	if block, _ := pem.Decode([]byte(normalized)); block != nil {
		der := block.Bytes
		if x509.IsEncryptedPEMBlock(block) { //nolint:staticcheck
			if passphrase == "" {
				return nil, ErrKeyInvalid
			}
			decrypted, err := x509.DecryptPEMBlock(block, []byte(passphrase)) //nolint:staticcheck
			if err != nil {
				return nil, ErrKeyInvalid
			}
			der = decrypted
		}
		if key := privateKeyFromDER(der); key != nil {
			return key, nil
		}
	}
	decoded, err := decodeKeyBody(normalized)
	if err != nil {
		return nil, err
	}
	if key := privateKeyFromDER(decoded); key != nil {
		return key, nil
	}
	return nil, ErrKeyInvalid
}

// ParsePublicKey 解析 RSA 公钥，支持 PKIX、PKCS#1、X.509 证书与裸 base64
func ParsePublicKey(raw string) (*rsa.PublicKey, error) {
	normalized := normalizeKeyText(raw)
	if normalized == "" {
		return nil, ErrKeyInvalid
	}
	if block, _ := pem.Decode([]byte(normalized)); block != nil {
		if key := publicKeyFromDER(block.Bytes); key != nil {
			return key, nil
		}
	}
	decoded, err := decodeKeyBody(normalized)
	if err != nil {
		return nil, err
	}
	if key := publicKeyFromDER(decoded); key != nil {
		return key, nil
	}
	return nil, ErrKeyInvalid
}

func privateKeyFromDER(der []byte) *rsa.PrivateKey {
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey
		}
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key
	}
	return nil
}

func publicKeyFromDER(der []byte) *rsa.PublicKey {
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey
		}
	}
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key
	}
	if cert, err := x509.ParseCertificate(der); err == nil {
		if rsaKey, ok := cert.PublicKey.(*rsa.PublicKey); ok {
			return rsaKey
		}
	}
	return nil
}

func normalizeKeyText(raw string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(raw), "\\n", "\n")
	return strings.ReplaceAll(normalized, "\r\n", "\n")
}

func decodeKeyBody(raw string) ([]byte, error) {
	var body strings.Builder
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "-----") || strings.Contains(trimmed, ":") {
			continue
		}
		body.WriteString(trimmed)
	}
	if body.Len() == 0 {
		return nil, ErrKeyInvalid
	}
	decoded, err := base64.StdEncoding.DecodeString(body.String())
	if err != nil {
		return nil, ErrKeyInvalid
	}
	return decoded, nil
}
