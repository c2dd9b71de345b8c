package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"sort"
	"strings"
)

// Delimiter 规范串字段分隔符
const Delimiter = "|"

// Algorithm 签名摘要算法
type Algorithm string

const (
	AlgorithmSHA1   Algorithm = "SHA1"
	AlgorithmSHA256 Algorithm = "SHA256"
)

var (
	ErrKeyInvalid       = errors.New("signature key invalid")
	ErrAlgorithmInvalid = errors.New("signature algorithm invalid")
)

// ParseAlgorithm 解析算法名称，空值回退为 SHA256
func ParseAlgorithm(raw string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(raw, "-", ""))) {
	case "", string(AlgorithmSHA256), "RSASHA256":
		return AlgorithmSHA256, nil
	case string(AlgorithmSHA1), "RSASHA1":
		return AlgorithmSHA1, nil
	default:
		return "", ErrAlgorithmInvalid
	}
}

// Canonicalize 过滤空值后按键名字节序拼接为 KEY=value|KEY=value
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if key == "" || value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var builder strings.Builder
	for i, key := range keys {
		if i > 0 {
			builder.WriteString(Delimiter)
		}
		builder.WriteString(key)
		builder.WriteByte('=')
		builder.WriteString(params[key])
	}
	return builder.String()
}

// Sign 使用 RSA PKCS#1 v1.5 签名，返回 base64
func Sign(canonical string, key *rsa.PrivateKey, alg Algorithm) (string, error) {
	if key == nil {
		return "", ErrKeyInvalid
	}
	hash, digest, err := digestOf(canonical, alg)
	if err != nil {
		return "", err
	}
	raw, err := rsa.SignPKCS1v15(rand.Reader, key, hash, digest)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Verify 校验签名，任何异常输入都返回 false
func Verify(canonical, signature string, key *rsa.PublicKey, alg Algorithm) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if key == nil {
		return false
	}
	trimmed := strings.TrimSpace(signature)
	if trimmed == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return false
	}
	hash, digest, err := digestOf(canonical, alg)
	if err != nil {
		return false
	}
	return rsa.VerifyPKCS1v15(key, hash, digest, raw) == nil
}

func digestOf(canonical string, alg Algorithm) (crypto.Hash, []byte, error) {
	switch alg {
	case AlgorithmSHA1:
		sum := sha1.Sum([]byte(canonical))
		return crypto.SHA1, sum[:], nil
	case AlgorithmSHA256, "":
		sum := sha256.Sum256([]byte(canonical))
		return crypto.SHA256, sum[:], nil
	default:
		return 0, nil, ErrAlgorithmInvalid
	}
}
