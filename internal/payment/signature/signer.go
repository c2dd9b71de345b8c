package signature

import "crypto/rsa"

// Signer 绑定密钥与算法的签名器，进程启动时构造后注入使用方
type Signer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	algorithm  Algorithm
}

// KeyConfig 签名器密钥配置
type KeyConfig struct {
	PrivateKey string
	Passphrase string
	PublicKey  string
	Algorithm  string
}

// NewSigner 根据配置构造签名器，私钥与公钥均可缺省其一
func NewSigner(cfg KeyConfig) (*Signer, error) {
	alg, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	signer := &Signer{algorithm: alg}
	if cfg.PrivateKey != "" {
		key, err := ParsePrivateKey(cfg.PrivateKey, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		signer.privateKey = key
		signer.publicKey = &key.PublicKey
	}
	if cfg.PublicKey != "" {
		key, err := ParsePublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		signer.publicKey = key
	}
	if signer.privateKey == nil && signer.publicKey == nil {
		return nil, ErrKeyInvalid
	}
	return signer, nil
}

// NewSignerFromKeys 直接使用已解析的密钥构造签名器
func NewSignerFromKeys(privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey, alg Algorithm) *Signer {
	if publicKey == nil && privateKey != nil {
		publicKey = &privateKey.PublicKey
	}
	if alg == "" {
		alg = AlgorithmSHA256
	}
	return &Signer{privateKey: privateKey, publicKey: publicKey, algorithm: alg}
}

// Algorithm 返回签名算法
func (s *Signer) Algorithm() Algorithm {
	if s == nil {
		return ""
	}
	return s.algorithm
}

// CanSign 是否持有私钥
func (s *Signer) CanSign() bool {
	return s != nil && s.privateKey != nil
}

// SignParams 规范化参数后签名
func (s *Signer) SignParams(params map[string]string) (string, error) {
	if !s.CanSign() {
		return "", ErrKeyInvalid
	}
	return Sign(Canonicalize(params), s.privateKey, s.algorithm)
}

// VerifyParams 规范化参数后验签
func (s *Signer) VerifyParams(params map[string]string, sig string) bool {
	if s == nil || s.publicKey == nil {
		return false
	}
	return Verify(Canonicalize(params), sig, s.publicKey, s.algorithm)
}
