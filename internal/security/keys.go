package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt"
)

const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
)

// KeyConfig описывает, откуда брать ключи. HS256 использует общий секрет,
// RS256 пару PEM-файлов (для проверки достаточно публичного).
type KeyConfig struct {
	Alg            string
	Secret         string
	PrivateKeyPath string
	PublicKeyPath  string
}

type Keys struct {
	method  jwt.SigningMethod
	secret  []byte
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

func NewHMACKeys(secret []byte) Keys {
	return Keys{method: jwt.SigningMethodHS256, secret: secret}
}

func NewRSAKeys(private *rsa.PrivateKey, public *rsa.PublicKey) Keys {
	if public == nil && private != nil {
		public = &private.PublicKey
	}
	return Keys{method: jwt.SigningMethodRS256, private: private, public: public}
}

func LoadKeys(cfg KeyConfig) (Keys, error) {
	switch strings.ToUpper(cfg.Alg) {
	case "", AlgHS256:
		if cfg.Secret == "" {
			return Keys{}, fmt.Errorf("%w: auth.secret", ErrMissingKey)
		}
		return NewHMACKeys([]byte(cfg.Secret)), nil
	case AlgRS256:
		var (
			priv *rsa.PrivateKey
			pub  *rsa.PublicKey
			err  error
		)
		if cfg.PrivateKeyPath != "" {
			if priv, err = LoadRSAPrivateKeyFromPEM(cfg.PrivateKeyPath); err != nil {
				return Keys{}, fmt.Errorf("load private key: %w", err)
			}
		}
		if cfg.PublicKeyPath != "" {
			if pub, err = LoadRSAPublicKeyFromPEM(cfg.PublicKeyPath); err != nil {
				return Keys{}, fmt.Errorf("load public key: %w", err)
			}
		}
		if priv == nil && pub == nil {
			return Keys{}, fmt.Errorf("%w: auth.publicKeyPath", ErrMissingKey)
		}
		return NewRSAKeys(priv, pub), nil
	default:
		return Keys{}, fmt.Errorf("%w: %s", ErrUnsupportedAlg, cfg.Alg)
	}
}

func (k Keys) Alg() string {
	if k.method == nil {
		return ""
	}
	return k.method.Alg()
}

func (k Keys) verificationKey() any {
	if k.method == jwt.SigningMethodRS256 {
		return k.public
	}
	return k.secret
}

func (k Keys) signingKey() (any, error) {
	switch k.method {
	case jwt.SigningMethodRS256:
		if k.private == nil {
			return nil, ErrNoPrivateKey
		}
		return k.private, nil
	case jwt.SigningMethodHS256:
		return k.secret, nil
	default:
		return nil, ErrMissingKey
	}
}

func LoadRSAPrivateKeyFromPEM(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not RSA private key")
	}

	return pk, nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}
