// Package secret decrypts mirror passwords stored in the config file.
//
// Passwords are stored as compact JWE objects encrypted directly ("dir")
// with A256GCM using a key derived from the operator's secret key. The
// `encrypt` command of git-push-mirror produces such values.
package secret

import (
	"crypto/sha256"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

var ErrNoKey = errors.New("secret key is not set")

// Plaintext treats stored passwords as plain text.
type Plaintext struct{}

// Decrypt returns ciphertext unchanged
func (Plaintext) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}

// JWE decrypts compact JWE passwords.
// A JWE is safe for concurrent use by multiple goroutines.
type JWE struct {
	key []byte
}

// NewJWE returns JWE for the given secret key
func NewJWE(secretKey string) (*JWE, error) {
	if secretKey == "" {
		return nil, ErrNoKey
	}
	key := sha256.Sum256([]byte(secretKey))
	return &JWE{key: key[:]}, nil
}

// Decrypt decrypts given compact JWE. empty ciphertext is returned as is
// since mirrors without credentials do not have a password.
func (j *JWE) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	obj, err := jose.ParseEncryptedCompact(ciphertext,
		[]jose.KeyAlgorithm{jose.DIRECT}, []jose.ContentEncryption{jose.A256GCM})
	if err != nil {
		return "", fmt.Errorf("unable to parse encrypted password err:%w", err)
	}
	plaintext, err := obj.Decrypt(j.key)
	if err != nil {
		return "", fmt.Errorf("unable to decrypt password err:%w", err)
	}
	return string(plaintext), nil
}

// Encrypt returns compact JWE of the given plaintext
func (j *JWE) Encrypt(plaintext string) (string, error) {
	enc, err := jose.NewEncrypter(jose.A256GCM, jose.Recipient{Algorithm: jose.DIRECT, Key: j.key}, nil)
	if err != nil {
		return "", err
	}
	obj, err := enc.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return obj.CompactSerialize()
}
