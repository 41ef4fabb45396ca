package protocol

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/Tnze/go-mc/net/CFB8"
)

const SharedSecretSize = 16

// NewCipherStreams returns the AES/CFB8 encrypt and decrypt streams for a
// shared secret. The secret doubles as the IV.
func NewCipherStreams(secret []byte) (enc, dec cipher.Stream, err error) {
	if len(secret) != SharedSecretSize {
		return nil, nil, fmt.Errorf("shared secret must be %d bytes, got %d", SharedSecretSize, len(secret))
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, nil, err
	}
	return CFB8.NewCFB8Encrypt(block, secret), CFB8.NewCFB8Decrypt(block, secret), nil
}

func NewSharedSecret() ([]byte, error) {
	secret := make([]byte, SharedSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// EncryptForServer answers an EncryptionRequest: secret and verify token are
// encrypted with the server's DER encoded RSA public key.
func EncryptForServer(req *EncryptionRequest, secret []byte) (*EncryptionResponse, error) {
	key, err := x509.ParsePKIXPublicKey(req.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse server public key: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("server public key is %T, want RSA", key)
	}
	encSecret, err := rsa.EncryptPKCS1v15(rand.Reader, pub, secret)
	if err != nil {
		return nil, fmt.Errorf("encrypt shared secret: %w", err)
	}
	encToken, err := rsa.EncryptPKCS1v15(rand.Reader, pub, req.VerifyToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt verify token: %w", err)
	}
	return &EncryptionResponse{SharedSecret: encSecret, VerifyToken: encToken}, nil
}

// DecryptFromClient is the server side of EncryptForServer.
func DecryptFromClient(priv *rsa.PrivateKey, resp *EncryptionResponse) (secret, verifyToken []byte, err error) {
	secret, err = rsa.DecryptPKCS1v15(rand.Reader, priv, resp.SharedSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt shared secret: %w", err)
	}
	verifyToken, err = rsa.DecryptPKCS1v15(rand.Reader, priv, resp.VerifyToken)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypt verify token: %w", err)
	}
	return secret, verifyToken, nil
}
