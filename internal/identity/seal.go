package identity

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	lserrors "lockstep/internal/errors"
)

const (
	sealedPEMType = "ENCRYPTED RSA PRIVATE KEY"
	sealKDF       = "argon2id"

	sealSaltBytes = 16
	sealKeyBytes  = chacha20poly1305.KeySize
)

// Argon2id cost parameters.  Variables so tests can lower them.
var (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
)

func deriveSealKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, sealKeyBytes)
}

// IsSealed reports whether data looks like a passphrase-sealed key file.
func IsSealed(data []byte) bool {
	block, _ := pem.Decode(bytes.TrimSpace(data))
	return block != nil && block.Type == sealedPEMType
}

// Seal encrypts a private key PEM under passphrase and returns the
// sealed PEM block.  The salt and nonce travel as PEM headers.
func Seal(plain []byte, passphrase string, random io.Reader) ([]byte, error) {
	if random == nil {
		random = rand.Reader
	}
	salt := make([]byte, sealSaltBytes)
	if _, err := io.ReadFull(random, salt); err != nil {
		return nil, lserrors.WrapCrypto("seal", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(random, nonce); err != nil {
		return nil, lserrors.WrapCrypto("seal", err)
	}

	kek := deriveSealKey(passphrase, salt)
	defer wipe(kek)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, lserrors.WrapCrypto("seal", err)
	}

	block := &pem.Block{
		Type: sealedPEMType,
		Headers: map[string]string{
			"Kdf":   sealKDF,
			"Salt":  hex.EncodeToString(salt),
			"Nonce": hex.EncodeToString(nonce),
		},
		Bytes: aead.Seal(nil, nonce, plain, []byte(sealedPEMType)),
	}
	return pem.EncodeToMemory(block), nil
}

// Unseal reverses Seal.  A wrong passphrase or a tampered file yields
// ErrWrongPassphrase.
func Unseal(data []byte, passphrase string) ([]byte, error) {
	if len(data) > MaxKeyFileSize {
		return nil, lserrors.WrapCrypto("unseal", lserrors.ErrKeyTooLarge)
	}
	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil || block.Type != sealedPEMType {
		return nil, lserrors.WrapCrypto("unseal", fmt.Errorf("%w: not a sealed key", lserrors.ErrInvalidKey))
	}
	if kdf := block.Headers["Kdf"]; kdf != sealKDF {
		return nil, lserrors.WrapCrypto("unseal", fmt.Errorf("%w: unsupported kdf %q", lserrors.ErrInvalidKey, kdf))
	}
	salt, err := hex.DecodeString(block.Headers["Salt"])
	if err != nil || len(salt) != sealSaltBytes {
		return nil, lserrors.WrapCrypto("unseal", fmt.Errorf("%w: bad salt", lserrors.ErrInvalidKey))
	}
	nonce, err := hex.DecodeString(block.Headers["Nonce"])
	if err != nil || len(nonce) != chacha20poly1305.NonceSize {
		return nil, lserrors.WrapCrypto("unseal", fmt.Errorf("%w: bad nonce", lserrors.ErrInvalidKey))
	}

	kek := deriveSealKey(passphrase, salt)
	defer wipe(kek)
	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, lserrors.WrapCrypto("unseal", err)
	}
	plain, err := aead.Open(nil, nonce, block.Bytes, []byte(sealedPEMType))
	if err != nil {
		return nil, lserrors.WrapCrypto("unseal", lserrors.ErrWrongPassphrase)
	}
	return plain, nil
}
