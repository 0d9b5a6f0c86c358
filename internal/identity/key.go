// Package identity manages the RSA key pair a player authenticates with.
//
// A Key always carries the public half once loaded.  The private half is
// loaded only for the duration of a signing operation and is wiped by
// Unload, which overwrites the big-integer limbs instead of just dropping
// the references.
package identity

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // key hash is an identifier, not a security boundary
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/ssh"

	lserrors "lockstep/internal/errors"
)

const (
	// KeyBits is the modulus size of generated keys.
	KeyBits = 2048

	// MaxKeyFileSize is the largest key file LoadPrivate/LoadPublic accept.
	MaxKeyFileSize = 4 << 20

	pemPrivateType = "RSA PRIVATE KEY"
	pemPublicType  = "RSA PUBLIC KEY"
)

// Key is an RSA key pair whose private half may be absent.
type Key struct {
	pub  *rsa.PublicKey
	priv *rsa.PrivateKey

	// rand is the entropy source for Generate and Sign.
	rand io.Reader
}

// NewKey returns an empty key.
func NewKey() *Key {
	return &Key{rand: rand.Reader}
}

// Generate creates a fresh key pair.  It fails only if the entropy
// source fails.
func (k *Key) Generate() error {
	priv, err := rsa.GenerateKey(k.random(), KeyBits)
	if err != nil {
		return lserrors.WrapCrypto("generate", err)
	}
	k.setPrivate(priv)
	return nil
}

// LoadPrivate parses a PKCS#1 PEM private key.  On failure any
// previously loaded private material is gone and none is loaded.
func (k *Key) LoadPrivate(r io.Reader) error {
	k.Unload()

	block, err := readPEM(r, pemPrivateType)
	if err != nil {
		return err
	}
	defer wipe(block.Bytes)

	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return lserrors.WrapCrypto("load", fmt.Errorf("%w: %v", lserrors.ErrInvalidKey, err))
	}
	if err := priv.Validate(); err != nil {
		zeroPrivate(priv)
		return lserrors.WrapCrypto("load", fmt.Errorf("%w: %v", lserrors.ErrInvalidKey, err))
	}
	if priv.N.BitLen() < KeyBits {
		zeroPrivate(priv)
		return lserrors.WrapCrypto("load", fmt.Errorf("%w: %d-bit modulus", lserrors.ErrInvalidKey, priv.N.BitLen()))
	}
	k.setPrivate(priv)
	return nil
}

// LoadPublic parses a PKCS#1 PEM public key, replacing any loaded key.
func (k *Key) LoadPublic(r io.Reader) error {
	block, err := readPEM(r, pemPublicType)
	if err != nil {
		return err
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return lserrors.WrapCrypto("load", fmt.Errorf("%w: %v", lserrors.ErrInvalidKey, err))
	}
	if pub.N.BitLen() < KeyBits {
		return lserrors.WrapCrypto("load", fmt.Errorf("%w: %d-bit modulus", lserrors.ErrInvalidKey, pub.N.BitLen()))
	}
	k.Unload()
	k.pub = pub
	return nil
}

// SavePrivate writes the private key as PKCS#1 PEM.
func (k *Key) SavePrivate(w io.Writer) error {
	if k.priv == nil {
		return lserrors.WrapCrypto("save", lserrors.ErrNoPrivateKey)
	}
	der := x509.MarshalPKCS1PrivateKey(k.priv)
	defer wipe(der)
	if err := pem.Encode(w, &pem.Block{Type: pemPrivateType, Bytes: der}); err != nil {
		return lserrors.WrapCrypto("save", err)
	}
	return nil
}

// SavePublic writes the public key as PKCS#1 PEM.
func (k *Key) SavePublic(w io.Writer) error {
	s, err := k.PublicKeyString()
	if err != nil {
		return lserrors.WrapCrypto("save", err)
	}
	if _, err := io.WriteString(w, s); err != nil {
		return lserrors.WrapCrypto("save", err)
	}
	return nil
}

// PublicKeyString returns the canonical PEM text of the public key.
func (k *Key) PublicKeyString() (string, error) {
	if k.pub == nil {
		return "", lserrors.ErrNoKey
	}
	der := x509.MarshalPKCS1PublicKey(k.pub)
	return string(pem.EncodeToMemory(&pem.Block{Type: pemPublicType, Bytes: der})), nil
}

// PublicKeyHash returns the hex SHA-1 of PublicKeyString.  The server
// uses it to look the player up.
func (k *Key) PublicKeyHash() (string, error) {
	s, err := k.PublicKeyString()
	if err != nil {
		return "", err
	}
	sum := sha1.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:]), nil
}

// SSHFingerprint returns the OpenSSH-style SHA256 fingerprint of the
// public key, for display.
func (k *Key) SSHFingerprint() (string, error) {
	if k.pub == nil {
		return "", lserrors.ErrNoKey
	}
	pk, err := ssh.NewPublicKey(k.pub)
	if err != nil {
		return "", lserrors.WrapCrypto("fingerprint", err)
	}
	return ssh.FingerprintSHA256(pk), nil
}

// Sign returns an RSASSA-PKCS1-v1_5 signature over the SHA-256 of msg.
func (k *Key) Sign(msg []byte) ([]byte, error) {
	if k.priv == nil {
		return nil, lserrors.WrapCrypto("sign", lserrors.ErrNoPrivateKey)
	}
	digest := sha256.Sum256(msg)
	sig, err := rsa.SignPKCS1v15(k.random(), k.priv, crypto.SHA256, digest[:])
	if err != nil {
		return nil, lserrors.WrapCrypto("sign", err)
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature of msg by this key.
func (k *Key) Verify(msg, sig []byte) bool {
	if k.pub == nil {
		return false
	}
	digest := sha256.Sum256(msg)
	return rsa.VerifyPKCS1v15(k.pub, crypto.SHA256, digest[:], sig) == nil
}

// HasPrivate reports whether private material is loaded.
func (k *Key) HasPrivate() bool { return k.priv != nil }

// HasPublic reports whether a public key is loaded.
func (k *Key) HasPublic() bool { return k.pub != nil }

// Unload erases the private half.  The public half stays usable.
func (k *Key) Unload() {
	if k.priv == nil {
		return
	}
	zeroPrivate(k.priv)
	k.priv = nil
}

func (k *Key) setPrivate(priv *rsa.PrivateKey) {
	k.Unload()
	k.priv = priv
	k.pub = &rsa.PublicKey{N: new(big.Int).Set(priv.N), E: priv.E}
}

func (k *Key) random() io.Reader {
	if k.rand == nil {
		return rand.Reader
	}
	return k.rand
}

// readPEM reads at most MaxKeyFileSize bytes and decodes the first PEM
// block, which must have the wanted type.
func readPEM(r io.Reader, wantType string) (*pem.Block, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxKeyFileSize+1))
	if err != nil {
		return nil, lserrors.WrapCrypto("load", err)
	}
	defer wipe(data)
	if len(data) > MaxKeyFileSize {
		return nil, lserrors.WrapCrypto("load", lserrors.ErrKeyTooLarge)
	}
	block, _ := pem.Decode(bytes.TrimSpace(data))
	if block == nil {
		return nil, lserrors.WrapCrypto("load", fmt.Errorf("%w: no PEM block", lserrors.ErrInvalidKey))
	}
	if block.Type != wantType {
		return nil, lserrors.WrapCrypto("load", fmt.Errorf("%w: unexpected PEM type %q", lserrors.ErrInvalidKey, block.Type))
	}
	// pem.Decode returns a slice that does not alias data.
	return block, nil
}
