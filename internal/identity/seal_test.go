package identity

import (
	"bytes"
	"errors"
	"testing"

	lserrors "lockstep/internal/errors"
)

func TestSeal_RoundTrip(t *testing.T) {
	plain := sharedPEMFor(t)

	sealed, err := Seal(plain, "correct horse", nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !IsSealed(sealed) {
		t.Fatal("sealed output should be recognised")
	}
	if IsSealed(plain) {
		t.Fatal("plain PEM should not be recognised as sealed")
	}
	if bytes.Contains(sealed, plain[40:80]) {
		t.Fatal("sealed output leaks plaintext")
	}

	got, err := Unseal(sealed, "correct horse")
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Error("round trip mismatch")
	}
}

func TestSeal_FreshSaltPerCall(t *testing.T) {
	a, _ := Seal([]byte("x"), "pw", nil)
	b, _ := Seal([]byte("x"), "pw", nil)
	if bytes.Equal(a, b) {
		t.Error("two seals of the same input should differ")
	}
}

func TestUnseal_Rejects(t *testing.T) {
	sealed, err := Seal([]byte("secret material"), "right", nil)
	if err != nil {
		t.Fatal(err)
	}
	tampered := append([]byte(nil), sealed...)
	// Flip a byte inside the base64 body, well past the headers.
	tampered[len(tampered)-60] ^= 0x01

	tests := []struct {
		name    string
		data    []byte
		pass    string
		wantErr error
	}{
		{"wrong passphrase", sealed, "wrong", lserrors.ErrWrongPassphrase},
		{"empty passphrase", sealed, "", lserrors.ErrWrongPassphrase},
		{"not sealed", []byte("plain"), "right", lserrors.ErrInvalidKey},
		{"too large", bytes.Repeat([]byte{'a'}, MaxKeyFileSize+1), "right", lserrors.ErrKeyTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unseal(tt.data, tt.pass)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Unseal(tampered, "right"); err == nil {
		t.Error("tampered file should not unseal")
	}
}
