package identity

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lserrors "lockstep/internal/errors"
)

const (
	privateKeySuffix = ".privkey"
	publicKeySuffix  = ".pubkey"

	dirMode  os.FileMode = 0o700
	fileMode os.FileMode = 0o600
)

// Store persists one key pair per player name in a directory:
//
//	<dir>/<player>.privkey
//	<dir>/<player>-<hash>.pubkey
type Store struct {
	dir        string
	passphrase string
}

// DefaultDir returns <user config dir>/lockstep/keys.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(base, "lockstep", "keys"), nil
}

// NewStore returns a store rooted at dir (DefaultDir when empty).  A
// non-empty passphrase seals private key files written by the store and
// is required to read sealed ones.
func NewStore(dir, passphrase string) (*Store, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return &Store{dir: dir, passphrase: passphrase}, nil
}

// Dir returns the keys directory.
func (s *Store) Dir() string { return s.dir }

// PrivateKeyPath returns the private key file for player.
func (s *Store) PrivateKeyPath(player string) string {
	return filepath.Join(s.dir, SanitizeName(player)+privateKeySuffix)
}

// PublicKeyPath returns the public key file for player and key hash.
func (s *Store) PublicKeyPath(player, hash string) string {
	return filepath.Join(s.dir, SanitizeName(player)+"-"+hash+publicKeySuffix)
}

// EnsureKey makes sure player has a key pair on disk.  When none exists
// one is generated and written, which is slow.  Otherwise the existing
// private key is loaded and validated.  Either way the returned key has
// only its public half loaded.
func (s *Store) EnsureKey(player string) (key *Key, generated bool, err error) {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return nil, false, fmt.Errorf("creating keys directory: %w", err)
	}

	key = NewKey()
	defer key.Unload()

	data, err := readKeyFile(s.PrivateKeyPath(player))
	if err != nil {
		return nil, false, err
	}

	if data == nil {
		if err := key.Generate(); err != nil {
			return nil, false, err
		}
		if err := s.savePrivate(key, player); err != nil {
			return nil, false, err
		}
		generated = true
	} else {
		err = s.decodePrivate(key, data)
		wipe(data)
		if err != nil {
			return nil, false, err
		}
	}

	if err := s.ensurePublic(key, player); err != nil {
		return nil, false, err
	}
	return key, generated, nil
}

// LoadPrivate loads player's private key into key.  Callers must Unload
// once the signing operation is over.
func (s *Store) LoadPrivate(key *Key, player string) error {
	data, err := readKeyFile(s.PrivateKeyPath(player))
	if err != nil {
		return err
	}
	if data == nil {
		return lserrors.WrapCrypto("load", fmt.Errorf("%w for %q", lserrors.ErrNoPrivateKey, player))
	}
	defer wipe(data)
	return s.decodePrivate(key, data)
}

func (s *Store) decodePrivate(key *Key, data []byte) error {
	if IsSealed(data) {
		if s.passphrase == "" {
			return lserrors.WrapCrypto("load", fmt.Errorf("%w: key file is sealed and no passphrase is set", lserrors.ErrWrongPassphrase))
		}
		plain, err := Unseal(data, s.passphrase)
		if err != nil {
			return err
		}
		defer wipe(plain)
		return key.LoadPrivate(bytes.NewReader(plain))
	}
	return key.LoadPrivate(bytes.NewReader(data))
}

func (s *Store) savePrivate(key *Key, player string) error {
	var buf bytes.Buffer
	if err := key.SavePrivate(&buf); err != nil {
		return err
	}
	data := buf.Bytes()
	defer wipe(data)

	if s.passphrase != "" {
		sealed, err := Seal(data, s.passphrase, nil)
		if err != nil {
			return err
		}
		data = sealed
	}
	if err := writeFile(s.PrivateKeyPath(player), data, fileMode); err != nil {
		return lserrors.WrapCrypto("save", err)
	}
	return nil
}

func (s *Store) ensurePublic(key *Key, player string) error {
	hash, err := key.PublicKeyHash()
	if err != nil {
		return err
	}
	path := s.PublicKeyPath(player, hash)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := key.SavePublic(&buf); err != nil {
		return err
	}
	if err := writeFile(path, buf.Bytes(), fileMode); err != nil {
		return lserrors.WrapCrypto("save", err)
	}
	return nil
}

// SanitizeName maps a player name onto a safe file name component.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// readKeyFile reads path; a missing file is not an error and yields nil.
func readKeyFile(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fi.Size() > MaxKeyFileSize {
		return nil, lserrors.WrapCrypto("load", lserrors.ErrKeyTooLarge)
	}
	return os.ReadFile(path)
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	// Best-effort cleanup if anything fails before rename.
	defer func() { _ = os.Remove(tmp) }()

	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
