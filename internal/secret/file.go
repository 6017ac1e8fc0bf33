package secret

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16
	keyFile  = ".key"
)

// EncryptedFile keeps every key in a single XChaCha20-Poly1305 sealed file.
// The sealing key is derived with scrypt from a passphrase; without one, a random
// key is generated next to the data file with 0600 permissions.
//
// File layout: salt(16) || nonce(24) || ciphertext(JSON map).
type EncryptedFile struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

var _ Store = (*EncryptedFile)(nil)

// NewEncryptedFile creates a store at path. An empty passphrase selects the key file.
func NewEncryptedFile(path string, passphrase string) *EncryptedFile {
	return &EncryptedFile{path: path, passphrase: []byte(passphrase)}
}

func (f *EncryptedFile) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *EncryptedFile) Store(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

func (f *EncryptedFile) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return f.write(values)
}

func (f *EncryptedFile) read() (map[string]string, error) {
	content, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secret file: %w", err)
	}
	if len(content) < saltSize+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("secret file %s is truncated", f.path)
	}
	salt := content[:saltSize]
	nonce := content[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	sealed := content[saltSize+chacha20poly1305.NonceSizeX:]

	aead, err := f.aead(salt)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting secret file: %w", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("decoding secret file: %w", err)
	}
	return values, nil
}

func (f *EncryptedFile) write(values map[string]string) error {
	plain, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding secret file: %w", err)
	}
	salt := make([]byte, saltSize)
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	aead, err := f.aead(salt)
	if err != nil {
		return err
	}
	out := make([]byte, 0, len(salt)+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plain, nil)

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("creating secret directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0600); err != nil {
		return fmt.Errorf("writing secret file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing secret file: %w", err)
	}
	return nil
}

func (f *EncryptedFile) aead(salt []byte) (cipher.AEAD, error) {
	passphrase, err := f.secret()
	if err != nil {
		return nil, err
	}
	key, err := scrypt.Key(passphrase, salt, 1<<15, 8, 1, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

// secret returns the passphrase, creating the key file on first use when none was given.
func (f *EncryptedFile) secret() ([]byte, error) {
	if len(f.passphrase) > 0 {
		return f.passphrase, nil
	}
	path := f.path + keyFile
	existing, err := os.ReadFile(path)
	if err == nil {
		f.passphrase = existing
		return existing, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	generated := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, generated); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, generated, 0600); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	f.passphrase = generated
	return generated, nil
}
