package cipher

import (
	"bytes"
	"crypto/rand"
	"io"
	"os"

	"github.com/pkg/errors"
)

// validator is the known plaintext stored alongside the key so a wrong
// passphrase can be detected without touching any remote chunk.
var validator = []byte("successful")

// ErrorBadValidator is returned when the validator file does not
// decrypt to the expected value, meaning the passphrase is wrong.
var ErrorBadValidator = errors.New("key validation failed - wrong passphrase?")

// GenerateKey creates a fresh random 32 byte chunk key and writes it,
// encrypted under passphrase, to keyPath.  A validator blob encrypted
// under the same passphrase is written to validatePath.  Either path
// may be empty to skip writing that file.
//
// The raw key is returned for immediate use with New.
func GenerateKey(passphrase []byte, keyPath, validatePath string) (key []byte, err error) {
	key = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, errors.Wrap(err, "failed to generate key")
	}
	c := New(passphrase)
	encKey, err := c.Encrypt(key)
	if err != nil {
		return nil, err
	}
	encValidator, err := c.Encrypt(validator)
	if err != nil {
		return nil, err
	}
	if keyPath != "" {
		if err := os.WriteFile(keyPath, encKey, 0600); err != nil {
			return nil, errors.Wrap(err, "failed to write key file")
		}
	}
	if validatePath != "" {
		if err := os.WriteFile(validatePath, encValidator, 0600); err != nil {
			return nil, errors.Wrap(err, "failed to write validator file")
		}
	}
	return key, nil
}

// LoadKey reads the encrypted key file at keyPath and decrypts it with
// passphrase.  If validatePath is non empty the validator file is
// checked first and ErrorBadValidator returned on mismatch.
func LoadKey(passphrase []byte, keyPath, validatePath string) ([]byte, error) {
	encKey, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read key file")
	}
	c := New(passphrase)
	if validatePath != "" {
		encValidator, err := os.ReadFile(validatePath)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read validator file")
		}
		got, err := c.Decrypt(encValidator)
		if err != nil || !bytes.Equal(got, validator) {
			return nil, ErrorBadValidator
		}
	}
	key, err := c.Decrypt(encKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt key file")
	}
	return key, nil
}
