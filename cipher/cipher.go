// Package cipher encrypts and decrypts file chunks before they are
// handed to the remote store.
//
// The on-the-wire format is fixed by what is already stored remotely:
// the plaintext is PKCS#7 padded to the AES block size, encrypted with
// AES-256 in CBC mode under a fresh random IV, and the result is
// base64(iv || ciphertext).  There is no authentication tag, so a
// corrupted chunk surfaces as a padding error on decrypt.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/pkg/errors"

	"github.com/TWTom041/DiscordFS-SFTP/cipher/pkcs7"
)

const blockSize = aes.BlockSize

// Errors returned by Decrypt
var (
	ErrorCipherTooShort     = errors.New("ciphertext is shorter than one block")
	ErrorCipherNotAMultiple = errors.New("ciphertext is not a multiple of the block size")
	ErrorCipherBadBase64    = errors.New("ciphertext is not valid base64")
)

// Cipher encrypts and decrypts chunk buffers.
//
// It is safe for concurrent use.
type Cipher struct {
	key [32]byte
}

// New derives a Cipher from secret by hashing it with SHA-256.
//
// secret is either the configured passphrase or a raw chunk key loaded
// from a key file.
func New(secret []byte) *Cipher {
	c := &Cipher{}
	c.key = sha256.Sum256(secret)
	return c
}

// Encrypt pads and encrypts plain, returning base64(iv || ciphertext).
//
// plain is not modified.
func (c *Cipher) Encrypt(plain []byte) ([]byte, error) {
	padded := pkcs7.Pad(blockSize, append([]byte(nil), plain...))
	out := make([]byte, blockSize+len(padded))
	iv := out[:blockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, errors.Wrap(err, "failed to read IV")
	}
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(out[blockSize:], padded)
	enc := make([]byte, base64.StdEncoding.EncodedLen(len(out)))
	base64.StdEncoding.Encode(enc, out)
	return enc, nil
}

// Decrypt is the inverse of Encrypt.
func (c *Cipher) Decrypt(enc []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(enc)))
	n, err := base64.StdEncoding.Decode(raw, enc)
	if err != nil {
		return nil, ErrorCipherBadBase64
	}
	raw = raw[:n]
	if len(raw) < 2*blockSize {
		return nil, ErrorCipherTooShort
	}
	iv, ct := raw[:blockSize], raw[blockSize:]
	if len(ct)%blockSize != 0 {
		return nil, ErrorCipherNotAMultiple
	}
	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ct))
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)
	return pkcs7.Unpad(blockSize, plain)
}

// Overhead returns the encrypted size of a plaintext of length n,
// after padding, IV and base64.
func Overhead(n int) int {
	padded := n + blockSize - n%blockSize
	return base64.StdEncoding.EncodedLen(blockSize + padded)
}
