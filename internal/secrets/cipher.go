// ABOUTME: Symmetric encryption of interface control tokens stored at rest
// ABOUTME: AES-256-CBC with a fresh random IV per call and a PBKDF2-derived key

package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// ErrNoEncryptionKey is returned when a Cipher is constructed without key
// material. This is a configuration fault and should halt startup.
var ErrNoEncryptionKey = errors.New("encryption key is not configured")

const (
	keyBytes   = 32 // AES-256
	kdfRounds  = 4096
	paddedSize = aes.BlockSize
)

// Cipher encrypts and decrypts interface control tokens. The key is injected
// at construction so rotation and testing stay explicit.
type Cipher struct {
	key []byte
}

// NewCipher derives an AES-256 key from the given passphrase and salt.
func NewCipher(passphrase, salt string) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrNoEncryptionKey
	}
	key := pbkdf2.Key([]byte(passphrase), []byte(salt), kdfRounds, keyBytes, sha256.New)
	return &Cipher{key: key}, nil
}

// Encrypt encrypts plaintext with a fresh random IV. Both values are
// hex-encoded for storage. A new IV is generated on every call, so two
// encryptions of the same plaintext never share ciphertext.
func (c *Cipher) Encrypt(plaintext string) (ciphertext, iv string, err error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", "", fmt.Errorf("creating cipher: %w", err)
	}

	rawIV := make([]byte, aes.BlockSize)
	if _, err := rand.Read(rawIV); err != nil {
		return "", "", fmt.Errorf("generating iv: %w", err)
	}

	padded := pad([]byte(plaintext))
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, rawIV).CryptBlocks(encrypted, padded)

	return hex.EncodeToString(encrypted), hex.EncodeToString(rawIV), nil
}

// Decrypt reverses Encrypt given the stored ciphertext and IV.
func (c *Cipher) Decrypt(ciphertext, iv string) (string, error) {
	encrypted, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	rawIV, err := hex.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("decoding iv: %w", err)
	}
	if len(rawIV) != aes.BlockSize {
		return "", fmt.Errorf("invalid iv length %d", len(rawIV))
	}
	if len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return "", fmt.Errorf("invalid ciphertext length %d", len(encrypted))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	decrypted := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, rawIV).CryptBlocks(decrypted, encrypted)

	unpadded, err := unpad(decrypted)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

// pad applies PKCS#7 padding up to the AES block size.
func pad(data []byte) []byte {
	n := paddedSize - len(data)%paddedSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#7 padding.
func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > paddedSize || n > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
