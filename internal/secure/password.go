package secure

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Cipher modes accepted by NewPasswordDecrypter.
const (
	ModeGCM = "gcm"
	ModeECB = "ecb" // legacy panel records only
)

var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// PasswordDecrypter recovers the SFTP passwords the panel stores encrypted.
type PasswordDecrypter struct {
	mode  string
	block cipher.Block
	aead  cipher.AEAD
}

// ParseKey accepts 64 hex characters or 32 raw bytes.
func ParseKey(key string) ([]byte, error) {
	if len(key) == 64 {
		if b, err := hex.DecodeString(key); err == nil {
			return b, nil
		}
	}
	if len(key) == 32 {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("password key must be 64 hex characters or 32 bytes, got %d characters", len(key))
}

// NewPasswordDecrypter builds a decrypter for mode ("gcm" or "ecb").
func NewPasswordDecrypter(key, mode string) (*PasswordDecrypter, error) {
	raw, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	d := &PasswordDecrypter{mode: strings.ToLower(mode), block: block}
	switch d.mode {
	case "", ModeGCM:
		d.mode = ModeGCM
		d.aead, err = cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("create gcm: %w", err)
		}
	case ModeECB:
	default:
		return nil, fmt.Errorf("unsupported cipher mode %q", mode)
	}
	return d, nil
}

// Mode reports the configured cipher mode.
func (d *PasswordDecrypter) Mode() string {
	return d.mode
}

// Decrypt returns the plaintext password.
//
// GCM input is base64(nonce || ciphertext || tag). ECB input is hex or base64
// of PKCS#7 padded blocks.
func (d *PasswordDecrypter) Decrypt(encoded string) (string, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCiphertext)
	}
	if d.mode == ModeECB {
		return d.decryptECB(encoded)
	}
	return d.decryptGCM(encoded)
}

func (d *PasswordDecrypter) decryptGCM(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	ns := d.aead.NonceSize()
	if len(data) < ns+d.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrInvalidCiphertext)
	}
	plain, err := d.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}

func (d *PasswordDecrypter) decryptECB(encoded string) (string, error) {
	data, err := decodeECBInput(encoded)
	if err != nil {
		return "", err
	}
	bs := d.block.BlockSize()
	if len(data) == 0 || len(data)%bs != 0 {
		return "", fmt.Errorf("%w: length %d is not a multiple of the block size", ErrInvalidCiphertext, len(data))
	}
	plain := make([]byte, len(data))
	for i := 0; i < len(data); i += bs {
		d.block.Decrypt(plain[i:i+bs], data[i:i+bs])
	}
	plain, err = pkcs7Unpad(plain, bs)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func decodeECBInput(encoded string) ([]byte, error) {
	if len(encoded)%2 == 0 {
		if b, err := hex.DecodeString(encoded); err == nil {
			return b, nil
		}
	}
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: neither hex nor base64", ErrInvalidCiphertext)
	}
	return b, nil
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
	}
	if !bytes.Equal(b[len(b)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return nil, fmt.Errorf("%w: bad padding", ErrInvalidCiphertext)
	}
	return b[:len(b)-n], nil
}
