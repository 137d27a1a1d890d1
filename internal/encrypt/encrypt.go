// Package encrypt turns short strings into opaque URL-safe tokens using a
// keyed AEAD cipher. Tokens cross a network boundary, so decryption failures
// are always typed, recoverable errors.
package encrypt

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	nonceLen = chacha20poly1305.NonceSizeX // 24
	// 24 bytes encode to exactly 32 url-safe characters without padding,
	// which is what lets Decrypt split the token at a fixed offset.
	nonceB64Len = 32
)

var (
	// ErrTokenTooShort means the token cannot even contain a nonce.
	ErrTokenTooShort = errors.New("token 过短, 无法分离 nonce 与密文")
	// ErrVerify means the ciphertext failed AEAD verification: tampered
	// data or the wrong secret.
	ErrVerify = errors.New("解密失败: 密文校验不通过")
)

// DecodeError wraps an invalid base64 segment inside a token.
type DecodeError struct {
	Segment string
	Cause   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("解码 base64 %s 失败: %v", e.Segment, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

var b64 = base64.URLEncoding.WithPadding(base64.NoPadding)

// Codec encrypts and decrypts tokens under one shared secret.
//
// The nonce source is injectable so tests can produce reproducible tokens;
// production code leaves it nil and gets crypto/rand.
type Codec struct {
	key   [chacha20poly1305.KeySize]byte
	nonce io.Reader
}

// Option configures a Codec.
type Option func(*Codec)

// WithNonceSource overrides the random source used for nonces. Intended for
// tests only.
func WithNonceSource(r io.Reader) Option {
	return func(c *Codec) { c.nonce = r }
}

// New builds a Codec from an arbitrary-length secret. The key is the secret
// zero-padded or truncated to 32 bytes, matching the wire contract.
func New(secret []byte, opts ...Option) *Codec {
	c := &Codec{nonce: rand.Reader}
	copy(c.key[:], secret)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt produces base64url_no_pad(nonce) || base64url_no_pad(ciphertext)
// with a fresh 24-byte nonce and no separator.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", err
	}

	var nonce [nonceLen]byte
	if _, err := io.ReadFull(c.nonce, nonce[:]); err != nil {
		return "", fmt.Errorf("无法生成 nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce[:], []byte(plaintext), nil)
	return b64.EncodeToString(nonce[:]) + b64.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. The token splits at the fixed 32-character
// offset of the encoded nonce.
func (c *Codec) Decrypt(token string) (string, error) {
	if len(token) < nonceB64Len {
		return "", ErrTokenTooShort
	}

	nonce, err := b64.DecodeString(token[:nonceB64Len])
	if err != nil {
		return "", &DecodeError{Segment: "nonce", Cause: err}
	}
	ciphertext, err := b64.DecodeString(token[nonceB64Len:])
	if err != nil {
		return "", &DecodeError{Segment: "密文", Cause: err}
	}

	aead, err := chacha20poly1305.NewX(c.key[:])
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrVerify
	}
	return string(plaintext), nil
}
