package aes2

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
	"io"
)

// ErrBadPassword is returned by NewDecryptor when the password verifier
// read from the stream preamble does not match the supplied password.
var ErrBadPassword = errors.New("aes2: incorrect password")

// ErrAuthenticationFailed is returned by Decryptor.Verify when the
// trailing HMAC does not match the ciphertext that was read.
var ErrAuthenticationFailed = errors.New("aes2: authentication code mismatch")

// Decryptor reads an AE-2 framed stream: it consumes the salt and
// password verifier on construction, decrypts ciphertext the caller
// passes to Decrypt, and exposes Verify to check the trailing MAC once
// the caller has passed all of the entry's ciphertext.
//
// Decryptor does not itself delimit where ciphertext ends and the
// trailing MAC begins — the caller must pass Decrypt exactly the
// entry's ciphertext and then call Verify with the MACLen bytes that
// follow it on the wire. The MAC is counted in the entry's compressed
// size; the salt and verifier are not.
type Decryptor struct {
	stream cipher.Stream
	hm     hash.Hash
}

// NewDecryptor reads the AE-2 preamble (salt + verifier) from src,
// derives keys from password, and checks the verifier before returning.
func NewDecryptor(src io.Reader, password string) (*Decryptor, error) {
	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(src, salt); err != nil {
		return nil, fmt.Errorf("aes2: reading salt: %w", err)
	}
	verifier := make([]byte, VerifierLen)
	if _, err := io.ReadFull(src, verifier); err != nil {
		return nil, fmt.Errorf("aes2: reading password verifier: %w", err)
	}

	km := deriveKeys(password, salt)
	if !hmac.Equal(verifier, km.verify) {
		return nil, ErrBadPassword
	}

	block, err := aes.NewCipher(km.aesKey)
	if err != nil {
		return nil, fmt.Errorf("aes2: constructing AES cipher: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	stream := cipher.NewCTR(block, iv)

	return &Decryptor{stream: stream, hm: hmac.New(sha1.New, km.hmacKey)}, nil
}

// Decrypt XORs ciphertext into the plaintext-sized dst, folding
// the ciphertext into the running authentication code. Exactly the
// entry's ciphertext bytes (excluding the trailing MAC) must be passed
// across one or more calls.
func (d *Decryptor) Decrypt(dst, ciphertext []byte) {
	d.hm.Write(ciphertext)
	d.stream.XORKeyStream(dst, ciphertext)
}

// Verify compares the accumulated HMAC against the trailing MAC bytes
// read from the stream. Call only after all ciphertext has been passed
// to Decrypt.
func (d *Decryptor) Verify(mac []byte) error {
	sum := d.hm.Sum(nil)
	if !hmac.Equal(sum[:MACLen], mac) {
		return ErrAuthenticationFailed
	}
	return nil
}
