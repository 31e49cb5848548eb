// Package aes2 implements WinZip AE-2 entry encryption: AES-256-CTR over
// the entry's ciphertext stream, keyed by PBKDF2-HMAC-SHA1 over the
// entry password, with a trailing 10-byte HMAC-SHA1 authentication code
// (§4.2 component C). The per-entry CRC32 is still recorded as usual,
// but it is advisory only; authentication is carried solely by the
// trailing MAC.
package aes2

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltLen is fixed by the AE-2/256 profile (§4.2).
	SaltLen = 16
	// VerifierLen is the 2-byte password verifier following the salt.
	VerifierLen = 2
	// MACLen is the truncated HMAC-SHA1 authentication code length.
	MACLen = 10
	// keyMaterialLen covers the AES-256 key (32) plus the HMAC-SHA1 key
	// (32) plus the password verifier (2), per the AE-2 KDF (§4.2).
	keyMaterialLen = 32 + 32 + 2
	pbkdf2Iter     = 1000
)

type keyMaterial struct {
	aesKey  []byte
	hmacKey []byte
	verify  []byte
}

func deriveKeys(password string, salt []byte) keyMaterial {
	dk := pbkdf2.Key([]byte(password), salt, pbkdf2Iter, keyMaterialLen, sha1.New)
	return keyMaterial{
		aesKey:  dk[0:32],
		hmacKey: dk[32:64],
		verify:  dk[64:66],
	}
}

// Encryptor produces AE-2 framing: it writes the salt and password
// verifier to preambleDst on construction, then encrypts every byte
// passed to Write under AES-256-CTR and forwards the ciphertext to
// cipherDst while accumulating the HMAC over that same ciphertext
// (§4.2, resolving Q1 in favor of authenticating the ciphertext).
// preambleDst and cipherDst are deliberately distinct: per §4.2 step 2
// the ciphertext is forwarded to the entry's compressor, while the
// salt/verifier preamble and (via Sum) the trailing MAC are raw bytes
// written straight to the sink, never compressed.
type Encryptor struct {
	cipherDst io.Writer
	stream    cipher.Stream
	hm        hash.Hash
}

// NewEncryptor generates a fresh random salt, writes the AE-2 preamble
// (salt + password verifier) to preambleDst, and returns an Encryptor
// ready to accept ciphertext-producing writes into cipherDst.
func NewEncryptor(preambleDst, cipherDst io.Writer, password string) (*Encryptor, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("aes2: generating salt: %w", err)
	}
	km := deriveKeys(password, salt)

	block, err := aes.NewCipher(km.aesKey)
	if err != nil {
		return nil, fmt.Errorf("aes2: constructing AES cipher: %w", err)
	}
	// WinZip AE-2 uses a zero IV; the counter value is never reused
	// because each entry derives a fresh key from a fresh random salt.
	iv := make([]byte, aes.BlockSize)
	stream := cipher.NewCTR(block, iv)

	if _, err := preambleDst.Write(salt); err != nil {
		return nil, fmt.Errorf("aes2: writing salt: %w", err)
	}
	if _, err := preambleDst.Write(km.verify); err != nil {
		return nil, fmt.Errorf("aes2: writing password verifier: %w", err)
	}

	h := hmac.New(sha1.New, km.hmacKey)
	return &Encryptor{cipherDst: cipherDst, stream: stream, hm: h}, nil
}

// Write encrypts p into a freshly allocated buffer, forwards the
// ciphertext to dst, and folds it into the running authentication code.
func (e *Encryptor) Write(p []byte) (int, error) {
	ct := make([]byte, len(p))
	e.stream.XORKeyStream(ct, p)
	if _, err := e.cipherDst.Write(ct); err != nil {
		return 0, fmt.Errorf("aes2: writing ciphertext: %w", err)
	}
	e.hm.Write(ct)
	return len(p), nil
}

// Sum returns the truncated 10-byte HMAC-SHA1 authentication code over
// all ciphertext written so far. Call only after the last Write.
func (e *Encryptor) Sum() [MACLen]byte {
	var out [MACLen]byte
	sum := e.hm.Sum(nil)
	copy(out[:], sum[:MACLen])
	return out
}

// Overhead is the number of bytes AE-2 framing adds beyond the
// ciphertext itself: salt + verifier + trailing MAC.
func Overhead() int { return SaltLen + VerifierLen + MACLen }
