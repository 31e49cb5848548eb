package aes2

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := bytes.Repeat([]byte("secret payload chunk "), 200)

	var preamble, cipher bytes.Buffer
	enc, err := NewEncryptor(&preamble, &cipher, "correct horse battery staple")
	require.NoError(t, err)

	_, err = enc.Write(plaintext[:100])
	require.NoError(t, err)
	_, err = enc.Write(plaintext[100:])
	require.NoError(t, err)
	mac := enc.Sum()

	require.Equal(t, SaltLen+VerifierLen, preamble.Len())
	require.NotEqual(t, plaintext, cipher.Bytes())
	require.Equal(t, len(plaintext), cipher.Len())

	src := bytes.NewReader(preamble.Bytes())
	dec, err := NewDecryptor(src, "correct horse battery staple")
	require.NoError(t, err)

	got := make([]byte, cipher.Len())
	dec.Decrypt(got, cipher.Bytes())
	require.Equal(t, plaintext, got)
	require.NoError(t, dec.Verify(mac[:]))
}

func TestDecryptWrongPassword(t *testing.T) {
	var preamble, cipher bytes.Buffer
	enc, err := NewEncryptor(&preamble, &cipher, "right password")
	require.NoError(t, err)
	_, err = enc.Write([]byte("hello world"))
	require.NoError(t, err)

	src := bytes.NewReader(preamble.Bytes())
	_, err = NewDecryptor(src, "wrong password")
	require.ErrorIs(t, err, ErrBadPassword)
}

func TestDecryptTamperedCiphertextFailsAuth(t *testing.T) {
	var preamble, cipher bytes.Buffer
	enc, err := NewEncryptor(&preamble, &cipher, "pw")
	require.NoError(t, err)
	_, err = enc.Write([]byte("hello world, this is a longer message"))
	require.NoError(t, err)
	mac := enc.Sum()

	tampered := cipher.Bytes()
	tampered[0] ^= 0xFF

	src := bytes.NewReader(preamble.Bytes())
	dec, err := NewDecryptor(src, "pw")
	require.NoError(t, err)

	got := make([]byte, len(tampered))
	dec.Decrypt(got, tampered)
	require.ErrorIs(t, dec.Verify(mac[:]), ErrAuthenticationFailed)
}

func TestOverhead(t *testing.T) {
	require.Equal(t, SaltLen+VerifierLen+MACLen, Overhead())
}

func TestDifferentSaltsProduceDifferentCiphertext(t *testing.T) {
	var p1, c1, p2, c2 bytes.Buffer
	e1, err := NewEncryptor(&p1, &c1, "same password")
	require.NoError(t, err)
	e2, err := NewEncryptor(&p2, &c2, "same password")
	require.NoError(t, err)

	_, _ = e1.Write([]byte("identical plaintext"))
	_, _ = e2.Write([]byte("identical plaintext"))

	require.NotEqual(t, p1.Bytes(), p2.Bytes(), "salts should differ")
	require.NotEqual(t, c1.Bytes(), c2.Bytes(), "ciphertext should differ under fresh salts")
}
