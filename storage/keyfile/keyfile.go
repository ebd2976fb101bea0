// Package keyfile reads and writes the client-custody share file format.
//
// The binary envelope is salt(16) | nonce(12) | ciphertext+tag(16), with the
// AES-256-GCM key derived from the passphrase via Argon2id. For backward
// compatibility the loader also accepts the legacy format: the key-material
// JSON blob encoded as plain base64 with no encryption.
package keyfile

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/quorumkey/quorumkey/model"
)

const (
	saltLen  = 16
	nonceLen = 12
	tagLen   = 16

	// Argon2id parameters; memory-hard by design.
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
)

// Encode seals the key material under the passphrase in the binary envelope
// format.
func Encode(material *model.KeyMaterial, passphrase []byte) ([]byte, error) {

	plaintext, err := material.Encode()
	if err != nil {
		return nil, fmt.Errorf("could not encode key material: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("could not generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("could not generate nonce: %w", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, saltLen+nonceLen+len(plaintext)+tagLen)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// Decode opens a share file in either supported format. The passphrase is
// only consulted for the binary envelope.
func Decode(data []byte, passphrase []byte) (*model.KeyMaterial, error) {

	// legacy format first: base64-encoded JSON key-material blob
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		if material, err := model.DecodeKeyMaterial(decoded); err == nil {
			return material, nil
		}
	}

	if len(data) < saltLen+nonceLen+tagLen {
		return nil, fmt.Errorf("share file too short (%d bytes)", len(data))
	}

	salt := data[:saltLen]
	nonce := data[saltLen : saltLen+nonceLen]
	ciphertext := data[saltLen+nonceLen:]

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("could not decrypt share file: %w", err)
	}

	material, err := model.DecodeKeyMaterial(plaintext)
	if err != nil {
		return nil, err
	}
	return material, nil
}

func newAEAD(passphrase []byte, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("could not initialize cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("could not initialize AEAD: %w", err)
	}
	return aead, nil
}
