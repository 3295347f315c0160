// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package wcv1

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// EncryptedPayload is the wire form of every v1 message body: AES-256-CBC
// ciphertext, its IV, and an HMAC-SHA256 over ciphertext||iv, all hex encoded.
type EncryptedPayload struct {
	Data string `json:"data"`
	HMAC string `json:"hmac"`
	IV   string `json:"iv"`
}

// Encrypt seals plaintext with the 32-byte session key.
func Encrypt(plaintext, key []byte) (*EncryptedPayload, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "creating cipher")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectPayloadInvalid, "generating iv")
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return &EncryptedPayload{
		Data: hex.EncodeToString(ciphertext),
		HMAC: hex.EncodeToString(sign(key, ciphertext, iv)),
		IV:   hex.EncodeToString(iv),
	}, nil
}

// Decrypt verifies the HMAC and opens the payload.
func Decrypt(p *EncryptedPayload, key []byte) ([]byte, error) {
	ciphertext, err := hex.DecodeString(p.Data)
	if err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectDecryptFailure, "decoding data")
	}
	iv, err := hex.DecodeString(p.IV)
	if err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectDecryptFailure, "decoding iv")
	}
	mac, err := hex.DecodeString(p.HMAC)
	if err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectDecryptFailure, "decoding hmac")
	}

	if !hmac.Equal(mac, sign(key, ciphertext, iv)) {
		return nil, wlerr.New(wlerr.CodeWalletConnectDecryptFailure, "hmac mismatch")
	}
	if len(iv) != aes.BlockSize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, wlerr.New(wlerr.CodeWalletConnectDecryptFailure, "malformed ciphertext")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectDecryptFailure, "creating cipher")
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func sign(key, ciphertext, iv []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(ciphertext)
	h.Write(iv)
	return h.Sum(nil)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(bytes.Clone(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, wlerr.New(wlerr.CodeWalletConnectDecryptFailure, "empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, wlerr.New(wlerr.CodeWalletConnectDecryptFailure, "invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, wlerr.New(wlerr.CodeWalletConnectDecryptFailure, "invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
