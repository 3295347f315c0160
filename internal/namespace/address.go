// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package namespace

import (
	"bytes"
	"crypto/sha512"
	"encoding/base32"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

const (
	addressLength   = 58
	publicKeyLength = 32
	checksumLength  = 4
)

var addressEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ValidateAddress checks that addr is a well-formed Algorand address: the
// unpadded base32 encoding of a 32-byte public key followed by the last four
// bytes of its SHA-512/256 digest.
func ValidateAddress(addr string) error {
	if len(addr) != addressLength {
		return wlerr.New(wlerr.CodeWalletConnectAccountInvalid, "address has invalid length", wlerr.FieldAddress(addr))
	}

	raw, err := addressEncoding.DecodeString(addr)
	if err != nil {
		return wlerr.Wrap(err, wlerr.CodeWalletConnectAccountInvalid, "address is not base32", wlerr.FieldAddress(addr))
	}
	if len(raw) != publicKeyLength+checksumLength {
		return wlerr.New(wlerr.CodeWalletConnectAccountInvalid, "address decodes to wrong size", wlerr.FieldAddress(addr))
	}

	digest := sha512.Sum512_256(raw[:publicKeyLength])
	if !bytes.Equal(digest[len(digest)-checksumLength:], raw[publicKeyLength:]) {
		return wlerr.New(wlerr.CodeWalletConnectAccountInvalid, "address checksum mismatch", wlerr.FieldAddress(addr))
	}
	return nil
}
