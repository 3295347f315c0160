// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package v2adapter

import (
	"encoding/hex"
	"net/url"
	"strings"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// PairingURI is a parsed v2 pairing URI:
//
//	wc:{topic}@2?relay-protocol=irn&symKey={64 hex}
type PairingURI struct {
	Topic         string
	RelayProtocol string
	SymKey        []byte
}

// ParseURI parses and validates a v2 pairing URI.
func ParseURI(raw string) (*PairingURI, error) {
	raw = strings.TrimSpace(raw)
	rest, ok := strings.CutPrefix(raw, "wc:")
	if !ok {
		return nil, wlerr.New(wlerr.CodeWalletConnectURIInvalid, "uri must start with wc:")
	}

	topic, tail, ok := strings.Cut(rest, "@")
	if !ok || topic == "" {
		return nil, wlerr.New(wlerr.CodeWalletConnectURIInvalid, "uri is missing a topic")
	}
	version, query, _ := strings.Cut(tail, "?")
	if version != "2" {
		return nil, wlerr.Errorf(wlerr.CodeWalletConnectURIInvalid, "unsupported uri version %q", version)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectURIInvalid, "parsing uri query")
	}

	relay := params.Get("relay-protocol")
	if relay == "" {
		return nil, wlerr.New(wlerr.CodeWalletConnectURIInvalid, "uri is missing relay-protocol")
	}

	keyHex := params.Get("symKey")
	if len(keyHex) != 64 {
		return nil, wlerr.New(wlerr.CodeWalletConnectURIInvalid, "symKey must be 64 hex characters")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectURIInvalid, "symKey is not valid hex")
	}

	return &PairingURI{Topic: topic, RelayProtocol: relay, SymKey: key}, nil
}
