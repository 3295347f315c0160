// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package wcv1

import (
	"encoding/hex"
	"net/url"
	"strings"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

const (
	uriScheme  = "wc:"
	uriVersion = "1"
	keyLength  = 32
)

// URI is a parsed v1 connection URI:
//
//	wc:{topic}@1?bridge={url}&key={64 hex}
type URI struct {
	Topic  string
	Bridge string
	Key    []byte
}

// ParseURI parses and validates a v1 connection URI.
func ParseURI(raw string) (*URI, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, uriScheme) {
		return nil, wlerr.New(wlerr.CodeWalletConnectURIInvalid, "uri must start with wc:")
	}

	rest := strings.TrimPrefix(raw, uriScheme)
	rest = strings.TrimPrefix(rest, "//")

	topic, tail, ok := strings.Cut(rest, "@")
	if !ok || topic == "" {
		return nil, wlerr.New(wlerr.CodeWalletConnectURIInvalid, "uri is missing a topic")
	}

	version, query, _ := strings.Cut(tail, "?")
	if version != uriVersion {
		return nil, wlerr.Errorf(wlerr.CodeWalletConnectURIInvalid, "unsupported uri version %q", version)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectURIInvalid, "parsing uri query")
	}

	bridge := params.Get("bridge")
	if bridge == "" {
		return nil, wlerr.New(wlerr.CodeWalletConnectURIInvalid, "uri is missing the bridge parameter")
	}
	u, err := url.Parse(bridge)
	if err != nil || u.Host == "" {
		return nil, wlerr.Errorf(wlerr.CodeWalletConnectURIInvalid, "invalid bridge url %q", bridge)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, wlerr.Errorf(wlerr.CodeWalletConnectURIInvalid, "unsupported bridge scheme %q", u.Scheme)
	}

	keyHex := params.Get("key")
	if len(keyHex) != keyLength*2 {
		return nil, wlerr.New(wlerr.CodeWalletConnectURIInvalid, "key must be 64 hex characters")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, wlerr.Wrap(err, wlerr.CodeWalletConnectURIInvalid, "key is not valid hex")
	}

	return &URI{Topic: topic, Bridge: bridge, Key: key}, nil
}

// IsValidSessionURL reports whether raw is a well-formed v1 connection URI.
func IsValidSessionURL(raw string) bool {
	_, err := ParseURI(raw)
	return err == nil
}

// String renders the URI in canonical form.
func (u *URI) String() string {
	q := url.Values{}
	q.Set("bridge", u.Bridge)
	q.Set("key", hex.EncodeToString(u.Key))
	return uriScheme + u.Topic + "@" + uriVersion + "?" + q.Encode()
}
