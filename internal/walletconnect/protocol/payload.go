// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package protocol

import (
	"encoding/base64"
	"encoding/json"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
)

// Payload is the response body for an approved request.
type Payload interface {
	// WireValue returns the JSON-RPC result value.
	WireValue() any
	isPayload()
}

// SignedTransactions answers algo_signTxn. A nil entry means the wallet did
// not sign that transaction and is encoded as JSON null.
type SignedTransactions struct {
	Transactions [][]byte
}

// SignedData answers algo_signData with one signature per data item.
type SignedData struct {
	Signatures [][]byte
}

func (p SignedTransactions) WireValue() any { return encodeAll(p.Transactions) }
func (p SignedData) WireValue() any         { return encodeAll(p.Signatures) }

func (SignedTransactions) isPayload() {}
func (SignedData) isPayload()         {}

func encodeAll(items [][]byte) []*string {
	out := make([]*string, len(items))
	for i, b := range items {
		if b == nil {
			continue
		}
		s := base64.StdEncoding.EncodeToString(b)
		out[i] = &s
	}
	return out
}

// Payload kinds used by DecodePayload.
const (
	PayloadSignedTransactions = "signed_transactions"
	PayloadSignedData         = "signed_data"
)

// DecodePayload builds a Payload from its kind and base64 items, as received
// from the application API.
func DecodePayload(kind string, items []*string) (Payload, error) {
	raw := make([][]byte, len(items))
	for i, s := range items {
		if s == nil {
			continue
		}
		b, err := base64.StdEncoding.DecodeString(*s)
		if err != nil {
			return nil, wlerr.Wrapf(err, wlerr.CodeWalletConnectPayloadInvalid, "payload item %d is not base64", i)
		}
		raw[i] = b
	}

	switch kind {
	case PayloadSignedTransactions:
		return SignedTransactions{Transactions: raw}, nil
	case PayloadSignedData:
		return SignedData{Signatures: raw}, nil
	default:
		return nil, wlerr.Errorf(wlerr.CodeWalletConnectPayloadInvalid, "unknown payload kind %q", kind)
	}
}

// MarshalPayload renders p as the JSON-RPC result.
func MarshalPayload(p Payload) (json.RawMessage, error) {
	return json.Marshal(p.WireValue())
}
