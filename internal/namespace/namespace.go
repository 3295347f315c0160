// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package namespace builds WalletConnect proposal and session namespaces for
// the Algorand chain family.
//
// All functions are pure. Session namespaces are derived from the account
// list passed in and are never cached, so callers rebuild them on every read.
package namespace

import (
	"slices"
	"strconv"
	"strings"
)

// Blockchain is the CAIP-2 namespace key used for every Algorand network.
const Blockchain = "algorand"

// Genesis hash prefixes identifying each network in CAIP-2 form.
const (
	MainnetRef = "wGHE2Pwdvd7S12BL5FaOP20EGYesN73k"
	TestnetRef = "SGO1GKSzyE7IEPItTxCByw9x8FmnrCDe"
	BetanetRef = "mFgazF-2uRS1tMiL9dsj01hJGySEmPN2"
)

// Legacy numeric chain ids used by v1 sessions.
const (
	// MainnetBackwardSentinel is the historical v1 "mainnet" id. Older dApps
	// send it while accepting any network, so it expands to all three.
	MainnetBackwardSentinel int64 = 4160
	MainnetChainID          int64 = 416001
	TestnetChainID          int64 = 416002
	BetanetChainID          int64 = 416003
)

// Methods and events the wallet supports.
const (
	MethodSignTxn        = "algo_signTxn"
	MethodSignData       = "algo_signData"
	EventAccountsChanged = "accountsChanged"
)

// DefaultMethods returns the RPC methods offered when a caller passes none.
func DefaultMethods() []string { return []string{MethodSignTxn, MethodSignData} }

// DefaultEvents returns the events offered when a caller passes none.
func DefaultEvents() []string { return []string{EventAccountsChanged} }

// Proposal is the pre-approval namespace shape.
type Proposal struct {
	Chains  []string `json:"chains"`
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
	Version string   `json:"version,omitempty"`
}

// Session is the settled namespace shape. Accounts are CAIP-10 strings.
type Session struct {
	Accounts []string `json:"accounts"`
	Methods  []string `json:"methods"`
	Events   []string `json:"events"`
}

// CAIP2 returns the CAIP-2 chain id for a genesis reference.
func CAIP2(ref string) string {
	return Blockchain + ":" + ref
}

// ResolveChains maps a negotiated chain identifier to CAIP-2 chain ids.
//
// The legacy sentinel expands to mainnet, testnet and betanet in that order.
// Known per-network numeric ids map to their CAIP-2 form. Anything else is
// returned unchanged as a single chain. An empty id resolves to no chains.
func ResolveChains(chainID string) []string {
	chainID = strings.TrimSpace(chainID)
	if chainID == "" {
		return nil
	}

	if n, err := strconv.ParseInt(chainID, 10, 64); err == nil {
		switch n {
		case MainnetBackwardSentinel:
			return []string{CAIP2(MainnetRef), CAIP2(TestnetRef), CAIP2(BetanetRef)}
		case MainnetChainID:
			return []string{CAIP2(MainnetRef)}
		case TestnetChainID:
			return []string{CAIP2(TestnetRef)}
		case BetanetChainID:
			return []string{CAIP2(BetanetRef)}
		}
	}
	return []string{chainID}
}

func proposalChains(chainID string) []string {
	chainID = strings.TrimSpace(chainID)
	if chainID == "" {
		return nil
	}
	if n, err := strconv.ParseInt(chainID, 10, 64); err == nil && n == MainnetBackwardSentinel {
		return ResolveChains(chainID)
	}
	return []string{chainID}
}

// LegacyChainID maps a chain identifier to the numeric form used by v1
// sessions. Numeric ids are returned as-is and CAIP-2 ids of known networks
// map to their per-network id.
func LegacyChainID(chainID string) (int64, bool) {
	chainID = strings.TrimSpace(chainID)
	if n, err := strconv.ParseInt(chainID, 10, 64); err == nil {
		return n, true
	}
	switch chainID {
	case CAIP2(MainnetRef):
		return MainnetChainID, true
	case CAIP2(TestnetRef):
		return TestnetChainID, true
	case CAIP2(BetanetRef):
		return BetanetChainID, true
	default:
		return 0, false
	}
}

// BuildProposal returns the proposal namespaces for chainID keyed by
// blockchain. The legacy sentinel expands to every network; any other id is
// offered verbatim as the only chain. Nil methods or events fall back to the
// defaults.
func BuildProposal(chainID string, methods, events []string, versionTag string) map[string]Proposal {
	return map[string]Proposal{
		Blockchain: {
			Chains:  nonNil(proposalChains(chainID)),
			Methods: orDefault(methods, DefaultMethods),
			Events:  orDefault(events, DefaultEvents),
			Version: versionTag,
		},
	}
}

// BuildSession returns the session namespaces for the given accounts. Each
// account is emitted once per resolved chain as "<chain>:<address>", chains
// outermost, preserving the account order.
func BuildSession(chainID string, accounts, methods, events []string) map[string]Session {
	chains := ResolveChains(chainID)
	caip10 := make([]string, 0, len(chains)*len(accounts))
	for _, chain := range chains {
		for _, addr := range accounts {
			caip10 = append(caip10, chain+":"+addr)
		}
	}

	return map[string]Session{
		Blockchain: {
			Accounts: caip10,
			Methods:  orDefault(methods, DefaultMethods),
			Events:   orDefault(events, DefaultEvents),
		},
	}
}

// AccountAddress strips the CAIP-10 chain prefix from an account, returning
// the bare address. Bare addresses are returned unchanged.
func AccountAddress(account string) string {
	if i := strings.LastIndex(account, ":"); i >= 0 {
		return account[i+1:]
	}
	return account
}

func orDefault(values []string, def func() []string) []string {
	if values == nil {
		return def()
	}
	return slices.Clone(values)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
