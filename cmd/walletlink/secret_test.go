// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"strings"
	"testing"

	wlerr "github.com/sigil-dev/walletlink/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecretList(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want string
	}{
		{name: "empty store", want: "No secrets stored.\n"},
		{name: "single key", keys: []string{"api-token"}, want: "api-token\n"},
		{name: "multiple keys", keys: []string{"wcv1/topic-b", "api-token"}, want: "api-token\nwcv1/topic-b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useSecretStore(t, newMockSecretStore(tt.keys...))
			out, err := executeCmd(t, nil, "secret", "list")
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(out, tt.want), "output %q", out)
		})
	}
}

func TestSecretSet(t *testing.T) {
	store := newMockSecretStore()
	useSecretStore(t, store)

	out, err := executeCmd(t, strings.NewReader("hunter2\n"), "secret", "set", "api-token")
	require.NoError(t, err)
	assert.Contains(t, out, "keyring://walletlink/api-token")
	assert.Equal(t, "hunter2", store.data["api-token"])
}

func TestSecretSet_EmptyValue(t *testing.T) {
	useSecretStore(t, newMockSecretStore())

	_, err := executeCmd(t, strings.NewReader("\n"), "secret", "set", "api-token")
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeCLIInputInvalid))
}

func TestSecretDelete(t *testing.T) {
	store := newMockSecretStore("api-token")
	useSecretStore(t, store)

	out, err := executeCmd(t, nil, "secret", "delete", "api-token")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted secret: api-token")
	assert.Empty(t, store.data)
}

func TestSecretDelete_NotFound(t *testing.T) {
	useSecretStore(t, newMockSecretStore())

	_, err := executeCmd(t, nil, "secret", "delete", "missing")
	require.Error(t, err)
	assert.True(t, wlerr.HasCode(err, wlerr.CodeSecretNotFound))
}
