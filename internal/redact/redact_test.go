package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	got := JSON(`{"address":"0:abc","proof":{"signature":"c2ln","payload":"p"},"items":[{"token":"t"}]}`)
	require.Contains(t, got, `"signature":"***REDACTED***"`)
	require.Contains(t, got, `"token":"***REDACTED***"`)
	require.Contains(t, got, `"payload":"p"`)
	require.Contains(t, got, `"address":"0:abc"`)
}

func TestJSON_NotJSON(t *testing.T) {
	assert.Equal(t, "plain text", JSON("plain text"))
	assert.Equal(t, "", JSON("   "))
}

func TestValue(t *testing.T) {
	got := Value(map[string]string{"Mnemonic": "word word", "name": "main"})
	assert.Contains(t, got, `"Mnemonic":"***REDACTED***"`)
	assert.Contains(t, got, `"name":"main"`)
}

func TestShort(t *testing.T) {
	assert.Equal(t, placeholder, Short("abc"))
	assert.Equal(t, "abcd...wxyz", Short("abcdefghijklmnopqrstuvwxyz"))
}
