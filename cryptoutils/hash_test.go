package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAlgorithm_Sum(t *testing.T) {
	tests := []struct {
		algorithm HashAlgorithm
		expected  string
	}{
		// Well-known digests of the empty string.
		{SHA256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{SHA384, "38b060a751ac96384cd9327eb1b1e36a21fdb71114be07434c0cc7bf63f6e1da274edebfe76f65fbd51ad2f14898b95b"},
		{SHA512, "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e"},
	}

	for _, tt := range tests {
		t.Run(string(tt.algorithm), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.algorithm.Sum(nil))
		})
	}
}

func TestHashAlgorithm_Combine(t *testing.T) {
	left := SHA256.Sum([]byte("left"))
	right := SHA256.Sum([]byte("right"))

	combined := SHA256.Combine(left, right)
	assert.Equal(t, SHA256.Sum([]byte(left+right)), combined)
	assert.NotEqual(t, combined, SHA256.Combine(right, left), "combination must be order-sensitive")
}

func TestParseHashAlgorithm(t *testing.T) {
	alg, err := ParseHashAlgorithm("SHA-384")
	require.NoError(t, err)
	assert.Equal(t, SHA384, alg)

	_, err = ParseHashAlgorithm("MD5")
	assert.Error(t, err)
}

func TestCanonicalJSON_Deterministic(t *testing.T) {
	// Map key order in the source must not affect the serialized bytes.
	a := map[string]any{"b": 1, "a": "x", "c": []int{1, 2}}
	b := map[string]any{"c": []int{1, 2}, "a": "x", "b": 1}

	dataA, err := CanonicalJSON(a)
	require.NoError(t, err)
	dataB, err := CanonicalJSON(b)
	require.NoError(t, err)

	assert.Equal(t, dataA, dataB)
	assert.Equal(t, `{"a":"x","b":1,"c":[1,2]}`, string(dataA))
}

func TestCanonicalJSON_NoHTMLEscaping(t *testing.T) {
	data, err := CanonicalJSON(map[string]string{"path": "a&b<c>"})
	require.NoError(t, err)
	assert.Equal(t, `{"path":"a&b<c>"}`, string(data))
}

func TestCanonicalHash(t *testing.T) {
	h1, err := CanonicalHash(SHA256, map[string]int{"x": 1, "y": 2})
	require.NoError(t, err)
	h2, err := CanonicalHash(SHA256, map[string]int{"y": 2, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
