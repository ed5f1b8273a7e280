package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValue(t *testing.T) {
	tests := []struct {
		in         string
		delims     []rune
		key, value string
		ok         bool
	}{
		{in: "Accept: text/plain", key: "Accept", value: " text/plain", ok: true},
		{in: "a=b=c", delims: []rune{'='}, key: "a", value: "b=c", ok: true},
		{in: "k=v", delims: []rune{':', '='}, key: "k", value: "v", ok: true},
		{in: "novalue"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			key, value, ok := KeyValue(tt.in, tt.delims...)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestHeaders(t *testing.T) {
	got, err := Headers([]string{"Accept: application/json", "X-Trace:abc"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Accept": "application/json", "X-Trace": "abc"}, got)

	got, err = Headers(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = Headers([]string{"broken"})
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	got, err := Query([]string{"tag=a", "tag=b", "q="})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"tag": {"a", "b"}, "q": {""}}, got)

	_, err = Query([]string{"=x"})
	assert.Error(t, err)
}
