package lib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddrToURL(t *testing.T) {
	tests := []struct {
		addr     string
		expected string
	}{
		{addr: "relay.example.com", expected: "https://relay.example.com"},
		{addr: "relay.example.com:443", expected: "https://relay.example.com"},
		{addr: "relay.example.com:8443", expected: "https://relay.example.com:8443"},
		{addr: "http://relay.example.com:8000", expected: "http://relay.example.com:8000"},
	}
	for _, tc := range tests {
		url, err := AddrToURL(tc.addr)
		require.NoError(t, err)
		require.Equal(t, tc.expected, url.String())
	}
}
