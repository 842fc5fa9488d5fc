package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddress(t *testing.T) {
	tests := map[string]string{
		"/run/hostif-sock/hostif.sock":        "unix:///run/hostif-sock/hostif.sock",
		"unix:///run/hostif-sock/hostif.sock": "unix:///run/hostif-sock/hostif.sock",
		"localhost:50051":                     "localhost:50051",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseAddress(in), in)
	}
}
