package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountDomain(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"jane@example.com", "example.com"},
		{"user@gmail.com", "gmail.com"},
		{"test@subdomain.example.com", "subdomain.example.com"},
		{"quoted@weird@example.org", "example.org"},
		{"no-at-sign", "unknown"},
		{"@example.com", "unknown"},
		{"trailing@", "unknown"},
		{"", "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AccountDomain(tt.email), "email %q", tt.email)
	}
}
