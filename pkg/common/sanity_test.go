package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name    string
		ownerID string
		userID  string
		want    bool
	}{
		{"owner", "123", "123", true},
		{"padded owner", " 123 ", "123", true},
		{"stranger", "123", "456", false},
		{"no owner configured", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAdmin(tt.ownerID, tt.userID))
		})
	}
}
