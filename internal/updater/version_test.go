package updater

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNewer(t *testing.T) {
	tests := []struct {
		name    string
		latest  string
		current string
		want    bool
	}{
		{"patch bump", "1.2.0", "1.1.9", true},
		{"short form equal", "1.0", "1.0.0", false},
		{"garbage latest", "abc", "1.0.0", false},
		{"garbage current", "1.0.0", "abc", false},
		{"major bump", "2.0.0", "1.9.9", true},
		{"double digit minor", "1.10.0", "1.9.0", true},
		{"equal", "1.4.2", "1.4.2", false},
		{"older", "1.4.1", "1.4.2", false},
		{"missing components pad to zero", "2", "1.9.9", true},
		{"fourth component ignored", "1.2.3.9", "1.2.3", false},
		{"empty latest", "", "1.0.0", false},
		{"partial garbage", "1.x.0", "1.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNewer(tt.latest, tt.current))
		})
	}
}
