package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTrivial(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"hi", true},
		{"Hello!", true},
		{"Thank you.", true},
		{"User: ok", true},
		{"Alex: good morning!!", true},
		{"abcd", true},
		{"abcde", false},
		{"My name is Alex", false},
		{"User: I love hiking", false},
		{"hey there, I moved to Lisbon", false},
		{"ünïcødé", false},
		{"I wake up at 6:30", false},
		{"My flight leaves at 10:45", false},
		{"Dentist on May 3 at 9:15", false},
		{"Remember: my PIN is 4821", false},
		{"6:30", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTrivial(tt.text, 5))
		})
	}
}

func TestIsTrivial_MinLength(t *testing.T) {
	assert.False(t, IsTrivial("pizza", 5))
	assert.True(t, IsTrivial("pizza", 10))
}
