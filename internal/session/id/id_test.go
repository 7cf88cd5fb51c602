package id

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	assert.Regexp(t, regexp.MustCompile(`^rec-\d+-[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, Generate(), "expected different IDs for consecutive calls")
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		assert.False(t, seen[id], "duplicate ID generated: %s", id)
		seen[id] = true
	}
}
