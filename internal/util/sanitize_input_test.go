package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidUsername(t *testing.T) {
	valid := []string{"alice", "bob.smith", "user01", "a.b-c@d", strings.Repeat("x", 50)}
	for _, u := range valid {
		assert.True(t, IsValidUsername(u), u)
	}

	invalid := []string{"", "ab", "has space", "quote'name", "semi;colon", strings.Repeat("x", 51), "drop table--"}
	for _, u := range invalid {
		assert.False(t, IsValidUsername(u), u)
	}
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("alice@example.com"))
	assert.True(t, IsValidEmail("a.b-c%d@mail.example.org"))

	assert.False(t, IsValidEmail("not-an-email"))
	assert.False(t, IsValidEmail("missing@tld"))
	assert.False(t, IsValidEmail("'or 1=1@x.com"))
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "&lt;script&gt;", SanitizeInput("  <script>  "))
	assert.Equal(t, "plain text", SanitizeInput("plain text"))
}
