package domain

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM\t"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNormalizeDoesNotAliasInput(t *testing.T) {
	raw := string([]byte("admin@x.com"))
	email := NormalizeEmail(raw)
	assert.Equal(t, raw, email)
	assert.NotEqual(t, unsafe.StringData(raw), unsafe.StringData(email))

	name := string([]byte("Root"))
	normalized := NormalizeName(name)
	assert.Equal(t, name, normalized)
	assert.NotEqual(t, unsafe.StringData(name), unsafe.StringData(normalized))
}

func TestUpdateUserInputEmpty(t *testing.T) {
	assert.True(t, UpdateUserInput{}.Empty())
	active := false
	assert.False(t, UpdateUserInput{Active: &active}.Empty())
}
