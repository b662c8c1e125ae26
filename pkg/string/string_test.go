package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimStrings(t *testing.T) {
	a, b := "  alice ", "\tbob\n"
	TrimStrings(&a, &b)
	assert.Equal(t, "alice", a)
	assert.Equal(t, "bob", b)
}

func TestFoldSpace(t *testing.T) {
	assert.Equal(t, "ada_lovelace", FoldSpace("  Ada \t Lovelace ", "_"))
	assert.Equal(t, "", FoldSpace(" \n ", "_"))
}
