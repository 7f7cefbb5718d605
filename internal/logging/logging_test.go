package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReturnsNonNilLogger(t *testing.T) {
	l := New(Options{})
	assert.NotNil(t, l)
}

func TestWithEntryAttachesFields(t *testing.T) {
	l := New(Options{JSON: true})
	scoped := WithEntry(l, 1, 2, 3)
	assert.NotNil(t, scoped)
	assert.NotSame(t, l, scoped)
}
