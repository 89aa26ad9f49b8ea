package urlpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentRoundTrip(t *testing.T) {
	s := New("hello world")
	assert.Equal(t, "hello world", s.Unencoded())
	assert.Equal(t, "hello%20world", s.Encoded())
	assert.Equal(t, "hello world", s.String())
}

func TestSegmentPreservesColon(t *testing.T) {
	s := New("a:b")
	assert.Equal(t, "a:b", s.Unencoded())
	assert.Contains(t, s.Encoded(), ":")
}

func TestSegmentEmpty(t *testing.T) {
	s := New("")
	assert.Equal(t, "", s.Unencoded())
	assert.Equal(t, "", s.Encoded())
}
