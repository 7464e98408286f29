package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errThing = Mark(errors.New("thing: missing"), ErrNotFound)

func TestMarkSurvivesWrapping(t *testing.T) {
	wrapped := Wrapf(errThing, "load %s", "x")

	assert.True(t, Is(wrapped, ErrNotFound))
	assert.True(t, Is(wrapped, errThing))
	assert.False(t, Is(wrapped, ErrValidation))
	assert.Equal(t, ErrNotFound, CategoryOf(wrapped))
}

func TestMarkNilReturnsCategory(t *testing.T) {
	assert.Equal(t, ErrForbidden, Mark(nil, ErrForbidden))
}

func TestCategoryByName(t *testing.T) {
	for _, c := range categories {
		assert.Equal(t, c, CategoryByName(c.Error()))
	}
	assert.Nil(t, CategoryByName("nope"))
	assert.Nil(t, CategoryOf(errors.New("plain")))
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(Mark(errors.New("down"), ErrUpstreamUnavailable)))
	assert.True(t, Transient(Wrap(Mark(errors.New("raced"), ErrConcurrentUpdate), "save")))
	assert.False(t, Transient(errThing))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "x"))
	assert.NoError(t, Wrapf(nil, "x %d", 1))
}

func TestExtractStackLines(t *testing.T) {
	lines := ExtractStackLines(New("boom"), 3)
	assert.LessOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "boom")
	assert.Nil(t, ExtractStackLines(nil, 3))
}
