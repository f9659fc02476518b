package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	var r Registry

	_, ok := r.Current()
	assert.False(t, ok)
	_, ok = r.Unregister()
	assert.False(t, ok)

	a := r.Register("com.example.game")
	assert.True(t, r.IsCurrent(a.Id))
	assert.Len(t, a.Short(), 8)

	b := r.Register("com.example.game")
	assert.NotEqual(t, a.Id, b.Id)
	assert.False(t, r.IsCurrent(a.Id))

	s, ok := r.Unregister()
	assert.True(t, ok)
	assert.Equal(t, b, s)
	assert.False(t, r.IsCurrent(b.Id))
	assert.False(t, r.IsCurrent(""))
}
