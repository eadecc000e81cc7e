package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_Defaults(t *testing.T) {
	q := NewQueue(0)
	n := q.Add(Options{Text: "hello"})

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, Info, n.Type)
	assert.Equal(t, DefaultLifetime, n.Lifetime)
	assert.False(t, n.CreatedAt.IsZero())
	assert.Equal(t, []Notification{n}, q.Visible())
}

func TestAdd_Explicit(t *testing.T) {
	q := NewQueue(time.Second)

	n := q.Add(Options{Text: "boom", Type: Error, Lifetime: time.Minute})
	assert.Equal(t, Error, n.Type)
	assert.Equal(t, time.Minute, n.Lifetime)

	m := q.Success("created %s", "alice")
	assert.Equal(t, "created alice", m.Text)
	assert.Equal(t, Success, m.Type)
	assert.Equal(t, time.Second, m.Lifetime)

	assert.NotEqual(t, n.ID, m.ID)
	assert.Equal(t, Error, q.Error("x").Type)
}

func TestDismissAndRemove(t *testing.T) {
	q := NewQueue(0)
	a := q.Add(Options{Text: "a"})
	b := q.Add(Options{Text: "b"})

	require.True(t, q.Dismiss(a.ID))
	assert.Len(t, q.Visible(), 1)
	assert.Equal(t, 2, q.Len())
	assert.True(t, q.All()[0].Dismissed)

	require.True(t, q.Remove(a.ID))
	assert.False(t, q.Remove(a.ID))
	assert.False(t, q.Dismiss("missing"))
	assert.Equal(t, []Notification{b}, q.Visible())

	q.RemoveAll()
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Visible())
}

func TestDismissOldest(t *testing.T) {
	q := NewQueue(0)
	assert.False(t, q.DismissOldest())

	a := q.Add(Options{Text: "a"})
	b := q.Add(Options{Text: "b"})

	require.True(t, q.DismissOldest())
	vis := q.Visible()
	require.Len(t, vis, 1)
	assert.Equal(t, b.ID, vis[0].ID)
	assert.NotEqual(t, a.ID, vis[0].ID)
}
