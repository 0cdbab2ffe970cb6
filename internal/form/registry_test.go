package form

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ids(forms []*Form) []string {
	out := make([]string, 0, len(forms))
	for _, f := range forms {
		out = append(out, f.ID())
	}
	return out
}

func TestRegistry_OneFormPerID(t *testing.T) {
	r := NewRegistry()
	first := r.Add(New(Config{ID: "a", Queries: []string{"p1"}}))
	second := r.Add(New(Config{ID: "a", Queries: []string{"p2"}}))
	require.Same(t, first, second)

	hidden := r.AddHidden(New(Config{ID: "b"}))
	require.Same(t, hidden, r.AddHidden(New(Config{ID: "b"})))
	require.Same(t, hidden, r.Add(New(Config{ID: "b"})))

	require.Equal(t, 2, r.Len())
	require.Equal(t, []string{"a", "b"}, ids(r.All()))
	require.Equal(t, []string{"a"}, ids(r.Visible()))
	require.True(t, r.IsVisible("a"))
	require.False(t, r.IsVisible("b"))
	require.Nil(t, r.Find("c"))
}

func TestRegistry_RemoveOrphaned(t *testing.T) {
	r := NewRegistry()
	a := r.Add(New(Config{ID: "a", Queries: []string{"p1", "p2"}}))
	r.Add(New(Config{ID: "b", Queries: []string{"p1"}}))
	r.AddHidden(New(Config{ID: "c", Queries: []string{"p1"}}))
	r.Add(NewGlobal(Config{ID: "settings", Queries: []string{"p1"}}))

	var notified bool
	b := r.Find("b")
	b.Subscribe(func(*Form) { notified = true })

	r.RemoveQuery("p1")
	require.Equal(t, []string{"b", "c"}, r.RemoveOrphaned())
	require.Equal(t, []string{"a", "settings"}, ids(r.All()))
	require.Equal(t, []string{"p2"}, a.Queries())

	b.Reset()
	require.False(t, notified)

	r.Remove("a")
	r.Remove("missing")
	require.Equal(t, []string{"settings"}, ids(r.All()))

	r.RemoveAll()
	require.Zero(t, r.Len())
	require.Empty(t, r.Visible())
}
