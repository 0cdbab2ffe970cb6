package form

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	content "github.com/hanpama/livebridge/internal/content"
)

func newPostForm(t *testing.T) *Form {
	t.Helper()
	return New(Config{
		ID:    "content/posts/hello.md",
		Label: "Posts",
		InitialValues: map[string]any{
			"title":  "Hello",
			"body":   map[string]any{"heading": "Welcome"},
			"blocks": []any{map[string]any{"_template": "hero", "headline": "Big"}},
		},
		Queries: []string{"p1"},
	})
}

func TestForm_Change(t *testing.T) {
	f := newPostForm(t)
	require.False(t, f.Dirty())

	require.NoError(t, f.Change("title", "Hi"))
	require.NoError(t, f.Change("body.heading", "Hey"))
	require.NoError(t, f.Change("blocks.0.headline", "Bigger"))
	require.NoError(t, f.Change("seo.description", "new"))

	want := map[string]any{
		"title":  "Hi",
		"body":   map[string]any{"heading": "Hey"},
		"blocks": []any{map[string]any{"_template": "hero", "headline": "Bigger"}},
		"seo":    map[string]any{"description": "new"},
	}
	if diff := cmp.Diff(want, f.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	require.True(t, f.Dirty())

	f.Reset()
	require.False(t, f.Dirty())
	require.Equal(t, "Hello", f.Values()["title"])
}

func TestForm_Change_InvalidPath(t *testing.T) {
	f := newPostForm(t)
	for _, p := range []string{"", "blocks.3.headline", "blocks.x", "title.inner"} {
		require.ErrorIs(t, f.Change(p, 1), ErrInvalidPath, p)
	}
}

func TestForm_ValuesAreCopies(t *testing.T) {
	initial := map[string]any{"body": map[string]any{"heading": "A"}}
	f := New(Config{ID: "a", InitialValues: initial})

	initial["body"].(map[string]any)["heading"] = "mutated"
	got := f.Values()
	got["body"].(map[string]any)["heading"] = "mutated too"

	require.Equal(t, map[string]any{"body": map[string]any{"heading": "A"}}, f.Values())
}

func TestForm_Queries(t *testing.T) {
	f := newPostForm(t)
	f.AddQuery("p2")
	f.AddQuery("p1")
	require.Equal(t, []string{"p1", "p2"}, f.Queries())

	f.RemoveQuery("p1")
	f.RemoveQuery("unknown")
	require.False(t, f.Orphaned())
	f.RemoveQuery("p2")
	require.True(t, f.Orphaned())
}

func TestForm_Subscribe(t *testing.T) {
	f := newPostForm(t)
	var calls int
	unsubscribe := f.Subscribe(func(got *Form) {
		require.Same(t, f, got)
		calls++
	})

	require.NoError(t, f.Change("title", "A"))
	f.SetValues(map[string]any{"title": "B"})
	require.Equal(t, 2, calls)

	require.Error(t, f.Change("", "C"))
	require.Equal(t, 2, calls)

	unsubscribe()
	f.Reset()
	require.Equal(t, 2, calls)
}

func TestForm_Submit(t *testing.T) {
	var got map[string]any
	f := New(Config{
		ID:            "a",
		InitialValues: map[string]any{"title": "A"},
		OnSubmit: func(ctx context.Context, values map[string]any) error {
			got = values
			return errors.New("offline")
		},
	})
	require.NoError(t, f.Change("title", "B"))

	require.EqualError(t, f.Submit(context.Background()), "offline")
	require.Equal(t, map[string]any{"title": "B"}, got)
	require.Equal(t, "B", f.Values()["title"])

	require.ErrorContains(t, New(Config{ID: "b"}).Submit(context.Background()), "no submit handler")
}

func TestFormify(t *testing.T) {
	cfg := Config{ID: "a", Label: "A"}

	f, visible := Formify(nil, cfg)
	require.True(t, visible)
	require.Equal(t, "a", f.ID())
	require.False(t, f.Global())

	f, visible = Formify(func(args FormifyArgs) *Form {
		return args.CreateGlobalForm(args.Config)
	}, cfg)
	require.True(t, visible)
	require.True(t, f.Global())

	f, visible = Formify(func(args FormifyArgs) *Form {
		args.Skip()
		return nil
	}, cfg)
	require.False(t, visible)
	require.Equal(t, "a", f.ID())
}

func TestResolveFields(t *testing.T) {
	s, err := content.Load(strings.NewReader(`
collections:
  - name: post
    path: content/posts
    fields:
      - name: title
        type: string
        label: Title
      - name: tags
        type: string
        list: true
      - name: body
        type: object
        fields:
          - name: heading
            type: string
      - name: blocks
        type: object
        list: true
        templates:
          - name: hero
            fields:
              - name: headline
                type: string
      - name: notes
        type: string
        ui:
          component: textarea
`))
	require.NoError(t, err)
	tpl, err := s.Collection("post").TemplateForData(map[string]any{})
	require.NoError(t, err)

	fields := ResolveFields(tpl)
	got := make(map[string]string, len(fields))
	for _, f := range fields {
		got[f.Label] = f.Component
	}
	want := map[string]string{
		"Title":  ComponentText,
		"tags":   ComponentList,
		"body":   ComponentGroup,
		"blocks": ComponentBlocks,
		"notes":  "textarea",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("components mismatch (-want +got):\n%s", diff)
	}

	blocks := fields[3]
	require.Equal(t, []string{"post", "blocks", "hero"}, blocks.Template("hero").Namespace)
	require.Equal(t, "hero", blocks.Template("hero").Label)
	require.Equal(t, []string{"post", "body", "heading"}, fields[2].Fields[0].Namespace)
}
