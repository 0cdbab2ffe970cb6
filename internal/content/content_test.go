package content

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const siteYAML = `
collections:
  - name: post
    label: Posts
    path: content/posts
    format: md
    fields:
      - name: title
        type: string
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
          - ref: cta
  - name: draft
    path: content/posts/drafts
    format: md
    fields:
      - name: title
        type: string
  - name: page
    path: content/pages
    format: mdx
    match:
      include: "*"
      exclude: "secret"
    templates:
      - name: article
        label: Article
        fields:
          - name: title
            type: string
`

func mustLoad(t *testing.T) *Schema {
	t.Helper()
	s, err := Load(strings.NewReader(siteYAML))
	require.NoError(t, err)
	return s
}

func TestLoad_Namespaces(t *testing.T) {
	s := mustLoad(t)
	post := s.Collection("post")
	require.NotNil(t, post)

	body := post.Fields[1]
	require.Equal(t, []string{"post", "body"}, body.Namespace)
	require.Equal(t, []string{"post", "body", "heading"}, body.Fields[0].Namespace)

	blocks := post.Fields[2]
	require.Equal(t, []string{"post", "blocks", "hero"}, blocks.Template("hero").Namespace)
	require.True(t, blocks.Template("cta").IsRef())
	require.Nil(t, blocks.Template("missing"))

	article := s.Collection("page").Templates[0]
	require.Equal(t, []string{"page", "article"}, article.Namespace)
	require.Equal(t, []string{"page", "article", "title"}, article.Fields[0].Namespace)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"Unknown key":       "collections:\n  - name: a\n    path: a\n    bogus: 1\n",
		"No fields":         "collections:\n  - name: a\n    path: a\n",
		"Duplicate":         "collections:\n  - {name: a, path: a, fields: [{name: t, type: string}]}\n  - {name: a, path: b, fields: [{name: t, type: string}]}\n",
		"Ref on collection": "collections:\n  - {name: a, path: a, templates: [{ref: x}]}\n",
		"Unnamed field":     "collections:\n  - {name: a, path: a, fields: [{type: string}]}\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(strings.NewReader(src))
			require.Error(t, err)
		})
	}
}

func TestCollectionForPath(t *testing.T) {
	s := mustLoad(t)
	cases := []struct {
		path string
		want string
	}{
		{"content/posts/hello.md", "post"},
		{"./content/posts/nested/hello.md", "post"},
		{`content\posts\hello.md`, "post"},
		{"content/posts/drafts/wip.md", "draft"},
		{"content/pages/about.mdx", "page"},
	}
	for _, tc := range cases {
		c, err := s.CollectionForPath(tc.path)
		require.NoError(t, err, tc.path)
		require.Equal(t, tc.want, c.Name, tc.path)
	}

	for _, p := range []string{"content/other/a.md", "content/pages/secret.mdx", "content/pages/a/b.mdx", "content/postsx/a.md"} {
		_, err := s.CollectionForPath(p)
		require.ErrorIs(t, err, ErrNoCollection, p)
		require.ErrorContains(t, err, "unable to determine collection for path")
	}
}

func TestTemplateForData(t *testing.T) {
	s := mustLoad(t)

	tpl, err := s.Collection("post").TemplateForData(map[string]any{"title": "Hi"})
	require.NoError(t, err)
	require.Equal(t, "post", tpl.Name)
	require.Equal(t, []string{"post"}, tpl.Namespace)
	require.Len(t, tpl.Fields, 3)

	page := s.Collection("page")
	tpl, err = page.TemplateForData(map[string]any{TemplateKey: "article"})
	require.NoError(t, err)
	require.Equal(t, "Article", tpl.Label)

	_, err = page.TemplateForData(map[string]any{})
	require.ErrorIs(t, err, ErrNoTemplate)
	_, err = page.TemplateForData(map[string]any{TemplateKey: "gallery"})
	require.ErrorIs(t, err, ErrNoTemplate)
}

func TestDisplayLabel(t *testing.T) {
	s := mustLoad(t)
	require.Equal(t, "Posts", s.Collection("post").DisplayLabel())
	require.Equal(t, "draft", s.Collection("draft").DisplayLabel())
}

func TestTransformPayload(t *testing.T) {
	s := mustLoad(t)

	t.Run("Fields collection", func(t *testing.T) {
		got, err := s.TransformPayload("post", map[string]any{
			"title": "Hi",
			"body":  map[string]any{"heading": "H", "stray": 1},
			"blocks": []any{
				map[string]any{TemplateKey: "hero", "headline": "Big"},
			},
			"unknown": true,
		})
		require.NoError(t, err)
		want := map[string]any{
			"post": map[string]any{
				"title":  "Hi",
				"body":   map[string]any{"heading": "H"},
				"blocks": []any{map[string]any{"hero": map[string]any{"headline": "Big"}}},
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("payload mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Templates collection", func(t *testing.T) {
		got, err := s.TransformPayload("page", map[string]any{TemplateKey: "article", "title": "About"})
		require.NoError(t, err)
		want := map[string]any{"page": map[string]any{"article": map[string]any{"title": "About"}}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("payload mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := s.TransformPayload("missing", map[string]any{})
		require.ErrorIs(t, err, ErrNoCollection)

		_, err = s.TransformPayload("post", map[string]any{"blocks": []any{map[string]any{TemplateKey: "cta"}}})
		require.ErrorContains(t, err, "is a reference")

		_, err = s.TransformPayload("post", map[string]any{"blocks": []any{map[string]any{TemplateKey: "nope"}}})
		require.ErrorIs(t, err, ErrNoTemplate)
	})
}
