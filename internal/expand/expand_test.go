package expand

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	language "github.com/hanpama/livebridge/internal/language"
	schema "github.com/hanpama/livebridge/internal/schema"
)

const contentSDL = `
scalar JSON

interface Document {
  _sys: SystemInfo
  _values: JSON!
}

type Collection {
  name: String!
  slug: String!
  label: String
  path: String!
  format: String
}

type SystemInfo {
  filename: String!
  basename: String!
  breadcrumbs(excludeExtension: Boolean): [String!]!
  path: String!
  relativePath: String!
  extension: String!
  template: String!
  title: String
  collection: Collection!
}

type PostBody {
  heading: String
}

type Post implements Document {
  _sys: SystemInfo
  _values: JSON!
  title: String
  body: PostBody
  author: Author
}

type Author implements Document {
  _sys: SystemInfo
  _values: JSON!
  name: String
}

union DocumentNode = Post | Author

type Query {
  post(relativePath: String!): Post
  document(collection: String, relativePath: String): DocumentNode
  posts: [Post!]!
}
`

func mustSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.BuildFromSDL(contentSDL)
	require.NoError(t, err)
	return s
}

// normalize prints src through the same formatter Query uses.
func normalize(t *testing.T, src string) string {
	t.Helper()
	doc, err := language.ParseQuery(src)
	require.NoError(t, err)
	return language.PrintQuery(doc)
}

const sys = `_internalSys: _sys { breadcrumbs basename filename path extension relativePath title template collection { name slug label path format } }`

func TestQuery_Result(t *testing.T) {
	cases := []struct {
		name     string
		metadata bool
		query    string
		want     string
	}{
		{
			name:  "Node field",
			query: `{ post(relativePath: "a.md") { title } }`,
			want:  `{ post(relativePath: "a.md") { title __typename ` + sys + ` _internalValues: _values } }`,
		},
		{
			name:  "List of nodes and nested object",
			query: `{ posts { title body { heading } } }`,
			want:  `{ posts { title body { heading __typename } __typename ` + sys + ` _internalValues: _values } }`,
		},
		{
			name:     "Metadata schema",
			metadata: true,
			query:    `{ post(relativePath: "a.md") { title body { heading } } }`,
			want: `{ post(relativePath: "a.md") { title body { heading __typename _metadata } __typename ` + sys +
				` _internalValues: _values _metadata } }`,
		},
		{
			name:  "Union members",
			query: `{ document(relativePath: "a.md") { ... on Post { title } } }`,
			want: `{ document(relativePath: "a.md") { ... on Post { title ` + sys + ` _internalValues: _values }` +
				` __typename ... on Author { ` + sys + ` _internalValues: _values } } }`,
		},
		{
			name:  "Named fragment",
			query: `query Q { post(relativePath: "a.md") { ...P } } fragment P on Post { author { name } }`,
			want: `query Q { post(relativePath: "a.md") { ...P __typename ` + sys + ` _internalValues: _values } }` +
				` fragment P on Post { author { name __typename ` + sys + ` _internalValues: _values } __typename ` + sys + ` _internalValues: _values }`,
		},
		{
			name:  "Root fragment",
			query: `query Q { ...R } fragment R on Query { posts { title } }`,
			want:  `query Q { ...R } fragment R on Query { posts { title __typename ` + sys + ` _internalValues: _values } }`,
		},
		{
			name:  "Hand written alias is kept",
			query: `{ post(relativePath: "a.md") { _internalValues: _values kind: __typename } }`,
			want:  `{ post(relativePath: "a.md") { _internalValues: _values kind: __typename __typename ` + sys + ` } }`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sch := mustSchema(t)
			if tc.metadata {
				sch = schema.WithMetadata(sch)
			}
			got, err := Query(sch, tc.query)
			require.NoError(t, err)
			if diff := cmp.Diff(normalize(t, tc.want), got); diff != "" {
				t.Fatalf("expanded query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpand_Idempotent(t *testing.T) {
	for _, sch := range []*schema.Schema{mustSchema(t), schema.WithMetadata(mustSchema(t))} {
		once, err := Query(sch, `query Q { document { ... on Post { title body { heading } } } posts { ...P } }
			fragment P on Post { author { name } }`)
		require.NoError(t, err)

		twice, err := Query(sch, once)
		require.NoError(t, err)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Fatalf("second expansion changed the query (-once +twice):\n%s", diff)
		}
	}
}

func TestExpand_DoesNotMutateInput(t *testing.T) {
	doc, err := language.ParseQuery(`{ post(relativePath: "a.md") { title body { heading } } }`)
	require.NoError(t, err)
	before := language.PrintQuery(doc)

	out, err := Expand(mustSchema(t), doc)
	require.NoError(t, err)

	require.Equal(t, before, language.PrintQuery(doc))
	require.NotEqual(t, before, language.PrintQuery(out))
}

func TestExpand_Errors(t *testing.T) {
	cases := map[string]string{
		"Unknown field":         `{ post(relativePath: "a.md") { missing } }`,
		"Unknown nested field":  `{ post(relativePath: "a.md") { body { missing } } }`,
		"Unknown fragment":      `{ post(relativePath: "a.md") { ...Missing } }`,
		"Unknown type":          `{ document { ... on Missing { title } } }`,
		"Unknown fragment type": `{ posts { title } } fragment F on Missing { title }`,
		"Field on union":        `{ document { title } }`,
		"Syntax":                `{ post( }`,
	}
	for name, query := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Query(mustSchema(t), query)
			require.Error(t, err)
		})
	}
}

func TestExpand_NoMutationType(t *testing.T) {
	_, err := Query(mustSchema(t), `mutation { save }`)
	require.ErrorContains(t, err, "no root type for mutation")
}
