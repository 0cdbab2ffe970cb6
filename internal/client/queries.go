package client

import (
	"context"
	"fmt"

	document "github.com/hanpama/livebridge/internal/document"
)

// GetNodeQuery fetches a document's identity and raw values by id.
const GetNodeQuery = `query GetNode($id: String!) {
  node(id: $id) {
    ... on Document {
      _values
      _sys {
        breadcrumbs
        basename
        filename
        path
        extension
        relativePath
        title
        template
        collection {
          name
          slug
          label
          path
          format
          matches
          templates
          fields
          __typename
        }
        __typename
      }
    }
  }
}`

// UpdateDocumentMutation persists the values of a document.
const UpdateDocumentMutation = `mutation UpdateDocument($collection: String!, $relativePath: String!, $params: DocumentUpdateMutation!) {
  updateDocument(collection: $collection, relativePath: $relativePath, params: $params) {
    __typename
  }
}`

// GetDocument looks up the document with the given id.
func GetDocument(ctx context.Context, api API, id string) (*document.Document, error) {
	data, err := api.Request(ctx, GetNodeQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	node, _ := data["node"].(map[string]any)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return document.FromNode(node)
}

// UpdateDocument sends params, the transformed values of a document, to the
// update mutation.
func UpdateDocument(ctx context.Context, api API, collection, relativePath string, params map[string]any) error {
	_, err := api.Request(ctx, UpdateDocumentMutation, map[string]any{
		"collection":   collection,
		"relativePath": relativePath,
		"params":       params,
	})
	return err
}
