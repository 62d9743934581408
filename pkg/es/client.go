// Package es provides the Elasticsearch catalog vector index.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MincaAI/MVP-underwriting-sub000/internal/config"
	"github.com/MincaAI/MVP-underwriting-sub000/internal/model"
	"github.com/MincaAI/MVP-underwriting-sub000/pkg/log"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// InitES initializes the Elasticsearch client and ensures the catalog index
// exists with the configured vector dimension.
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName, dims)
}

// createIndexIfNotExists checks whether the catalog index exists and creates
// it if it does not. The dense_vector dimension comes from the embedding
// config; every stored vector must match it exactly.
func createIndexIfNotExists(indexName string, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("failed to check index existence: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("index '%s' already exists", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("unexpected status while checking index '%s': %d", indexName, res.StatusCode)
		return fmt.Errorf("unexpected status while checking index existence: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"version_id": { "type": "keyword" },
				"code": { "type": "keyword" },
				"label": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, dims)

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("failed to create index '%s': %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("elasticsearch returned an error creating index '%s': %s", indexName, res.String())
		return errors.New("elasticsearch returned an error creating index")
	}

	log.Infof("index '%s' created successfully", indexName)
	return nil
}

// BulkIndexCatalogDocuments indexes a batch of catalog vectors. Document IDs
// are "<version_id>:<code>", so re-running an embed overwrites in place
// instead of duplicating.
func BulkIndexCatalogDocuments(ctx context.Context, indexName string, docs []model.EsCatalogDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, indexName, doc.DocID())
		buf.WriteString(meta)
		buf.WriteByte('\n')
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Body:    bytes.NewReader(buf.Bytes()),
		Refresh: "true",
	}
	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("bulk indexing catalog documents failed: %s", res.String())
		return errors.New("failed to bulk index catalog documents")
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		return errors.New("bulk response reported item-level errors")
	}
	return nil
}

// Hit is one kNN result from the catalog index. Score is the Elasticsearch
// cosine kNN score, already normalized to [0,1].
type Hit struct {
	Code  string
	Label string
	Score float64
}

// KnnSearch finds the k nearest catalog entries of a single version by
// cosine similarity.
func KnnSearch(ctx context.Context, indexName, versionID string, vector []float32, k int) ([]Hit, error) {
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 4,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{"version_id": versionID},
			},
		},
		"size":    k,
		"_source": []string{"code", "label"},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode knn query: %w", err)
	}

	res, err := ESClient.Search(
		ESClient.Search.WithContext(ctx),
		ESClient.Search.WithIndex(indexName),
		ESClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch knn search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsCatalogDocument `json:"_source"`
				Score  float64                 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode knn response: %w", err)
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, Hit{Code: h.Source.Code, Label: h.Source.Label, Score: h.Score})
	}
	return hits, nil
}

// DeleteVersion removes every document of a catalog version from the index.
// Used when a failed load is retried from scratch.
func DeleteVersion(ctx context.Context, indexName, versionID string) error {
	query := fmt.Sprintf(`{"query":{"term":{"version_id":%q}}}`, versionID)
	res, err := ESClient.DeleteByQuery([]string{indexName}, strings.NewReader(query),
		ESClient.DeleteByQuery.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete by query failed: %s", res.String())
	}
	return nil
}

// Searcher adapts the package-level kNN search to the retriever's
// VectorSearcher port.
type Searcher struct {
	IndexName string
}

// Search implements the vector retrieval path against the catalog index.
func (s *Searcher) Search(ctx context.Context, versionID string, vector []float32, k int) ([]Hit, error) {
	return KnnSearch(ctx, s.IndexName, versionID, vector, k)
}

// Indexer adapts bulk indexing to the catalog store's VectorIndexer port.
type Indexer struct {
	IndexName string
}

// BulkIndex writes a batch of catalog vectors to the index.
func (i *Indexer) BulkIndex(ctx context.Context, docs []model.EsCatalogDocument) error {
	return BulkIndexCatalogDocuments(ctx, i.IndexName, docs)
}

// DeleteVersion clears a version's vectors before a reload.
func (i *Indexer) DeleteVersion(ctx context.Context, versionID string) error {
	return DeleteVersion(ctx, i.IndexName, versionID)
}
