// audit/repository.go
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type Repository interface {
	Save(ctx context.Context, log AuditLog) error
	QueryLogs(ctx context.Context, from, to time.Time, kind Kind, poolID string) ([]AuditLog, error)
}

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
	index    string
}

// NewElasticsearchRepository creates a new repository with a given Elasticsearch client URL.
func NewElasticsearchRepository(esURL, index string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient, index: index}, nil
}

// Save indexes an audit document.
func (r *ElasticsearchRepository) Save(ctx context.Context, log AuditLog) error {
	data, err := json.Marshal(log)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: log.ID,
		Body:       bytes.NewReader(data),
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

// QueryLogs searches audit logs within a time frame, optionally filtered by kind and pool.
func (r *ElasticsearchRepository) QueryLogs(ctx context.Context, from, to time.Time, kind Kind, poolID string) ([]AuditLog, error) {
	must := []map[string]interface{}{
		{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}
	if kind != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"kind": kind}})
	}
	if poolID != "" {
		must = append(must, map[string]interface{}{"term": map[string]interface{}{"pool_id": poolID}})
	}
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
		"sort": []interface{}{map[string]interface{}{"timestamp": "desc"}},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.index),
		r.esClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var body struct {
		Hits struct {
			Hits []struct {
				Source AuditLog `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, err
	}

	logs := make([]AuditLog, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		logs = append(logs, hit.Source)
	}
	return logs, nil
}

// MemoryRepository keeps a bounded in-process trail. It backs the service
// when Elasticsearch is disabled.
type MemoryRepository struct {
	mu    sync.RWMutex
	logs  []AuditLog
	limit int
}

func NewMemoryRepository(limit int) *MemoryRepository {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryRepository{limit: limit}
}

func (r *MemoryRepository) Save(_ context.Context, log AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	if len(r.logs) > r.limit {
		r.logs = r.logs[len(r.logs)-r.limit:]
	}
	return nil
}

func (r *MemoryRepository) QueryLogs(_ context.Context, from, to time.Time, kind Kind, poolID string) ([]AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []AuditLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		l := r.logs[i]
		if l.Timestamp.Before(from) || l.Timestamp.After(to) {
			continue
		}
		if kind != "" && l.Kind != kind {
			continue
		}
		if poolID != "" && l.PoolID != poolID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
