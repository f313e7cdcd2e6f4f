// Package directory serves the interviewer list from Elasticsearch and
// caches any directory in Redis.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/metrics"
	"hiring-pipeline/internal/models"
)

// maxInterviewers caps a single listing. The directory is a staff list, not
// a search index over applicants.
const maxInterviewers = 1000

// SearchDirectory lists interviewers stored as documents in an index.
type SearchDirectory struct {
	client *elasticsearch.Client
	index  string
}

func NewSearchDirectory(client *elasticsearch.Client, index string) *SearchDirectory {
	return &SearchDirectory{client: client, index: index}
}

type interviewerDoc struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source interviewerDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildListQuery() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"match_all": map[string]interface{}{},
		},
		"sort": []interface{}{
			map[string]interface{}{"fullName.keyword": map[string]interface{}{"order": "asc", "unmapped_type": "keyword"}},
			map[string]interface{}{"id": map[string]interface{}{"order": "asc", "unmapped_type": "long"}},
		},
		"_source": []string{"id", "fullName", "email"},
	}
}

func (d *SearchDirectory) ListInterviewers(ctx context.Context) ([]models.Interviewer, error) {
	body, err := json.Marshal(buildListQuery())
	if err != nil {
		return nil, apperrors.NewInternalError("encode interviewer query", err)
	}

	size := maxInterviewers
	req := esapi.SearchRequest{
		Index: []string{d.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	start := time.Now()
	res, err := req.Do(ctx, d.client)
	metrics.ExternalCallDuration.WithLabelValues("directory", "Search").Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewTimeoutError("elasticsearch", err)
		}
		return nil, apperrors.NewDirectoryUnavailableError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewDirectoryUnavailableError(fmt.Errorf("search failed: %s", res.Status()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, apperrors.NewInternalError("decode interviewer search", err)
	}

	list := make([]models.Interviewer, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		list = append(list, models.Interviewer{
			ID:       hit.Source.ID,
			FullName: hit.Source.FullName,
			Email:    hit.Source.Email,
		})
	}
	return list, nil
}
