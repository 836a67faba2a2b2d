// Package search keeps approved entries in an Elasticsearch index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/pubflow/internal/htmlx"
	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
	"github.com/elastic/go-elasticsearch/v8"
)

const DefaultIndex = "pubflow-entries"

// Document is the indexed representation of an entry.
type Document struct {
	EntryID          string    `json:"entry_id"`
	ScopeID          string    `json:"scope_id"`
	OwnerID          string    `json:"owner_id"`
	OwnerName        string    `json:"owner_name"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Content          string    `json:"content"`
	URLTitle         string    `json:"url_title"`
	Status           string    `json:"status"`
	StatusByUserName string    `json:"status_by_user_name"`
	DisplayDate      time.Time `json:"display_date"`
	ModifiedAt       time.Time `json:"modified_at"`
}

// NewDocument converts an entry; the body is indexed as plain text.
func NewDocument(e *models.Entry) Document {
	return Document{
		EntryID:          e.ID,
		ScopeID:          e.ScopeID,
		OwnerID:          e.OwnerID,
		OwnerName:        e.OwnerName,
		Title:            e.Title,
		Description:      e.Description,
		Content:          htmlx.Text(e.Body),
		URLTitle:         e.URLTitle,
		Status:           string(e.Status),
		StatusByUserName: e.StatusByUserName,
		DisplayDate:      e.DisplayDate,
		ModifiedAt:       e.UpdatedAt,
	}
}

type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
	logger logging.Logger
}

// NewElasticClient creates an Elasticsearch client for the given addresses.
func NewElasticClient(addresses []string, username, password string, maxRetries int) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  addresses,
		Username:   username,
		Password:   password,
		MaxRetries: maxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return client, nil
}

func NewElasticIndex(client *elasticsearch.Client, index string, logger logging.Logger) *ElasticIndex {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticIndex{client: client, index: index, logger: logger.With("module", "search")}
}

// Reindex writes the entry document, keyed by entry ID.
func (s *ElasticIndex) Reindex(ctx context.Context, entry *models.Entry) error {
	docBytes, err := json.Marshal(NewDocument(entry))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(docBytes),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(entry.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}
	s.logger.Debug(ctx, "entry indexed", "entry_id", entry.ID)
	return nil
}

// Remove deletes the entry document. A missing document is not an error.
func (s *ElasticIndex) Remove(ctx context.Context, entryID string) error {
	res, err := s.client.Delete(s.index, entryID, s.client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return fmt.Errorf("error deleting document: %s", res.String())
	}
	s.logger.Debug(ctx, "entry removed from index", "entry_id", entryID)
	return nil
}
