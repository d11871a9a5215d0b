package nameindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"mandi-prices/internal/common/errors"
	"mandi-prices/internal/models"
)

// DirectorySource lists markets known to exist, including ones that never
// reported a price. Such markets carry a zero LastSeenDate.
type DirectorySource interface {
	DirectoryMarkets(ctx context.Context) ([]models.NameEntry, error)
}

// ElasticDirectory reads the market master list from an Elasticsearch index
// whose documents look like {"market", "district", "state", "aliases": []}.
type ElasticDirectory struct {
	client     *elasticsearch.Client
	index      string
	maxEntries int
}

func NewElasticDirectory(client *elasticsearch.Client, index string, maxEntries int) *ElasticDirectory {
	if maxEntries <= 0 {
		maxEntries = 5000
	}
	return &ElasticDirectory{client: client, index: index, maxEntries: maxEntries}
}

type directoryDoc struct {
	Market   string   `json:"market"`
	District string   `json:"district"`
	State    string   `json:"state"`
	Aliases  []string `json:"aliases"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source directoryDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (d *ElasticDirectory) DirectoryMarkets(ctx context.Context) ([]models.NameEntry, error) {
	size := d.maxEntries
	req := esapi.SearchRequest{
		Index: []string{d.index},
		Body:  strings.NewReader(`{"query":{"match_all":{}},"sort":[{"state.keyword":"asc"},{"market.keyword":"asc"}]}`),
		Size:  &size,
	}

	res, err := req.Do(ctx, d.client)
	if err != nil {
		return nil, errors.NewDirectoryUnavailableError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewDirectoryUnavailableError(fmt.Errorf("search failed: %s", res.String()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewDirectoryUnavailableError(err)
	}

	entries := make([]models.NameEntry, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := hit.Source
		if strings.TrimSpace(doc.Market) == "" {
			continue
		}
		entries = append(entries, models.NewNameEntry(models.NameKindMarket, doc.Market, doc.District, doc.State, doc.Aliases, time.Time{}))
	}
	return entries, nil
}
