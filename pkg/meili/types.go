package meili

import (
	"time"

	"github.com/google/uuid"
)

// Document is a single MeiliSearch document.
type Document = map[string]any

// IndexInfo is the raw index resource returned by the server.
type IndexInfo struct {
	UID        string    `json:"uid" yaml:"uid"`
	PrimaryKey string    `json:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// IndexStats holds document counts for one index.
type IndexStats struct {
	NumberOfDocuments int64            `json:"numberOfDocuments" yaml:"numberOfDocuments"`
	IsIndexing        bool             `json:"isIndexing" yaml:"isIndexing"`
	FieldDistribution map[string]int64 `json:"fieldDistribution" yaml:"fieldDistribution"`
}

// ClientStats holds stats for every index on the server.
type ClientStats struct {
	DatabaseSize int64                 `json:"databaseSize" yaml:"databaseSize"`
	LastUpdate   *time.Time            `json:"lastUpdate,omitempty" yaml:"lastUpdate,omitempty"`
	Indexes      map[string]IndexStats `json:"indexes" yaml:"indexes"`
}

// Version describes the server build.
type Version struct {
	CommitSha  string `json:"commitSha" yaml:"commitSha"`
	CommitDate string `json:"commitDate" yaml:"commitDate"`
	PkgVersion string `json:"pkgVersion" yaml:"pkgVersion"`
}

// Health is the server health status.
type Health struct {
	Status string `json:"status" yaml:"status"`
}

// DocumentsInfo is a page of documents.
type DocumentsInfo struct {
	Results []Document `json:"results" yaml:"results"`
	Offset  int        `json:"offset" yaml:"offset"`
	Limit   int        `json:"limit" yaml:"limit"`
	Total   int64      `json:"total" yaml:"total"`
}

// SearchRequest holds the optional search parameters. Zero values are omitted
// so the server defaults apply.
type SearchRequest struct {
	Offset                int      `json:"offset,omitempty"`
	Limit                 int      `json:"limit,omitempty"`
	Filter                any      `json:"filter,omitempty"`
	Facets                []string `json:"facets,omitempty"`
	AttributesToRetrieve  []string `json:"attributesToRetrieve,omitempty"`
	AttributesToCrop      []string `json:"attributesToCrop,omitempty"`
	CropLength            int      `json:"cropLength,omitempty"`
	AttributesToHighlight []string `json:"attributesToHighlight,omitempty"`
	Sort                  []string `json:"sort,omitempty"`
	ShowMatchesPosition   bool     `json:"showMatchesPosition,omitempty"`
	HighlightPreTag       string   `json:"highlightPreTag,omitempty"`
	HighlightPostTag      string   `json:"highlightPostTag,omitempty"`
	CropMarker            string   `json:"cropMarker,omitempty"`
	MatchingStrategy      string   `json:"matchingStrategy,omitempty"`
}

// SearchResults is the search response.
type SearchResults struct {
	Hits               []Document                  `json:"hits" yaml:"hits"`
	Offset             int                         `json:"offset" yaml:"offset"`
	Limit              int                         `json:"limit" yaml:"limit"`
	EstimatedTotalHits int64                       `json:"estimatedTotalHits" yaml:"estimatedTotalHits"`
	ProcessingTimeMs   int64                       `json:"processingTimeMs" yaml:"processingTimeMs"`
	Query              string                      `json:"query" yaml:"query"`
	FacetDistribution  map[string]map[string]int64 `json:"facetDistribution,omitempty" yaml:"facetDistribution,omitempty"`
}

// TypoTolerance settings.
type TypoTolerance struct {
	Enabled             *bool                `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	MinWordSizeForTypos *MinWordSizeForTypos `json:"minWordSizeForTypos,omitempty" yaml:"minWordSizeForTypos,omitempty"`
	DisableOnWords      []string             `json:"disableOnWords,omitzero" yaml:"disableOnWords,omitempty"`
	DisableOnAttributes []string             `json:"disableOnAttributes,omitzero" yaml:"disableOnAttributes,omitempty"`
}

// MinWordSizeForTypos controls how long a word must be before typos are accepted.
type MinWordSizeForTypos struct {
	OneTypo  int `json:"oneTypo,omitempty" yaml:"oneTypo,omitempty"`
	TwoTypos int `json:"twoTypos,omitempty" yaml:"twoTypos,omitempty"`
}

// Faceting settings.
type Faceting struct {
	MaxValuesPerFacet int `json:"maxValuesPerFacet" yaml:"maxValuesPerFacet"`
}

// Settings is the full settings object of an index. Nil fields are left
// untouched on update; an empty non-nil list or map clears the setting.
type Settings struct {
	RankingRules         []string            `json:"rankingRules,omitzero" yaml:"rankingRules,omitempty"`
	DistinctAttribute    *string             `json:"distinctAttribute,omitempty" yaml:"distinctAttribute,omitempty"`
	SearchableAttributes []string            `json:"searchableAttributes,omitzero" yaml:"searchableAttributes,omitempty"`
	DisplayedAttributes  []string            `json:"displayedAttributes,omitzero" yaml:"displayedAttributes,omitempty"`
	StopWords            []string            `json:"stopWords,omitzero" yaml:"stopWords,omitempty"`
	Synonyms             map[string][]string `json:"synonyms,omitzero" yaml:"synonyms,omitempty"`
	FilterableAttributes []string            `json:"filterableAttributes,omitzero" yaml:"filterableAttributes,omitempty"`
	SortableAttributes   []string            `json:"sortableAttributes,omitzero" yaml:"sortableAttributes,omitempty"`
	TypoTolerance        *TypoTolerance      `json:"typoTolerance,omitempty" yaml:"typoTolerance,omitempty"`
	Faceting             *Faceting           `json:"faceting,omitempty" yaml:"faceting,omitempty"`
}

// Key is an API key.
type Key struct {
	UID         uuid.UUID  `json:"uid" yaml:"uid"`
	Key         string     `json:"key" yaml:"key"`
	Name        string     `json:"name,omitempty" yaml:"name,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Actions     []string   `json:"actions" yaml:"actions"`
	Indexes     []string   `json:"indexes" yaml:"indexes"`
	ExpiresAt   *time.Time `json:"expiresAt" yaml:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// KeyCreate is the payload for creating a key. ExpiresAt should be in UTC.
type KeyCreate struct {
	UID         *uuid.UUID `json:"uid,omitempty"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Actions     []string   `json:"actions"`
	Indexes     []string   `json:"indexes"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// KeyUpdate is the payload for updating a key. Key may be the key value or its UID.
type KeyUpdate struct {
	Key         string `json:"-"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// KeysResults is a page of keys.
type KeysResults struct {
	Results []Key `json:"results"`
	Offset  int   `json:"offset"`
	Limit   int   `json:"limit"`
	Total   int   `json:"total"`
}
