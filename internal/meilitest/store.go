package meilitest

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task types reported by the server.
const (
	taskIndexCreation  = "indexCreation"
	taskIndexUpdate    = "indexUpdate"
	taskIndexDeletion  = "indexDeletion"
	taskDocumentUpsert = "documentAdditionOrUpdate"
	taskDocumentDelete = "documentDeletion"
	taskSettingsUpdate = "settingsUpdate"
)

type taskError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
	Link    string `json:"link"`
}

func newTaskError(code, message string) *taskError {
	return &taskError{
		Message: message,
		Code:    code,
		Type:    "invalid_request",
		Link:    "https://docs.meilisearch.com/errors#" + code,
	}
}

type task struct {
	uid        int64
	indexUID   string
	taskType   string
	status     string
	details    map[string]any
	err        *taskError
	enqueuedAt time.Time
	finishedAt time.Time
	pollsLeft  int
}

func (t *task) pending() bool {
	return t.pollsLeft != 0
}

func (t *task) currentStatus() string {
	if t.pending() {
		return "enqueued"
	}
	return t.status
}

func (t *task) info() map[string]any {
	return map[string]any{
		"taskUid":    t.uid,
		"indexUid":   nilIfEmpty(t.indexUID),
		"status":     "enqueued",
		"type":       t.taskType,
		"enqueuedAt": t.enqueuedAt,
	}
}

func (t *task) view() map[string]any {
	v := map[string]any{
		"uid":        t.uid,
		"indexUid":   nilIfEmpty(t.indexUID),
		"status":     t.currentStatus(),
		"type":       t.taskType,
		"details":    t.details,
		"enqueuedAt": t.enqueuedAt,
	}
	if !t.pending() {
		v["startedAt"] = t.enqueuedAt
		v["finishedAt"] = t.finishedAt
		v["duration"] = "PT0.001S"
		if t.err != nil {
			v["error"] = t.err
		}
	}
	return v
}

// enqueue records a task. apply runs immediately; a non-nil taskError marks the
// task as failed and the change is expected to have been skipped. Callers hold s.mu.
func (s *Server) enqueue(indexUID, taskType string, details map[string]any, apply func() *taskError) *task {
	now := time.Now().UTC()
	t := &task{
		uid:        int64(len(s.tasks)),
		indexUID:   indexUID,
		taskType:   taskType,
		status:     "succeeded",
		details:    details,
		enqueuedAt: now,
		finishedAt: now,
		pollsLeft:  s.taskPolls,
	}
	if apply != nil {
		if terr := apply(); terr != nil {
			t.status = "failed"
			t.err = terr
		}
	}
	s.tasks = append(s.tasks, t)
	return t
}

type index struct {
	uid        string
	primaryKey string
	createdAt  time.Time
	updatedAt  time.Time
	documents  map[string]map[string]any
	order      []string
	settings   map[string]any
}

func newIndex(uid, primaryKey string) *index {
	now := time.Now().UTC()
	return &index{
		uid:        uid,
		primaryKey: primaryKey,
		createdAt:  now,
		updatedAt:  now,
		documents:  make(map[string]map[string]any),
		settings:   defaultSettings(),
	}
}

func (idx *index) info() map[string]any {
	return map[string]any{
		"uid":        idx.uid,
		"primaryKey": nilIfEmpty(idx.primaryKey),
		"createdAt":  idx.createdAt,
		"updatedAt":  idx.updatedAt,
	}
}

func (idx *index) stats() map[string]any {
	distribution := make(map[string]int)
	for _, doc := range idx.documents {
		for field := range doc {
			distribution[field]++
		}
	}
	return map[string]any{
		"numberOfDocuments": len(idx.order),
		"isIndexing":        false,
		"fieldDistribution": distribution,
	}
}

// upsert writes documents. With merge set, fields of existing documents are
// kept unless overwritten.
func (idx *index) upsert(documents []map[string]any, primaryKey string, merge bool) *taskError {
	if idx.primaryKey == "" {
		pk := primaryKey
		if pk == "" && len(documents) > 0 {
			pk = inferPrimaryKey(documents[0])
		}
		if pk == "" {
			return newTaskError("index_primary_key_no_candidate_found",
				"The primary key inference failed as the engine did not find any field ending with `id` in its name.")
		}
		idx.primaryKey = pk
	}

	ids := make([]string, len(documents))
	for i, doc := range documents {
		value, ok := doc[idx.primaryKey]
		if !ok {
			return newTaskError("missing_document_id",
				fmt.Sprintf("Document doesn't have a `%s` attribute.", idx.primaryKey))
		}
		ids[i] = documentID(value)
	}

	for i, doc := range documents {
		id := ids[i]
		existing, ok := idx.documents[id]
		if !ok {
			idx.order = append(idx.order, id)
			existing = make(map[string]any)
		}
		if !merge {
			existing = make(map[string]any, len(doc))
		}
		maps.Copy(existing, doc)
		idx.documents[id] = existing
	}
	idx.updatedAt = time.Now().UTC()
	return nil
}

func (idx *index) remove(ids []string) int {
	removed := 0
	for _, id := range ids {
		if _, ok := idx.documents[id]; !ok {
			continue
		}
		delete(idx.documents, id)
		removed++
	}
	if removed > 0 {
		kept := idx.order[:0]
		for _, id := range idx.order {
			if _, ok := idx.documents[id]; ok {
				kept = append(kept, id)
			}
		}
		idx.order = kept
		idx.updatedAt = time.Now().UTC()
	}
	return removed
}

func (idx *index) clear() int {
	n := len(idx.order)
	idx.documents = make(map[string]map[string]any)
	idx.order = nil
	idx.updatedAt = time.Now().UTC()
	return n
}

func inferPrimaryKey(doc map[string]any) string {
	fields := make([]string, 0, len(doc))
	for field := range doc {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if strings.HasSuffix(strings.ToLower(field), "id") {
			return field
		}
	}
	return ""
}

func documentID(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprint(v)
	}
}

func defaultSettings() map[string]any {
	return map[string]any{
		"rankingRules":         []any{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		"distinctAttribute":    nil,
		"searchableAttributes": []any{"*"},
		"displayedAttributes":  []any{"*"},
		"stopWords":            []any{},
		"synonyms":             map[string]any{},
		"filterableAttributes": []any{},
		"sortableAttributes":   []any{},
		"typoTolerance": map[string]any{
			"enabled": true,
			"minWordSizeForTypos": map[string]any{
				"oneTypo":  5,
				"twoTypos": 9,
			},
			"disableOnWords":      []any{},
			"disableOnAttributes": []any{},
		},
		"faceting": map[string]any{
			"maxValuesPerFacet": 100,
		},
		"pagination": map[string]any{
			"maxTotalHits": 1000,
		},
		"dictionary":         []any{},
		"separatorTokens":    []any{},
		"nonSeparatorTokens": []any{},
		"proximityPrecision": "byWord",
	}
}

// settingField maps a settings route name such as "ranking-rules" to its
// field name in the settings object.
func settingField(name string) string {
	parts := strings.Split(name, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// mergeSetting applies a partial update. Nested objects are merged one level deep.
func mergeSetting(current, update any) any {
	cur, ok1 := current.(map[string]any)
	upd, ok2 := update.(map[string]any)
	if !ok1 || !ok2 {
		return update
	}
	merged := maps.Clone(cur)
	for k, v := range upd {
		merged[k] = mergeSetting(merged[k], v)
	}
	return merged
}

type key struct {
	UID         uuid.UUID  `json:"uid"`
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Actions     []string   `json:"actions"`
	Indexes     []string   `json:"indexes"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (s *Server) findKey(ref string) (int, *key) {
	for i, k := range s.keys {
		if k.Key == ref || k.UID.String() == ref {
			return i, k
		}
	}
	return -1, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
