// Package meilitest provides an in-memory MeiliSearch server for tests.
//
// It implements the subset of the HTTP API used by the meili client: indexes,
// documents, settings, search, tasks, keys, stats, health and version. Write
// operations are applied when they are enqueued; the reported task status can
// be held back for a number of polls to exercise task waiting.
package meilitest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	ServerVersion = "1.5.0"

	defaultSearchKeyDescription = "Default Search API Key: Use it to search from the frontend"
	defaultAdminKeyDescription  = "Default Admin API Key: Use it for anything that is not a search operation"
)

// RecordedRequest is a request the server received.
type RecordedRequest struct {
	Method      string
	Path        string
	Query       string
	ContentType string
	Auth        string
	Body        []byte
}

// Server is a fake MeiliSearch instance backed by httptest.
type Server struct {
	URL string

	httpServer *httptest.Server
	logger     zerolog.Logger
	masterKey  string

	mu        sync.Mutex
	indexes   map[string]*index
	tasks     []*task
	keys      []*key
	requests  []RecordedRequest
	taskPolls int
}

// Option configures a Server.
type Option func(*Server)

// WithMasterKey requires every request to carry a valid bearer key.
func WithMasterKey(masterKey string) Option {
	return func(s *Server) {
		s.masterKey = masterKey
	}
}

// WithTaskPolls makes each task report "enqueued" to the first n polls of
// GET /tasks/{uid}. A negative n keeps tasks pending forever.
func WithTaskPolls(n int) Option {
	return func(s *Server) {
		s.taskPolls = n
	}
}

// New starts a server and registers its shutdown with t.Cleanup.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		logger:  zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.WarnLevel),
		indexes: make(map[string]*index),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.keys = []*key{
		newKey("Default Search API Key", defaultSearchKeyDescription, []string{"search"}, []string{"*"}),
		newKey("Default Admin API Key", defaultAdminKeyDescription, []string{"*"}, []string{"*"}),
	}

	router := mux.NewRouter()
	s.RegisterRoutes(router)
	router.Use(s.recordMiddleware, s.authMiddleware)

	s.httpServer = httptest.NewServer(router)
	s.URL = s.httpServer.URL
	t.Cleanup(s.Close)

	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.httpServer.Close()
}

// RegisterRoutes registers all API routes with the given router.
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", s.health).Methods("GET")
	router.HandleFunc("/version", s.version).Methods("GET")
	router.HandleFunc("/stats", s.stats).Methods("GET")
	router.HandleFunc("/dumps", s.createDump).Methods("POST")

	router.HandleFunc("/indexes", s.listIndexes).Methods("GET")
	router.HandleFunc("/indexes", s.createIndex).Methods("POST")
	router.HandleFunc("/indexes/{uid}", s.getIndex).Methods("GET")
	router.HandleFunc("/indexes/{uid}", s.updateIndex).Methods("PATCH")
	router.HandleFunc("/indexes/{uid}", s.deleteIndex).Methods("DELETE")
	router.HandleFunc("/indexes/{uid}/stats", s.indexStats).Methods("GET")
	router.HandleFunc("/indexes/{uid}/search", s.search).Methods("POST")

	router.HandleFunc("/indexes/{uid}/documents", s.listDocuments).Methods("GET")
	router.HandleFunc("/indexes/{uid}/documents", s.addDocuments).Methods("POST")
	router.HandleFunc("/indexes/{uid}/documents", s.updateDocuments).Methods("PUT")
	router.HandleFunc("/indexes/{uid}/documents", s.deleteAllDocuments).Methods("DELETE")
	router.HandleFunc("/indexes/{uid}/documents/delete-batch", s.deleteDocuments).Methods("POST")
	router.HandleFunc("/indexes/{uid}/documents/{id}", s.getDocument).Methods("GET")
	router.HandleFunc("/indexes/{uid}/documents/{id}", s.deleteDocument).Methods("DELETE")

	router.HandleFunc("/indexes/{uid}/settings", s.getSettings).Methods("GET")
	router.HandleFunc("/indexes/{uid}/settings", s.updateSettings).Methods("PATCH")
	router.HandleFunc("/indexes/{uid}/settings", s.resetSettings).Methods("DELETE")
	router.HandleFunc("/indexes/{uid}/settings/{name}", s.getSetting).Methods("GET")
	router.HandleFunc("/indexes/{uid}/settings/{name}", s.updateSetting).Methods("PUT", "PATCH")
	router.HandleFunc("/indexes/{uid}/settings/{name}", s.resetSetting).Methods("DELETE")

	router.HandleFunc("/tasks", s.listTasks).Methods("GET")
	router.HandleFunc("/tasks/{uid}", s.getTask).Methods("GET")

	router.HandleFunc("/keys", s.listKeys).Methods("GET")
	router.HandleFunc("/keys", s.createKey).Methods("POST")
	router.HandleFunc("/keys/{key}", s.getKey).Methods("GET")
	router.HandleFunc("/keys/{key}", s.updateKey).Methods("PATCH")
	router.HandleFunc("/keys/{key}", s.deleteKey).Methods("DELETE")
}

// Requests returns a copy of every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// RequestsTo returns the recorded requests matching method and path.
func (s *Server) RequestsTo(method, path string) []RecordedRequest {
	var matched []RecordedRequest
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			matched = append(matched, r)
		}
	}
	return matched
}

// SearchKey returns the default search key.
func (s *Server) SearchKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[0].Key
}

// AdminKey returns the default admin key.
func (s *Server) AdminKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[1].Key
}

// DocumentCount returns the number of documents stored in an index.
func (s *Server) DocumentCount(uid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[uid]; ok {
		return len(idx.order)
	}
	return 0
}

func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:      r.Method,
			Path:        r.URL.Path,
			Query:       r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Auth:        r.Header.Get("Authorization"),
			Body:        body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.masterKey == "" || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			s.writeError(w, http.StatusUnauthorized, "missing_authorization_header", "auth",
				"The Authorization header is missing. It must use the bearer authorization method.")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token != s.masterKey && !s.knownKey(token) {
			s.logger.Warn().Str("path", r.URL.Path).Msg("Invalid API key")
			s.writeError(w, http.StatusForbidden, "invalid_api_key", "auth", "The provided API key is invalid.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) knownKey(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.Key == token {
			return true
		}
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "available"})
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"commitSha":  "b46889b5f0f2f8b91438a08a358ba8f05fc09fc1",
		"commitDate": "2023-11-20T10:00:00Z",
		"pkgVersion": ServerVersion,
	})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexes := make(map[string]any, len(s.indexes))
	var lastUpdate *time.Time
	for uid, idx := range s.indexes {
		indexes[uid] = idx.stats()
		if lastUpdate == nil || idx.updatedAt.After(*lastUpdate) {
			updated := idx.updatedAt
			lastUpdate = &updated
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"databaseSize": 4096 * (len(s.indexes) + 1),
		"lastUpdate":   lastUpdate,
		"indexes":      indexes,
	})
}

func (s *Server) createDump(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.enqueue("", "dumpCreation", nil, nil)
	s.writeJSON(w, http.StatusAccepted, t.info())
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError writes a MeiliSearch error object.
func (s *Server) writeError(w http.ResponseWriter, status int, code, errType, message string) {
	s.writeJSON(w, status, map[string]string{
		"message": message,
		"code":    code,
		"type":    errType,
		"link":    "https://docs.meilisearch.com/errors#" + code,
	})
}

func newKey(name, description string, actions, indexes []string) *key {
	now := time.Now().UTC()
	return &key{
		UID:         uuid.New(),
		Key:         strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""),
		Name:        name,
		Description: description,
		Actions:     actions,
		Indexes:     indexes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
