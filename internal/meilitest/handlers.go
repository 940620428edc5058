package meilitest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

const defaultPageLimit = 20

// page reads offset and limit query parameters.
func page(r *http.Request) (offset, limit int) {
	limit = defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v >= 0 {
		limit = v
	}
	return offset, limit
}

func window(total, offset, limit int) (start, end int) {
	start = min(offset, total)
	end = min(start+limit, total)
	return start, end
}

func (s *Server) indexNotFound(w http.ResponseWriter, uid string) {
	s.writeError(w, http.StatusNotFound, "index_not_found", "invalid_request",
		fmt.Sprintf("Index `%s` not found.", uid))
}

func (s *Server) badRequest(w http.ResponseWriter, code, message string) {
	s.writeError(w, http.StatusBadRequest, code, "invalid_request", message)
}

// Indexes

func (s *Server) listIndexes(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	uids := make([]string, 0, len(s.indexes))
	for uid := range s.indexes {
		uids = append(uids, uid)
	}
	sort.Strings(uids)

	start, end := window(len(uids), offset, limit)
	results := make([]map[string]any, 0, end-start)
	for _, uid := range uids[start:end] {
		results = append(results, s.indexes[uid].info())
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"offset":  offset,
		"limit":   limit,
		"total":   len(uids),
	})
}

func (s *Server) createIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID        string `json:"uid"`
		PrimaryKey string `json:"primaryKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "bad_request", err.Error())
		return
	}
	if req.UID == "" {
		s.badRequest(w, "missing_index_uid", "The `uid` field is required.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.enqueue(req.UID, taskIndexCreation, map[string]any{"primaryKey": nilIfEmpty(req.PrimaryKey)}, func() *taskError {
		if _, ok := s.indexes[req.UID]; ok {
			return newTaskError("index_already_exists", fmt.Sprintf("Index `%s` already exists.", req.UID))
		}
		s.indexes[req.UID] = newIndex(req.UID, req.PrimaryKey)
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}

func (s *Server) getIndex(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[uid]
	if !ok {
		s.indexNotFound(w, uid)
		return
	}
	s.writeJSON(w, http.StatusOK, idx.info())
}

func (s *Server) updateIndex(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	var req struct {
		PrimaryKey string `json:"primaryKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.enqueue(uid, taskIndexUpdate, map[string]any{"primaryKey": req.PrimaryKey}, func() *taskError {
		idx, ok := s.indexes[uid]
		if !ok {
			return newTaskError("index_not_found", fmt.Sprintf("Index `%s` not found.", uid))
		}
		if idx.primaryKey != "" && len(idx.order) > 0 && idx.primaryKey != req.PrimaryKey {
			return newTaskError("index_primary_key_already_exists", "Index already has a primary key.")
		}
		idx.primaryKey = req.PrimaryKey
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}

func (s *Server) deleteIndex(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.enqueue(uid, taskIndexDeletion, nil, func() *taskError {
		if _, ok := s.indexes[uid]; !ok {
			return newTaskError("index_not_found", fmt.Sprintf("Index `%s` not found.", uid))
		}
		delete(s.indexes, uid)
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}

func (s *Server) indexStats(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[uid]
	if !ok {
		s.indexNotFound(w, uid)
		return
	}
	s.writeJSON(w, http.StatusOK, idx.stats())
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	var req struct {
		Query                string   `json:"q"`
		Offset               *int     `json:"offset"`
		Limit                *int     `json:"limit"`
		AttributesToRetrieve []string `json:"attributesToRetrieve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "bad_request", err.Error())
		return
	}
	offset, limit := 0, defaultPageLimit
	if req.Offset != nil {
		offset = *req.Offset
	}
	if req.Limit != nil {
		limit = *req.Limit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[uid]
	if !ok {
		s.indexNotFound(w, uid)
		return
	}

	var matches []map[string]any
	query := strings.ToLower(req.Query)
	for _, id := range idx.order {
		doc := idx.documents[id]
		if query == "" || matchesQuery(doc, query) {
			matches = append(matches, selectFields(doc, req.AttributesToRetrieve))
		}
	}

	start, end := window(len(matches), offset, limit)
	hits := make([]map[string]any, 0, end-start)
	hits = append(hits, matches[start:end]...)

	s.writeJSON(w, http.StatusOK, map[string]any{
		"hits":               hits,
		"query":              req.Query,
		"offset":             offset,
		"limit":              limit,
		"estimatedTotalHits": len(matches),
		"processingTimeMs":   0,
	})
}

func matchesQuery(doc map[string]any, query string) bool {
	for _, value := range doc {
		if str, ok := value.(string); ok && strings.Contains(strings.ToLower(str), query) {
			return true
		}
	}
	return false
}

func selectFields(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 || (len(fields) == 1 && fields[0] == "*") {
		return doc
	}
	selected := make(map[string]any, len(fields))
	for _, field := range fields {
		if v, ok := doc[field]; ok {
			selected[field] = v
		}
	}
	return selected
}

// Documents

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	offset, limit := page(r)
	var fields []string
	if f := r.URL.Query().Get("fields"); f != "" {
		fields = strings.Split(f, ",")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[uid]
	if !ok {
		s.indexNotFound(w, uid)
		return
	}

	start, end := window(len(idx.order), offset, limit)
	results := make([]map[string]any, 0, end-start)
	for _, id := range idx.order[start:end] {
		results = append(results, selectFields(idx.documents[id], fields))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"offset":  offset,
		"limit":   limit,
		"total":   len(idx.order),
	})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[vars["uid"]]
	if !ok {
		s.indexNotFound(w, vars["uid"])
		return
	}
	doc, ok := idx.documents[vars["id"]]
	if !ok {
		s.writeError(w, http.StatusNotFound, "document_not_found", "invalid_request",
			fmt.Sprintf("Document `%s` not found.", vars["id"]))
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) addDocuments(w http.ResponseWriter, r *http.Request) {
	s.writeDocuments(w, r, false)
}

func (s *Server) updateDocuments(w http.ResponseWriter, r *http.Request) {
	s.writeDocuments(w, r, true)
}

func (s *Server) writeDocuments(w http.ResponseWriter, r *http.Request, merge bool) {
	uid := mux.Vars(r)["uid"]
	primaryKey := r.URL.Query().Get("primaryKey")

	documents, err := decodePayload(r)
	if err != nil {
		s.badRequest(w, "malformed_payload", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	details := map[string]any{"receivedDocuments": len(documents)}
	t := s.enqueue(uid, taskDocumentUpsert, details, func() *taskError {
		idx, ok := s.indexes[uid]
		if !ok {
			idx = newIndex(uid, "")
			s.indexes[uid] = idx
		}
		if terr := idx.upsert(documents, primaryKey, merge); terr != nil {
			return terr
		}
		details["indexedDocuments"] = len(documents)
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}

// decodePayload parses a documents body according to its content type.
func decodePayload(r *http.Request) ([]map[string]any, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json", "":
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var documents []map[string]any
		if err := dec.Decode(&documents); err != nil {
			return nil, fmt.Errorf("the json payload provided is malformed: %w", err)
		}
		return documents, nil

	case "application/x-ndjson":
		var documents []map[string]any
		scanner := bufio.NewScanner(bytes.NewReader(body))
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			dec := json.NewDecoder(bytes.NewReader(line))
			dec.UseNumber()
			var doc map[string]any
			if err := dec.Decode(&doc); err != nil {
				return nil, fmt.Errorf("the ndjson payload provided is malformed: %w", err)
			}
			documents = append(documents, doc)
		}
		return documents, scanner.Err()

	case "text/csv":
		records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
		if err != nil {
			return nil, fmt.Errorf("the csv payload provided is malformed: %w", err)
		}
		if len(records) == 0 {
			return nil, nil
		}
		documents := make([]map[string]any, 0, len(records)-1)
		for _, record := range records[1:] {
			doc := make(map[string]any, len(records[0]))
			for i, field := range records[0] {
				doc[field] = record[i]
			}
			documents = append(documents, doc)
		}
		return documents, nil

	default:
		return nil, fmt.Errorf("the Content-Type `%s` is invalid", mediaType)
	}
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.removeDocuments(w, vars["uid"], []string{vars["id"]})
}

func (s *Server) deleteDocuments(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		s.badRequest(w, "malformed_payload", err.Error())
		return
	}

	ids := make([]string, len(raw))
	for i, v := range raw {
		ids[i] = documentID(v)
	}
	s.removeDocuments(w, mux.Vars(r)["uid"], ids)
}

func (s *Server) removeDocuments(w http.ResponseWriter, uid string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	details := map[string]any{"providedIds": len(ids)}
	t := s.enqueue(uid, taskDocumentDelete, details, func() *taskError {
		idx, ok := s.indexes[uid]
		if !ok {
			return newTaskError("index_not_found", fmt.Sprintf("Index `%s` not found.", uid))
		}
		details["deletedDocuments"] = idx.remove(ids)
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}

func (s *Server) deleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	details := map[string]any{}
	t := s.enqueue(uid, taskDocumentDelete, details, func() *taskError {
		idx, ok := s.indexes[uid]
		if !ok {
			return newTaskError("index_not_found", fmt.Sprintf("Index `%s` not found.", uid))
		}
		details["deletedDocuments"] = idx.clear()
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}
