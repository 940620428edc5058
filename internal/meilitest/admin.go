package meilitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Settings

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[uid]
	if !ok {
		s.indexNotFound(w, uid)
		return
	}
	s.writeJSON(w, http.StatusOK, idx.settings)
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	var update map[string]any
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.badRequest(w, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.enqueue(uid, taskSettingsUpdate, update, func() *taskError {
		idx := s.indexOrCreate(uid)
		for field := range update {
			if _, known := idx.settings[field]; !known {
				return newTaskError("bad_request", fmt.Sprintf("Unknown setting `%s`.", field))
			}
		}
		for field, value := range update {
			idx.settings[field] = mergeSetting(idx.settings[field], value)
		}
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}

func (s *Server) resetSettings(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.enqueue(uid, taskSettingsUpdate, nil, func() *taskError {
		idx, ok := s.indexes[uid]
		if !ok {
			return newTaskError("index_not_found", fmt.Sprintf("Index `%s` not found.", uid))
		}
		idx.settings = defaultSettings()
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}

func (s *Server) getSetting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	field := settingField(vars["name"])

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.indexes[vars["uid"]]
	if !ok {
		s.indexNotFound(w, vars["uid"])
		return
	}
	value, ok := idx.settings[field]
	if !ok {
		s.writeError(w, http.StatusNotFound, "not_found", "invalid_request", "Resource not found.")
		return
	}
	s.writeJSON(w, http.StatusOK, value)
}

func (s *Server) updateSetting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	uid := vars["uid"]
	field := settingField(vars["name"])

	var value any
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		s.badRequest(w, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := defaultSettings()[field]; !known {
		s.writeError(w, http.StatusNotFound, "not_found", "invalid_request", "Resource not found.")
		return
	}

	t := s.enqueue(uid, taskSettingsUpdate, map[string]any{field: value}, func() *taskError {
		idx := s.indexOrCreate(uid)
		if r.Method == http.MethodPatch {
			idx.settings[field] = mergeSetting(idx.settings[field], value)
		} else {
			idx.settings[field] = value
		}
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}

func (s *Server) resetSetting(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	uid := vars["uid"]
	field := settingField(vars["name"])

	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := defaultSettings()
	if _, known := defaults[field]; !known {
		s.writeError(w, http.StatusNotFound, "not_found", "invalid_request", "Resource not found.")
		return
	}

	t := s.enqueue(uid, taskSettingsUpdate, nil, func() *taskError {
		idx, ok := s.indexes[uid]
		if !ok {
			return newTaskError("index_not_found", fmt.Sprintf("Index `%s` not found.", uid))
		}
		idx.settings[field] = defaults[field]
		return nil
	})
	s.writeJSON(w, http.StatusAccepted, t.info())
}

// indexOrCreate returns the index, creating it the way settings updates do on
// a real server. Callers hold s.mu.
func (s *Server) indexOrCreate(uid string) *index {
	idx, ok := s.indexes[uid]
	if !ok {
		idx = newIndex(uid, "")
		s.indexes[uid] = idx
	}
	return idx
}

// Tasks

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseInt(mux.Vars(r)["uid"], 10, 64)
	if err != nil {
		s.badRequest(w, "invalid_task_uid", "Task uid must be an integer.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if uid < 0 || uid >= int64(len(s.tasks)) {
		s.writeError(w, http.StatusNotFound, "task_not_found", "invalid_request",
			fmt.Sprintf("Task `%d` not found.", uid))
		return
	}

	t := s.tasks[uid]
	view := t.view()
	if t.pollsLeft > 0 {
		t.pollsLeft--
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultPageLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}
	indexUIDs := splitList(q.Get("indexUids"))
	statuses := splitList(q.Get("statuses"))
	types := splitList(q.Get("types"))

	s.mu.Lock()
	defer s.mu.Unlock()

	from := int64(len(s.tasks) - 1)
	if v, err := strconv.ParseInt(q.Get("from"), 10, 64); err == nil && v < from {
		from = v
	}

	results := []map[string]any{}
	var next any
	for uid := from; uid >= 0; uid-- {
		t := s.tasks[uid]
		if !matchesFilter(indexUIDs, t.indexUID) || !matchesFilter(statuses, t.currentStatus()) || !matchesFilter(types, t.taskType) {
			continue
		}
		if len(results) == limit {
			next = t.uid
			break
		}
		results = append(results, t.view())
	}

	var fromValue any
	if len(results) > 0 {
		fromValue = results[0]["uid"]
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"limit":   limit,
		"from":    fromValue,
		"next":    next,
	})
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

func matchesFilter(allowed []string, value string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, "*") || slices.Contains(allowed, value)
}

// Keys

func (s *Server) listKeys(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	start, end := window(len(s.keys), offset, limit)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"results": s.keys[start:end],
		"offset":  offset,
		"limit":   limit,
		"total":   len(s.keys),
	})
}

func (s *Server) createKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID         *uuid.UUID `json:"uid"`
		Name        string     `json:"name"`
		Description string     `json:"description"`
		Actions     []string   `json:"actions"`
		Indexes     []string   `json:"indexes"`
		ExpiresAt   *time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "bad_request", err.Error())
		return
	}
	if req.Actions == nil {
		s.badRequest(w, "missing_api_key_actions", "The `actions` field is mandatory.")
		return
	}
	if req.Indexes == nil {
		s.badRequest(w, "missing_api_key_indexes", "The `indexes` field is mandatory.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := newKey(req.Name, req.Description, req.Actions, req.Indexes)
	k.ExpiresAt = req.ExpiresAt
	if req.UID != nil {
		if _, existing := s.findKey(req.UID.String()); existing != nil {
			s.writeError(w, http.StatusConflict, "api_key_already_exists", "invalid_request",
				fmt.Sprintf("`uid` field value `%s` is already an existing API key.", req.UID))
			return
		}
		k.UID = *req.UID
	}
	s.keys = append(s.keys, k)
	s.writeJSON(w, http.StatusCreated, k)
}

func (s *Server) getKey(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["key"]

	s.mu.Lock()
	defer s.mu.Unlock()

	_, k := s.findKey(ref)
	if k == nil {
		s.keyNotFound(w, ref)
		return
	}
	s.writeJSON(w, http.StatusOK, k)
}

func (s *Server) updateKey(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["key"]
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "bad_request", err.Error())
		return
	}
	for field := range req {
		if field != "name" && field != "description" {
			s.badRequest(w, "immutable_api_key_"+field, fmt.Sprintf("The `%s` field cannot be modified.", field))
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, k := s.findKey(ref)
	if k == nil {
		s.keyNotFound(w, ref)
		return
	}
	if name, ok := req["name"].(string); ok {
		k.Name = name
	}
	if description, ok := req["description"].(string); ok {
		k.Description = description
	}
	k.UpdatedAt = time.Now().UTC()
	s.writeJSON(w, http.StatusOK, k)
}

func (s *Server) deleteKey(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["key"]

	s.mu.Lock()
	defer s.mu.Unlock()

	i, k := s.findKey(ref)
	if k == nil {
		s.keyNotFound(w, ref)
		return
	}
	s.keys = slices.Delete(s.keys, i, i+1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) keyNotFound(w http.ResponseWriter, ref string) {
	s.writeError(w, http.StatusNotFound, "api_key_not_found", "invalid_request",
		fmt.Sprintf("API key `%s` not found.", ref))
}
