package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RegistryAccord/discovery-go/internal/discovery"
	"github.com/RegistryAccord/discovery-go/internal/model"
)

type state struct {
	environments map[string]*environment
}

type environment struct {
	model.Environment
	collections    map[string]*collection
	configurations map[string]*model.Configuration
}

type collection struct {
	model.Collection
	documents map[string]*document
}

type document struct {
	model.DocumentStatus
	text string
}

func newState() *state {
	return &state{environments: map[string]*environment{}}
}

func notFound(kind string) error {
	return errorf(http.StatusNotFound, "%s not found", kind)
}

func (s *state) environment(id string) (*environment, error) {
	env, ok := s.environments[id]
	if !ok {
		return nil, notFound("Environment")
	}
	return env, nil
}

func (s *state) collection(envID, colID string) (*collection, error) {
	env, err := s.environment(envID)
	if err != nil {
		return nil, err
	}
	col, ok := env.collections[colID]
	if !ok {
		return nil, notFound("Collection")
	}
	return col, nil
}

// dispatch runs the operation against the stored state and writes the response.
func (m *Mux) dispatch(w http.ResponseWriter, r *http.Request, id discovery.OperationID, in Received) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	now := time.Now().UTC()
	envID := r.PathValue("environment_id")
	colID := r.PathValue("collection_id")

	switch id {
	case discovery.GetEnvironments:
		out := []model.Environment{}
		for _, env := range s.environments {
			if matchName(in, env.Name) {
				out = append(out, env.Environment)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
		writeJSON(w, http.StatusOK, map[string]interface{}{"environments": out})

	case discovery.CreateEnvironment:
		body, ok := in.Part("body")
		if !ok {
			return errorf(http.StatusBadRequest, "Missing body part")
		}
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Size        int    `json:"size"`
		}
		if err := json.Unmarshal(body.Data, &req); err != nil {
			return errorf(http.StatusBadRequest, "Invalid body part: %v", err)
		}
		env := &environment{
			Environment: model.Environment{
				EnvironmentID: uuid.New().String(),
				Name:          req.Name,
				Description:   req.Description,
				Size:          req.Size,
				Created:       now,
				Updated:       now,
			},
			collections:    map[string]*collection{},
			configurations: map[string]*model.Configuration{},
		}
		s.environments[env.EnvironmentID] = env
		writeJSON(w, http.StatusCreated, env.Environment)

	case discovery.UpdateEnvironment:
		env, err := s.environment(envID)
		if err != nil {
			return err
		}
		var req struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		_ = json.Unmarshal(in.JSON, &req)
		if req.Name != nil {
			env.Name = *req.Name
		}
		if req.Description != nil {
			env.Description = *req.Description
		}
		env.Updated = now
		writeJSON(w, http.StatusOK, env.Environment)

	case discovery.GetEnvironment:
		env, err := s.environment(envID)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, env.Environment)

	case discovery.DeleteEnvironment:
		if _, err := s.environment(envID); err != nil {
			return err
		}
		delete(s.environments, envID)
		writeJSON(w, http.StatusOK, model.DeleteResult{ID: envID, Status: "deleted"})

	case discovery.CreateCollection:
		env, err := s.environment(envID)
		if err != nil {
			return err
		}
		col := &collection{documents: map[string]*document{}}
		if err := json.Unmarshal(in.JSON, &col.Collection); err != nil {
			return errorf(http.StatusBadRequest, "Invalid body: %v", err)
		}
		if col.ConfigurationID != "" {
			if _, ok := env.configurations[col.ConfigurationID]; !ok {
				return notFound("Configuration")
			}
		}
		col.CollectionID = uuid.New().String()
		col.Created, col.Updated = now, now
		env.collections[col.CollectionID] = col
		writeJSON(w, http.StatusCreated, col.Collection)

	case discovery.GetCollections:
		env, err := s.environment(envID)
		if err != nil {
			return err
		}
		out := []model.Collection{}
		for _, col := range env.collections {
			if matchName(in, col.Name) {
				out = append(out, col.Collection)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
		writeJSON(w, http.StatusOK, map[string]interface{}{"collections": out})

	case discovery.GetCollection:
		col, err := s.collection(envID, colID)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, col.Collection)

	case discovery.UpdateCollection:
		col, err := s.collection(envID, colID)
		if err != nil {
			return err
		}
		var req struct {
			Name            *string `json:"name"`
			Description     *string `json:"description"`
			ConfigurationID *string `json:"configuration_id"`
			Language        *string `json:"language"`
		}
		_ = json.Unmarshal(in.JSON, &req)
		for dst, src := range map[*string]*string{
			&col.Name:            req.Name,
			&col.Description:     req.Description,
			&col.ConfigurationID: req.ConfigurationID,
			&col.Language:        req.Language,
		} {
			if src != nil {
				*dst = *src
			}
		}
		col.Updated = now
		writeJSON(w, http.StatusOK, col.Collection)

	case discovery.GetCollectionFields:
		col, err := s.collection(envID, colID)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"fields": col.fields()})

	case discovery.DeleteCollection:
		env, err := s.environment(envID)
		if err != nil {
			return err
		}
		if _, ok := env.collections[colID]; !ok {
			return notFound("Collection")
		}
		delete(env.collections, colID)
		writeJSON(w, http.StatusOK, model.DeleteResult{ID: colID, Status: "deleted"})

	case discovery.GetConfigurations:
		env, err := s.environment(envID)
		if err != nil {
			return err
		}
		out := []model.Configuration{}
		for _, conf := range env.configurations {
			if matchName(in, conf.Name) {
				out = append(out, *conf)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
		writeJSON(w, http.StatusOK, map[string]interface{}{"configurations": out})

	case discovery.GetConfiguration:
		env, err := s.environment(envID)
		if err != nil {
			return err
		}
		conf, ok := env.configurations[r.PathValue("configuration_id")]
		if !ok {
			return notFound("Configuration")
		}
		writeJSON(w, http.StatusOK, conf)

	case discovery.CreateConfiguration, discovery.UpdateConfiguration:
		env, err := s.environment(envID)
		if err != nil {
			return err
		}
		conf := &model.Configuration{ConfigurationID: uuid.New().String(), Created: now}
		if id == discovery.UpdateConfiguration {
			existing, ok := env.configurations[r.PathValue("configuration_id")]
			if !ok {
				return notFound("Configuration")
			}
			conf = existing
		}
		file, ok := in.Part("file")
		if !ok {
			return errorf(http.StatusBadRequest, "Missing file part")
		}
		var doc struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(file.Data, &doc); err != nil {
			return errorf(http.StatusBadRequest, "Configuration file is not valid JSON: %v", err)
		}
		conf.Name, conf.Description = doc.Name, doc.Description
		if conf.Name == "" {
			conf.Name = file.Filename
		}
		conf.Raw = append(json.RawMessage(nil), file.Data...)
		conf.Updated = now
		env.configurations[conf.ConfigurationID] = conf
		status := http.StatusOK
		if id == discovery.CreateConfiguration {
			status = http.StatusCreated
		}
		writeJSON(w, status, conf)

	case discovery.DeleteConfiguration:
		env, err := s.environment(envID)
		if err != nil {
			return err
		}
		confID := r.PathValue("configuration_id")
		if _, ok := env.configurations[confID]; !ok {
			return notFound("Configuration")
		}
		delete(env.configurations, confID)
		writeJSON(w, http.StatusOK, model.DeleteResult{ID: confID, Status: "deleted"})

	case discovery.AddDocument, discovery.UpdateDocument:
		col, err := s.collection(envID, colID)
		if err != nil {
			return err
		}
		doc := &document{DocumentStatus: model.DocumentStatus{DocumentID: uuid.New().String()}}
		if id == discovery.UpdateDocument {
			existing, ok := col.documents[r.PathValue("document_id")]
			if !ok {
				return notFound("Document")
			}
			doc = existing
		}
		if err := doc.load(in); err != nil {
			return err
		}
		col.documents[doc.DocumentID] = doc
		writeJSON(w, http.StatusAccepted, model.DocumentAccepted{DocumentID: doc.DocumentID, Status: "processing"})

	case discovery.GetDocument:
		col, err := s.collection(envID, colID)
		if err != nil {
			return err
		}
		doc, ok := col.documents[r.PathValue("document_id")]
		if !ok {
			return notFound("Document")
		}
		writeJSON(w, http.StatusOK, doc.DocumentStatus)

	case discovery.DeleteDocument:
		col, err := s.collection(envID, colID)
		if err != nil {
			return err
		}
		docID := r.PathValue("document_id")
		if _, ok := col.documents[docID]; !ok {
			return notFound("Document")
		}
		delete(col.documents, docID)
		writeJSON(w, http.StatusOK, model.DeleteResult{ID: docID, Status: "deleted"})

	case discovery.Query:
		col, err := s.collection(envID, colID)
		if err != nil {
			return err
		}
		resp, err := col.query(in.Query)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		return errorf(http.StatusNotImplemented, "%s is not implemented", id)
	}
	return nil
}

func matchName(in Received, name string) bool {
	want := in.Query.Get("name")
	return want == "" || want == name
}

// load replaces the document content from the file and metadata parts.
func (d *document) load(in Received) error {
	file, ok := in.Part("file")
	if !ok {
		return errorf(http.StatusBadRequest, "Missing file part")
	}
	d.Filename = file.Filename
	d.FileType = file.ContentType
	d.text = string(file.Data)
	d.Status = "available"
	d.Metadata = nil
	if meta, ok := in.Part("metadata"); ok {
		if err := json.Unmarshal(meta.Data, &d.Metadata); err != nil {
			return errorf(http.StatusBadRequest, "Invalid metadata part: %v", err)
		}
	}
	return nil
}

// fields lists the metadata fields seen across the collection's documents.
func (c *collection) fields() []model.Field {
	types := map[string]string{}
	for _, doc := range c.documents {
		for k, v := range doc.Metadata {
			types[k] = jsonType(v)
		}
	}
	out := make([]model.Field, 0, len(types)+1)
	out = append(out, model.Field{Field: "text", Type: "string"})
	for k, t := range types {
		out = append(out, model.Field{Field: "metadata." + k, Type: t})
	}
	meta := out[1:]
	sort.Slice(meta, func(i, j int) bool { return meta[i].Field < meta[j].Field })
	return out
}

func jsonType(v interface{}) string {
	switch v.(type) {
	case float64:
		return "double"
	case bool:
		return "boolean"
	case map[string]interface{}:
		return "nested"
	case []interface{}:
		return "array"
	default:
		return "string"
	}
}

// query does a case-insensitive substring match of the query text against
// document text, then applies offset, count and passages.
func (c *collection) query(params map[string][]string) (*model.QueryResponse, error) {
	get := func(k string) string {
		if v := params[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	intParam := func(k string, def int) (int, error) {
		raw := get(k)
		if raw == "" {
			return def, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, errorf(http.StatusBadRequest, "Invalid %s %q", k, raw)
		}
		return n, nil
	}

	count, err := intParam("count", 10)
	if err != nil {
		return nil, err
	}
	offset, err := intParam("offset", 0)
	if err != nil {
		return nil, err
	}
	chars, err := intParam("passages.characters", 400)
	if err != nil {
		return nil, err
	}
	passageCount, err := intParam("passages.count", 10)
	if err != nil {
		return nil, err
	}

	term := strings.ToLower(get("natural_language_query"))
	if term == "" {
		term = strings.ToLower(get("query"))
	}

	var matched []*document
	for _, doc := range c.documents {
		if term == "" || strings.Contains(strings.ToLower(doc.text), term) {
			matched = append(matched, doc)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].DocumentID < matched[j].DocumentID })

	resp := &model.QueryResponse{MatchingResults: len(matched), Results: []map[string]interface{}{}}
	if offset > len(matched) {
		offset = len(matched)
	}
	page := matched[offset:]
	if count < len(page) {
		page = page[:count]
	}
	for _, doc := range page {
		result := map[string]interface{}{"id": doc.DocumentID, "text": doc.text}
		if doc.Metadata != nil {
			result["metadata"] = doc.Metadata
		}
		resp.Results = append(resp.Results, result)

		if get("passages") == "true" && len(resp.Passages) < passageCount {
			text := doc.text
			if len(text) > chars {
				text = text[:chars]
			}
			resp.Passages = append(resp.Passages, model.Passage{DocumentID: doc.DocumentID, PassageScore: 1, PassageText: text})
		}
	}
	return resp, nil
}
