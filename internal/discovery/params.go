package discovery

import (
	"encoding/json"

	errordefs "github.com/RegistryAccord/discovery-go/internal/errors"
	"github.com/RegistryAccord/discovery-go/internal/form"
	"github.com/RegistryAccord/discovery-go/internal/request"
)

// Request is implemented by the params type of every operation.
type Request interface {
	Operation() OperationID
	args() (request.Args, error)
}

// Int returns a pointer to v, for optional numeric parameters.
func Int(v int) *int { return &v }

// Bool returns a pointer to v, for optional boolean parameters.
func Bool(v bool) *bool { return &v }

func envPath(env string) map[string]string {
	return map[string]string{"environment_id": env}
}

func collectionPath(env, col string) map[string]string {
	return map[string]string{"environment_id": env, "collection_id": col}
}

func configurationPath(env, conf string) map[string]string {
	return map[string]string{"environment_id": env, "configuration_id": conf}
}

func documentPath(env, col, doc string) map[string]string {
	return map[string]string{"environment_id": env, "collection_id": col, "document_id": doc}
}

func nameQuery(name string) map[string]interface{} {
	if name == "" {
		return nil
	}
	return map[string]interface{}{paramName: name}
}

// metadataValue accepts a structured value, or JSON text as string or bytes.
func metadataValue(v interface{}) interface{} {
	switch m := v.(type) {
	case string:
		if m == "" {
			return nil
		}
		return json.RawMessage(m)
	case []byte:
		if len(m) == 0 {
			return nil
		}
		return json.RawMessage(m)
	case json.RawMessage:
		if len(m) == 0 {
			return nil
		}
	}
	return v
}

// Environments

type GetEnvironmentsParams struct {
	Name string
}

func (GetEnvironmentsParams) Operation() OperationID { return GetEnvironments }

func (p GetEnvironmentsParams) args() (request.Args, error) {
	return request.Args{Query: nameQuery(p.Name)}, nil
}

// CreateEnvironmentParams creates an environment. Name is required. Size
// defaults to 1 when nil; Int(0) requests size 0.
type CreateEnvironmentParams struct {
	Name        string
	Description string
	Size        *int
}

func (CreateEnvironmentParams) Operation() OperationID { return CreateEnvironment }

type environmentBody struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Size        int    `json:"size"`
}

func (p CreateEnvironmentParams) args() (request.Args, error) {
	if p.Name == "" {
		return request.Args{}, errordefs.MissingParameter(CreateEnvironment.String(), "name")
	}
	size := 1
	if p.Size != nil {
		size = *p.Size
	}
	return request.Args{Fields: []form.Field{{
		Name:     "body",
		Role:     form.RoleJSON,
		Value:    environmentBody{Name: p.Name, Description: p.Description, Size: size},
		Required: true,
	}}}, nil
}

type UpdateEnvironmentParams struct {
	EnvironmentID string `json:"-"`
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
}

func (UpdateEnvironmentParams) Operation() OperationID { return UpdateEnvironment }

func (p UpdateEnvironmentParams) args() (request.Args, error) {
	return request.Args{Path: envPath(p.EnvironmentID), JSON: p}, nil
}

type GetEnvironmentParams struct {
	EnvironmentID string
}

func (GetEnvironmentParams) Operation() OperationID { return GetEnvironment }

func (p GetEnvironmentParams) args() (request.Args, error) {
	return request.Args{Path: envPath(p.EnvironmentID)}, nil
}

type DeleteEnvironmentParams struct {
	EnvironmentID string
}

func (DeleteEnvironmentParams) Operation() OperationID { return DeleteEnvironment }

func (p DeleteEnvironmentParams) args() (request.Args, error) {
	return request.Args{Path: envPath(p.EnvironmentID)}, nil
}

// Collections

// CreateCollectionParams creates a collection. Name is required.
type CreateCollectionParams struct {
	EnvironmentID   string `json:"-"`
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	ConfigurationID string `json:"configuration_id,omitempty"`
	Language        string `json:"language,omitempty"`
}

func (CreateCollectionParams) Operation() OperationID { return CreateCollection }

func (p CreateCollectionParams) args() (request.Args, error) {
	if p.Name == "" {
		return request.Args{}, errordefs.MissingParameter(CreateCollection.String(), "name")
	}
	return request.Args{Path: envPath(p.EnvironmentID), JSON: p}, nil
}

type GetCollectionsParams struct {
	EnvironmentID string
	Name          string
}

func (GetCollectionsParams) Operation() OperationID { return GetCollections }

func (p GetCollectionsParams) args() (request.Args, error) {
	return request.Args{Path: envPath(p.EnvironmentID), Query: nameQuery(p.Name)}, nil
}

type GetCollectionParams struct {
	EnvironmentID string
	CollectionID  string
}

func (GetCollectionParams) Operation() OperationID { return GetCollection }

func (p GetCollectionParams) args() (request.Args, error) {
	return request.Args{Path: collectionPath(p.EnvironmentID, p.CollectionID)}, nil
}

// UpdateCollectionParams replaces a collection's settings. Every body field
// is optional.
type UpdateCollectionParams struct {
	EnvironmentID   string `json:"-"`
	CollectionID    string `json:"-"`
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	ConfigurationID string `json:"configuration_id,omitempty"`
	Language        string `json:"language,omitempty"`
}

func (UpdateCollectionParams) Operation() OperationID { return UpdateCollection }

func (p UpdateCollectionParams) args() (request.Args, error) {
	return request.Args{Path: collectionPath(p.EnvironmentID, p.CollectionID), JSON: p}, nil
}

type GetCollectionFieldsParams struct {
	EnvironmentID string
	CollectionID  string
}

func (GetCollectionFieldsParams) Operation() OperationID { return GetCollectionFields }

func (p GetCollectionFieldsParams) args() (request.Args, error) {
	return request.Args{Path: collectionPath(p.EnvironmentID, p.CollectionID)}, nil
}

type DeleteCollectionParams struct {
	EnvironmentID string
	CollectionID  string
}

func (DeleteCollectionParams) Operation() OperationID { return DeleteCollection }

func (p DeleteCollectionParams) args() (request.Args, error) {
	return request.Args{Path: collectionPath(p.EnvironmentID, p.CollectionID)}, nil
}

// Configurations

type GetConfigurationsParams struct {
	EnvironmentID string
	Name          string
}

func (GetConfigurationsParams) Operation() OperationID { return GetConfigurations }

func (p GetConfigurationsParams) args() (request.Args, error) {
	return request.Args{Path: envPath(p.EnvironmentID), Query: nameQuery(p.Name)}, nil
}

type GetConfigurationParams struct {
	EnvironmentID   string
	ConfigurationID string
}

func (GetConfigurationParams) Operation() OperationID { return GetConfiguration }

func (p GetConfigurationParams) args() (request.Args, error) {
	return request.Args{Path: configurationPath(p.EnvironmentID, p.ConfigurationID)}, nil
}

// CreateConfigurationParams uploads a configuration document. File accepts
// anything form.Normalize does.
type CreateConfigurationParams struct {
	EnvironmentID string
	File          interface{}
}

func (CreateConfigurationParams) Operation() OperationID { return CreateConfiguration }

func (p CreateConfigurationParams) args() (request.Args, error) {
	return request.Args{
		Path:   envPath(p.EnvironmentID),
		Fields: []form.Field{{Name: "file", Role: form.RoleFile, Value: p.File, Required: true}},
	}, nil
}

type UpdateConfigurationParams struct {
	EnvironmentID   string
	ConfigurationID string
	File            interface{}
}

func (UpdateConfigurationParams) Operation() OperationID { return UpdateConfiguration }

func (p UpdateConfigurationParams) args() (request.Args, error) {
	return request.Args{
		Path:   configurationPath(p.EnvironmentID, p.ConfigurationID),
		Fields: []form.Field{{Name: "file", Role: form.RoleFile, Value: p.File, Required: true}},
	}, nil
}

type DeleteConfigurationParams struct {
	EnvironmentID   string
	ConfigurationID string
}

func (DeleteConfigurationParams) Operation() OperationID { return DeleteConfiguration }

func (p DeleteConfigurationParams) args() (request.Args, error) {
	return request.Args{Path: configurationPath(p.EnvironmentID, p.ConfigurationID)}, nil
}

// Documents

// AddDocumentParams uploads a document. Metadata is optional and may be any
// JSON-marshalable value, or JSON text as a string or []byte.
type AddDocumentParams struct {
	EnvironmentID string
	CollectionID  string
	File          interface{}
	Metadata      interface{}
}

func (AddDocumentParams) Operation() OperationID { return AddDocument }

func (p AddDocumentParams) args() (request.Args, error) {
	return request.Args{
		Path:   collectionPath(p.EnvironmentID, p.CollectionID),
		Fields: documentFields(p.File, p.Metadata),
	}, nil
}

type GetDocumentParams struct {
	EnvironmentID string
	CollectionID  string
	DocumentID    string
}

func (GetDocumentParams) Operation() OperationID { return GetDocument }

func (p GetDocumentParams) args() (request.Args, error) {
	return request.Args{Path: documentPath(p.EnvironmentID, p.CollectionID, p.DocumentID)}, nil
}

type UpdateDocumentParams struct {
	EnvironmentID string
	CollectionID  string
	DocumentID    string
	File          interface{}
	Metadata      interface{}
}

func (UpdateDocumentParams) Operation() OperationID { return UpdateDocument }

func (p UpdateDocumentParams) args() (request.Args, error) {
	return request.Args{
		Path:   documentPath(p.EnvironmentID, p.CollectionID, p.DocumentID),
		Fields: documentFields(p.File, p.Metadata),
	}, nil
}

func documentFields(file, metadata interface{}) []form.Field {
	return []form.Field{
		{Name: "file", Role: form.RoleFile, Value: file, Required: true},
		{Name: "metadata", Role: form.RoleJSON, Value: metadataValue(metadata)},
	}
}

type DeleteDocumentParams struct {
	EnvironmentID string
	CollectionID  string
	DocumentID    string
}

func (DeleteDocumentParams) Operation() OperationID { return DeleteDocument }

func (p DeleteDocumentParams) args() (request.Args, error) {
	return request.Args{Path: documentPath(p.EnvironmentID, p.CollectionID, p.DocumentID)}, nil
}

// Query

// QueryParams searches a collection. Zero values are left out of the
// request; list values are sent comma-joined.
type QueryParams struct {
	EnvironmentID        string
	CollectionID         string
	NaturalLanguageQuery string
	Query                string
	Filter               string
	Aggregation          string
	Count                *int
	Return               []string
	Offset               *int
	Sort                 []string
	Passages             *bool
	PassagesFields       []string
	PassagesCount        *int
	PassagesCharacters   *int
	Highlight            *bool
	Deduplicate          *bool
}

func (QueryParams) Operation() OperationID { return Query }

func (p QueryParams) args() (request.Args, error) {
	return request.Args{
		Path: collectionPath(p.EnvironmentID, p.CollectionID),
		Query: map[string]interface{}{
			paramNaturalLanguageQuery: p.NaturalLanguageQuery,
			paramQuery:                p.Query,
			paramFilter:               p.Filter,
			paramAggregation:          p.Aggregation,
			paramCount:                p.Count,
			paramReturn:               p.Return,
			paramOffset:               p.Offset,
			paramSort:                 p.Sort,
			paramPassages:             p.Passages,
			paramPassagesFields:       p.PassagesFields,
			paramPassagesCount:        p.PassagesCount,
			paramPassagesCharacters:   p.PassagesCharacters,
			paramHighlight:            p.Highlight,
			paramDeduplicate:          p.Deduplicate,
		},
	}, nil
}
