package discovery

import (
	"net/http"
	"sort"

	"github.com/RegistryAccord/discovery-go/internal/request"
)

// OperationID enumerates the operations of the service.
type OperationID int

const (
	GetEnvironments OperationID = iota + 1
	CreateEnvironment
	UpdateEnvironment
	GetEnvironment
	DeleteEnvironment
	CreateCollection
	GetCollections
	GetCollection
	UpdateCollection
	GetCollectionFields
	DeleteCollection
	GetConfigurations
	GetConfiguration
	CreateConfiguration
	UpdateConfiguration
	DeleteConfiguration
	AddDocument
	GetDocument
	UpdateDocument
	DeleteDocument
	Query
)

// Path templates, relative to the API version segment.
const (
	pathEnvironments   = "/environments"
	pathEnvironment    = pathEnvironments + "/{environment_id}"
	pathCollections    = pathEnvironment + "/collections"
	pathCollection     = pathCollections + "/{collection_id}"
	pathConfigurations = pathEnvironment + "/configurations"
	pathConfiguration  = pathConfigurations + "/{configuration_id}"
	pathDocuments      = pathCollection + "/documents"
	pathDocument       = pathDocuments + "/{document_id}"
)

// Query parameter names.
const (
	paramName                 = "name"
	paramNaturalLanguageQuery = "natural_language_query"
	paramQuery                = "query"
	paramFilter               = "filter"
	paramAggregation          = "aggregation"
	paramCount                = "count"
	paramReturn               = "return"
	paramOffset               = "offset"
	paramSort                 = "sort"
	paramPassages             = "passages"
	paramPassagesFields       = "passages.fields"
	paramPassagesCount        = "passages.count"
	paramPassagesCharacters   = "passages.characters"
	paramHighlight            = "highlight"
	paramDeduplicate          = "deduplicate"
)

var queryParams = []string{
	paramNaturalLanguageQuery,
	paramQuery,
	paramFilter,
	paramAggregation,
	paramCount,
	paramReturn,
	paramOffset,
	paramSort,
	paramPassages,
	paramPassagesFields,
	paramPassagesCount,
	paramPassagesCharacters,
	paramHighlight,
	paramDeduplicate,
}

var catalog = map[OperationID]request.Operation{
	GetEnvironments:     {Name: "getEnvironments", Method: http.MethodGet, Path: pathEnvironments, Query: []string{paramName}},
	CreateEnvironment:   {Name: "createEnvironment", Method: http.MethodPost, Path: pathEnvironments, Body: request.BodyMultipart},
	UpdateEnvironment:   {Name: "updateEnvironment", Method: http.MethodPut, Path: pathEnvironment, Body: request.BodyJSON},
	GetEnvironment:      {Name: "getEnvironment", Method: http.MethodGet, Path: pathEnvironment},
	DeleteEnvironment:   {Name: "deleteEnvironment", Method: http.MethodDelete, Path: pathEnvironment},
	CreateCollection:    {Name: "createCollection", Method: http.MethodPost, Path: pathCollections, Body: request.BodyJSON},
	GetCollections:      {Name: "getCollections", Method: http.MethodGet, Path: pathCollections, Query: []string{paramName}},
	GetCollection:       {Name: "getCollection", Method: http.MethodGet, Path: pathCollection},
	UpdateCollection:    {Name: "updateCollection", Method: http.MethodPut, Path: pathCollection, Body: request.BodyJSON},
	GetCollectionFields: {Name: "getCollectionFields", Method: http.MethodGet, Path: pathCollection + "/fields"},
	DeleteCollection:    {Name: "deleteCollection", Method: http.MethodDelete, Path: pathCollection},
	GetConfigurations:   {Name: "getConfigurations", Method: http.MethodGet, Path: pathConfigurations, Query: []string{paramName}},
	GetConfiguration:    {Name: "getConfiguration", Method: http.MethodGet, Path: pathConfiguration},
	CreateConfiguration: {Name: "createConfiguration", Method: http.MethodPost, Path: pathConfigurations, Body: request.BodyMultipart},
	UpdateConfiguration: {Name: "updateConfiguration", Method: http.MethodPut, Path: pathConfiguration, Body: request.BodyMultipart},
	DeleteConfiguration: {Name: "deleteConfiguration", Method: http.MethodDelete, Path: pathConfiguration},
	AddDocument:         {Name: "addDocument", Method: http.MethodPost, Path: pathDocuments, Body: request.BodyMultipart},
	GetDocument:         {Name: "getDocument", Method: http.MethodGet, Path: pathDocument},
	UpdateDocument:      {Name: "updateDocument", Method: http.MethodPost, Path: pathDocument, Body: request.BodyMultipart},
	DeleteDocument:      {Name: "deleteDocument", Method: http.MethodDelete, Path: pathDocument},
	Query:               {Name: "query", Method: http.MethodGet, Path: pathCollection + "/query", Query: queryParams},
}

// String returns the operation name used on the wire, in logs and metrics.
func (id OperationID) String() string {
	if op, ok := catalog[id]; ok {
		return op.Name
	}
	return "unknown"
}

// Lookup returns the declaration of id.
func Lookup(id OperationID) (request.Operation, bool) {
	op, ok := catalog[id]
	if !ok {
		return request.Operation{}, false
	}
	op.Query = append([]string(nil), op.Query...)
	return op, true
}

// ParseOperation resolves an operation by its wire name.
func ParseOperation(name string) (OperationID, bool) {
	for id, op := range catalog {
		if op.Name == name {
			return id, true
		}
	}
	return 0, false
}

// Operations lists every operation in declaration order.
func Operations() []OperationID {
	ids := make([]OperationID, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
