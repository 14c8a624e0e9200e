package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RegistryAccord/discovery-go/internal/discovery"
	"github.com/RegistryAccord/discovery-go/internal/request"
)

// params are the key=value arguments of a call.
type params map[string]string

func parseParams(args []string) (params, error) {
	p := params{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q is not key=value", arg)
		}
		if _, dup := p[k]; dup {
			return nil, fmt.Errorf("parameter %q given twice", k)
		}
		p[k] = v
	}
	return p, nil
}

// take removes and returns key, so leftovers can be reported.
func (p params) take(key string) string {
	v := p[key]
	delete(p, key)
	return v
}

func (p params) intVal(key string) (*int, error) {
	raw := p.take(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %q is not an integer", key, raw)
	}
	return &n, nil
}

func (p params) boolVal(key string) (*bool, error) {
	raw := p.take(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %q is not a boolean", key, raw)
	}
	return &b, nil
}

func (p params) list(key string) []string {
	raw := p.take(key)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// buildRequest maps wire-named parameters onto the typed params of id.
// Unknown keys are an error.
func buildRequest(id discovery.OperationID, p params, file interface{}, metadata string) (discovery.Request, error) {
	op, ok := discovery.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("unknown operation %d", id)
	}
	path := map[string]string{}
	for _, name := range request.Placeholders(op.Path) {
		path[name] = p.take(name)
	}
	env, col := path["environment_id"], path["collection_id"]
	conf, doc := path["configuration_id"], path["document_id"]

	var (
		req discovery.Request
		err error
	)
	switch id {
	case discovery.GetEnvironments:
		req = discovery.GetEnvironmentsParams{Name: p.take("name")}
	case discovery.CreateEnvironment:
		r := discovery.CreateEnvironmentParams{Name: p.take("name"), Description: p.take("description")}
		r.Size, err = p.intVal("size")
		req = r
	case discovery.UpdateEnvironment:
		req = discovery.UpdateEnvironmentParams{EnvironmentID: env, Name: p.take("name"), Description: p.take("description")}
	case discovery.GetEnvironment:
		req = discovery.GetEnvironmentParams{EnvironmentID: env}
	case discovery.DeleteEnvironment:
		req = discovery.DeleteEnvironmentParams{EnvironmentID: env}
	case discovery.CreateCollection:
		req = discovery.CreateCollectionParams{
			EnvironmentID:   env,
			Name:            p.take("name"),
			Description:     p.take("description"),
			ConfigurationID: p.take("configuration_id"),
			Language:        p.take("language"),
		}
	case discovery.GetCollections:
		req = discovery.GetCollectionsParams{EnvironmentID: env, Name: p.take("name")}
	case discovery.GetCollection:
		req = discovery.GetCollectionParams{EnvironmentID: env, CollectionID: col}
	case discovery.UpdateCollection:
		req = discovery.UpdateCollectionParams{
			EnvironmentID:   env,
			CollectionID:    col,
			Name:            p.take("name"),
			Description:     p.take("description"),
			ConfigurationID: p.take("configuration_id"),
			Language:        p.take("language"),
		}
	case discovery.GetCollectionFields:
		req = discovery.GetCollectionFieldsParams{EnvironmentID: env, CollectionID: col}
	case discovery.DeleteCollection:
		req = discovery.DeleteCollectionParams{EnvironmentID: env, CollectionID: col}
	case discovery.GetConfigurations:
		req = discovery.GetConfigurationsParams{EnvironmentID: env, Name: p.take("name")}
	case discovery.GetConfiguration:
		req = discovery.GetConfigurationParams{EnvironmentID: env, ConfigurationID: conf}
	case discovery.CreateConfiguration:
		req = discovery.CreateConfigurationParams{EnvironmentID: env, File: file}
	case discovery.UpdateConfiguration:
		req = discovery.UpdateConfigurationParams{EnvironmentID: env, ConfigurationID: conf, File: file}
	case discovery.DeleteConfiguration:
		req = discovery.DeleteConfigurationParams{EnvironmentID: env, ConfigurationID: conf}
	case discovery.AddDocument:
		req = discovery.AddDocumentParams{EnvironmentID: env, CollectionID: col, File: file, Metadata: metadataArg(metadata)}
	case discovery.GetDocument:
		req = discovery.GetDocumentParams{EnvironmentID: env, CollectionID: col, DocumentID: doc}
	case discovery.UpdateDocument:
		req = discovery.UpdateDocumentParams{EnvironmentID: env, CollectionID: col, DocumentID: doc, File: file, Metadata: metadataArg(metadata)}
	case discovery.DeleteDocument:
		req = discovery.DeleteDocumentParams{EnvironmentID: env, CollectionID: col, DocumentID: doc}
	case discovery.Query:
		req, err = queryRequest(env, col, p)
	}
	if err != nil {
		return nil, err
	}
	for k := range p {
		return nil, fmt.Errorf("%s does not take parameter %q", id, k)
	}
	return req, nil
}

func queryRequest(env, col string, p params) (discovery.Request, error) {
	q := discovery.QueryParams{
		EnvironmentID:        env,
		CollectionID:         col,
		NaturalLanguageQuery: p.take("natural_language_query"),
		Query:                p.take("query"),
		Filter:               p.take("filter"),
		Aggregation:          p.take("aggregation"),
		Return:               p.list("return"),
		Sort:                 p.list("sort"),
		PassagesFields:       p.list("passages.fields"),
	}
	var err error
	ints := []struct {
		key string
		dst **int
	}{
		{"count", &q.Count},
		{"offset", &q.Offset},
		{"passages.count", &q.PassagesCount},
		{"passages.characters", &q.PassagesCharacters},
	}
	for _, f := range ints {
		if *f.dst, err = p.intVal(f.key); err != nil {
			return nil, err
		}
	}
	bools := []struct {
		key string
		dst **bool
	}{
		{"passages", &q.Passages},
		{"highlight", &q.Highlight},
		{"deduplicate", &q.Deduplicate},
	}
	for _, f := range bools {
		if *f.dst, err = p.boolVal(f.key); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// metadataArg keeps an empty flag absent.
func metadataArg(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
