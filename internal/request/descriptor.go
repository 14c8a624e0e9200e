// Package request turns an operation declaration and its arguments into a
// ready-to-send request descriptor. It performs no I/O.
package request

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	errordefs "github.com/RegistryAccord/discovery-go/internal/errors"
	"github.com/RegistryAccord/discovery-go/internal/form"
	"github.com/RegistryAccord/discovery-go/internal/version"
)

// BodyKind says what an operation sends as its request body.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyJSON
	BodyMultipart
)

func (k BodyKind) String() string {
	switch k {
	case BodyJSON:
		return "json"
	case BodyMultipart:
		return "multipart"
	default:
		return "none"
	}
}

// Operation is the static declaration of one service operation.
type Operation struct {
	Name   string
	Method string
	Path   string   // template relative to the API version segment
	Query  []string // declared query parameters, in wire order
	Body   BodyKind
}

// Args are the per-call values of an operation.
type Args struct {
	Path   map[string]string
	Query  map[string]interface{}
	JSON   interface{}  // BodyJSON only
	Fields []form.Field // BodyMultipart only
}

// Target is what every request of a client shares.
type Target struct {
	BaseURL    string
	APIVersion string
	Version    version.Effective
}

// Descriptor is a fully resolved request. It is built fresh for every call
// and must not be modified once handed to a transport.
type Descriptor struct {
	ID        string
	Operation string
	Method    string
	URI       string
	Header    http.Header
	Body      BodyKind
	JSON      json.RawMessage
	Parts     []form.Part
	Epoch     version.Epoch
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Build resolves op with args against t. Errors are *errors.Error values
// attributed to op.Name.
func Build(t Target, op Operation, args Args) (*Descriptor, error) {
	uri, err := BuildURI(t.BaseURL, t.APIVersion, op.Path, args.Path, op.Query, args.Query, t.Version.Date)
	if err != nil {
		return nil, attribute(op.Name, err)
	}

	d := &Descriptor{
		ID:        newID(),
		Operation: op.Name,
		Method:    op.Method,
		URI:       uri,
		Header:    http.Header{"Accept": []string{"application/json"}},
		Body:      op.Body,
		Epoch:     t.Version.Epoch,
	}

	switch op.Body {
	case BodyJSON:
		b, err := json.Marshal(args.JSON)
		if err != nil {
			return nil, errordefs.InvalidParameter(op.Name, "body", err.Error())
		}
		d.JSON = b
		d.Header.Set("Content-Type", "application/json")
	case BodyMultipart:
		parts, err := form.BuildParts(args.Fields)
		if err != nil {
			return nil, fieldError(op.Name, err)
		}
		d.Parts = parts
		d.Header.Set("Content-Type", "multipart/form-data")
	}
	return d, nil
}

func attribute(operation string, err error) error {
	var e *errordefs.Error
	if errors.As(err, &e) {
		return e.WithOperation(operation)
	}
	return err
}

func fieldError(operation string, err error) error {
	var fe *form.FieldError
	if !errors.As(err, &fe) {
		return errordefs.InvalidParameter(operation, "", err.Error())
	}
	if errors.Is(fe.Err, form.ErrMissing) {
		return errordefs.MissingParameter(operation, fe.Field)
	}
	e := errordefs.InvalidParameter(operation, fe.Field, fe.Err.Error())
	e.Err = fe.Err
	return e
}

// PartSummary describes one multipart part without reading it.
type PartSummary struct {
	Name        string          `json:"name"`
	Filename    string          `json:"filename,omitempty"`
	ContentType string          `json:"contentType,omitempty"`
	JSON        json.RawMessage `json:"json,omitempty"`
}

// Summary is a printable view of a descriptor.
type Summary struct {
	ID        string          `json:"id"`
	Operation string          `json:"operation"`
	Method    string          `json:"method"`
	URI       string          `json:"uri"`
	Header    http.Header     `json:"header"`
	Epoch     string          `json:"epoch"`
	JSON      json.RawMessage `json:"json,omitempty"`
	Parts     []PartSummary   `json:"parts,omitempty"`
}

// Summary describes d. Stream contents are never read.
func (d *Descriptor) Summary() Summary {
	s := Summary{
		ID:        d.ID,
		Operation: d.Operation,
		Method:    d.Method,
		URI:       d.URI,
		Header:    d.Header,
		Epoch:     d.Epoch.String(),
		JSON:      d.JSON,
	}
	for _, p := range d.Parts {
		ps := PartSummary{Name: p.Name}
		switch c := p.Content.(type) {
		case form.NamedReader:
			ps.Filename = c.Name()
		case *form.FilePart:
			ps.Filename = c.Options.Filename
			ps.ContentType = c.Options.ContentType
			if b, ok := c.Value.([]byte); ok && c.Options.ContentType == "application/json" {
				ps.JSON = b
			}
		}
		s.Parts = append(s.Parts, ps)
	}
	return s
}
