// Package discovery is the public surface of the Discovery client: one typed
// method per service operation, each producing a request descriptor and
// starting its exchange.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	errordefs "github.com/RegistryAccord/discovery-go/internal/errors"
	"github.com/RegistryAccord/discovery-go/internal/form"
	"github.com/RegistryAccord/discovery-go/internal/metrics"
	"github.com/RegistryAccord/discovery-go/internal/request"
	"github.com/RegistryAccord/discovery-go/internal/schema"
	"github.com/RegistryAccord/discovery-go/internal/transport"
	"github.com/RegistryAccord/discovery-go/internal/version"
)

// DefaultAPIVersion is the path segment used when Config.APIVersion is empty.
const DefaultAPIVersion = "v1"

// Config is the immutable service configuration of a client.
type Config struct {
	Username    string
	Password    string
	URL         string // absolute, scheme://host[:port][/prefix]
	APIVersion  string
	VersionDate string
}

// Client builds requests for the Discovery service and hands them to a
// transport. It is safe for concurrent use.
type Client struct {
	cfg       Config
	target    request.Target
	transport transport.Transport
	validator *schema.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records build failures on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New validates cfg, negotiates its version date and returns a client that
// sends through t. A nil t yields a client that can only describe requests.
func New(cfg Config, t transport.Transport, opts ...Option) (*Client, error) {
	eff, err := version.Negotiate(cfg.VersionDate)
	if err != nil {
		return nil, err
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errordefs.Configuration("service URL %q must be an absolute http(s) URL", cfg.URL)
	}

	v, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		target:    request.Target{BaseURL: cfg.URL, APIVersion: cfg.APIVersion, Version: eff},
		transport: t,
		validator: v,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if eff.Epoch == version.EpochUnknown {
		c.logger.Warn("version date does not match a known epoch", "versionDate", eff.Date, "supported", version.Supported())
	}
	return c, nil
}

// Config returns the client's configuration.
func (c *Client) Config() Config { return c.cfg }

// Version returns the negotiated version.
func (c *Client) Version() version.Effective { return c.target.Version }

// Describe builds the descriptor for req without sending it.
func (c *Client) Describe(req Request) (*request.Descriptor, error) {
	op, ok := catalog[req.Operation()]
	if !ok {
		return nil, errordefs.InvalidParameter("", "operation", "unknown operation")
	}
	d, err := c.describe(op, req)
	if err != nil {
		c.buildFailed(op.Name, err)
		return nil, err
	}
	c.logger.Debug("request described",
		"id", d.ID,
		"operation", d.Operation,
		"method", d.Method,
		"uri", d.URI,
		"epoch", d.Epoch.String(),
	)
	return d, nil
}

func (c *Client) describe(op request.Operation, req Request) (*request.Descriptor, error) {
	args, err := req.args()
	if err != nil {
		return nil, err
	}
	d, err := request.Build(c.target, op, args)
	if err != nil {
		return nil, err
	}

	switch op.Body {
	case request.BodyJSON:
		if err := c.validator.Validate(schema.Key(op.Name, ""), d.JSON); err != nil {
			return nil, err
		}
	case request.BodyMultipart:
		for _, p := range d.Parts {
			fp, ok := p.Content.(*form.FilePart)
			if !ok || fp.Options.ContentType != "application/json" {
				continue
			}
			b, ok := fp.Value.([]byte)
			if !ok {
				continue
			}
			if err := c.validator.Validate(schema.Key(op.Name, p.Name), b); err != nil {
				return nil, err
			}
		}
	}
	return d, nil
}

func (c *Client) buildFailed(operation string, err error) {
	code := "unknown"
	var e *errordefs.Error
	if errors.As(err, &e) {
		code = string(e.Code)
	}
	c.logger.Debug("request rejected", "operation", operation, "error", err)
	if c.metrics != nil {
		c.metrics.BuildFailureTotal.WithLabelValues(operation, code).Inc()
	}
}

// Send starts the exchange for d. cb is invoked exactly once.
func (c *Client) Send(ctx context.Context, d *request.Descriptor, cb transport.Callback) {
	if cb == nil {
		cb = func(*transport.Response, error) {}
	}
	if c.transport == nil {
		cb(nil, errordefs.Configuration("no transport configured").WithOperation(d.Operation))
		return
	}
	c.transport.Send(ctx, d, cb)
}

// Do describes req and starts its exchange. The descriptor is returned
// synchronously. When req cannot be described, cb receives the error before
// Do returns, Do returns nil and nothing is sent.
func (c *Client) Do(ctx context.Context, req Request, cb transport.Callback) *request.Descriptor {
	d, err := c.Describe(req)
	if err != nil {
		if cb != nil {
			cb(nil, err)
		}
		return nil
	}
	c.Send(ctx, d, cb)
	return d
}

// Environments

func (c *Client) GetEnvironments(ctx context.Context, p GetEnvironmentsParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

// CreateEnvironment creates an environment. The body is sent as a single
// JSON part named "body".
func (c *Client) CreateEnvironment(ctx context.Context, p CreateEnvironmentParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) UpdateEnvironment(ctx context.Context, p UpdateEnvironmentParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) GetEnvironment(ctx context.Context, p GetEnvironmentParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) DeleteEnvironment(ctx context.Context, p DeleteEnvironmentParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

// Collections

func (c *Client) CreateCollection(ctx context.Context, p CreateCollectionParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) GetCollections(ctx context.Context, p GetCollectionsParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) GetCollection(ctx context.Context, p GetCollectionParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) UpdateCollection(ctx context.Context, p UpdateCollectionParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) GetCollectionFields(ctx context.Context, p GetCollectionFieldsParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) DeleteCollection(ctx context.Context, p DeleteCollectionParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

// Configurations

func (c *Client) GetConfigurations(ctx context.Context, p GetConfigurationsParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) GetConfiguration(ctx context.Context, p GetConfigurationParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) CreateConfiguration(ctx context.Context, p CreateConfigurationParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) UpdateConfiguration(ctx context.Context, p UpdateConfigurationParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) DeleteConfiguration(ctx context.Context, p DeleteConfigurationParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

// Documents

func (c *Client) AddDocument(ctx context.Context, p AddDocumentParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) GetDocument(ctx context.Context, p GetDocumentParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) UpdateDocument(ctx context.Context, p UpdateDocumentParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

func (c *Client) DeleteDocument(ctx context.Context, p DeleteDocumentParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}

// Query searches a collection.
func (c *Client) Query(ctx context.Context, p QueryParams, cb transport.Callback) *request.Descriptor {
	return c.Do(ctx, p, cb)
}
