package mcp

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dandye/mcp-security/pkg/config"
	"github.com/dandye/mcp-security/pkg/log"
	"github.com/dandye/mcp-security/pkg/resource"
	"github.com/dandye/mcp-security/pkg/version"
)

const tracerName = "github.com/dandye/mcp-security/pkg/mcp"

// Server implements the Security Operations MCP server.
type Server struct {
	cfg         *config.Config
	server      *mcp.Server
	personas    *PersonaStore
	deps        *Deps
	protocolLog io.Writer
	resources   map[string]resource.Descriptor
	address     string
	toolsets    []Toolset
	mu          sync.RWMutex
}

// ServerOpt configures a [Server].
type ServerOpt func(*Server)

// WithAddress serves streamable HTTP on address instead of stdio.
func WithAddress(address string) ServerOpt {
	return func(s *Server) {
		s.address = address
	}
}

// WithToolsets registers toolsets on the server.
func WithToolsets(toolsets ...Toolset) ServerOpt {
	return func(s *Server) {
		s.toolsets = append(s.toolsets, toolsets...)
	}
}

// WithChronicle sets the Chronicle client factory shared with toolsets.
func WithChronicle(factory ChronicleFactory) ServerOpt {
	return func(s *Server) {
		s.deps.Chronicle = factory
	}
}

// WithTracer sets the tracer used for tool and resource spans.
func WithTracer(tracer trace.Tracer) ServerOpt {
	return func(s *Server) {
		s.deps.Tracer = tracer
	}
}

// WithProtocolLog logs every stdio JSON-RPC message to w.
func WithProtocolLog(w io.Writer) ServerOpt {
	return func(s *Server) {
		s.protocolLog = w
	}
}

// NewServer creates a new MCP server and registers all resources found
// under cfg.
func NewServer(ctx context.Context, cfg *config.Config, opts ...ServerOpt) (*Server, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	s := &Server{
		cfg:       cfg,
		server:    mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		personas:  NewPersonaStore(cfg.DefaultPersona, cfg.Personas),
		resources: map[string]resource.Descriptor{},
		deps: &Deps{
			Tracer: otel.Tracer(tracerName),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerStaticResources()
	s.registerTools()

	for _, ts := range s.toolsets {
		err := ts.Register(s.server, s.deps)
		if err != nil {
			return nil, fmt.Errorf("register toolset %q: %w", ts.Name(), err)
		}

		log.WithContext(ctx).DebugContext(ctx, "registered toolset", slog.String("toolset", ts.Name()))
	}

	err = s.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Server) registerStaticResources() {
	tracer := s.deps.Tracer

	s.server.AddResource(&mcp.Resource{
		URI:         URIGreeting,
		Name:        "greeting",
		Description: "Provides a simple greeting message.",
		MIMEType:    mimeText,
	}, withResourceTracing(tracer, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return textResult(req.Params.URI, mimeText, greeting), nil
	}))

	s.server.AddResource(&mcp.Resource{
		URI:         URIPersonaActive,
		Name:        "persona_active_get",
		Description: "Provides active persona information.",
		MIMEType:    mimeJSON,
	}, withResourceTracing(tracer, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return jsonResult(req.Params.URI, PersonaResult{
			Persona: s.personas.Active(req.Session),
		})
	}))

	s.server.AddResource(&mcp.Resource{
		URI:         URIPersonasAvailable,
		Name:        "personas_available_list",
		Description: "Provides available persona list information.",
		MIMEType:    mimeJSON,
	}, withResourceTracing(tracer, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return jsonResult(req.Params.URI, struct {
			Personas []string `json:"personas"`
		}{
			Personas: s.personas.Personas(),
		})
	}))
}

// registerTools registers the built-in tools with the MCP server.
func (s *Server) registerTools() {
	tracer := s.deps.Tracer

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "set_active_persona",
		Description: "Set the persona used for the rest of this session. Read resource://personas-available-list for the choices.",
		InputSchema: newSetActivePersonaSchema(s.personas.Personas()),
	}, WithTracing(tracer, s.handleSetActivePersona))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_resources",
		Description: "List the persona, runbook, report and documentation files served as resources, optionally filtered by tag.",
	}, WithTracing(tracer, s.handleListResources))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_resource",
		Description: "Get a resource listed by list_resources. You MUST use a uri or name from the list_resources output EXACTLY.",
	}, WithTracing(tracer, s.handleGetResource))
}

// Refresh rescans the configured files and directories, registering new or
// changed resources and removing those that disappeared.
func (s *Server) Refresh(ctx context.Context) error {
	found, err := s.collect(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := []string{}
	for uri := range s.resources {
		if _, ok := found[uri]; !ok {
			removed = append(removed, uri)
		}
	}

	if len(removed) > 0 {
		s.server.RemoveResources(removed...)

		for _, uri := range removed {
			delete(s.resources, uri)
		}
	}

	added := 0
	for uri, d := range found {
		if old, ok := s.resources[uri]; ok && sameDescriptor(old, d) {
			continue
		}

		s.server.AddResource(newResource(d), withResourceTracing(s.deps.Tracer, readFile(d)))
		s.resources[uri] = d
		added++
	}

	log.WithContext(ctx).InfoContext(ctx, "refreshed resources",
		slog.Int("total", len(s.resources)),
		slog.Int("added", added),
		slog.Int("removed", len(removed)),
	)

	return nil
}

func (s *Server) collect(ctx context.Context) (map[string]resource.Descriptor, error) {
	logger := log.WithContext(ctx)
	found := map[string]resource.Descriptor{}

	for _, f := range s.cfg.Files {
		path := s.cfg.Resolve(f.Path)

		d, err := resource.Stat(path)
		if err != nil {
			logger.DebugContext(ctx, "skip file resource",
				slog.String("path", path),
				slog.Any("err", err),
			)

			continue
		}

		d.Name = f.Name
		d.Description = f.Description
		d.MIMEType = f.MIMEType
		d.Tags = slices.Compact(slices.Sorted(slices.Values(f.Tags)))

		if resource.IsMarkdown(d.MIMEType, d.Path) {
			d.Title, _ = resource.MarkdownTitleFile(d.Path)
		}

		found[d.URI] = d
	}

	specs, err := s.cfg.Specs()
	if err != nil {
		return nil, fmt.Errorf("resource specs: %w", err)
	}

	for _, spec := range specs {
		ds, err := resource.Scan(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", spec.Dir, err)
		}

		for _, d := range ds {
			if _, ok := found[d.URI]; ok {
				logger.DebugContext(ctx, "skip duplicate resource", slog.String("uri", d.URI))

				continue
			}

			found[d.URI] = d
		}
	}

	return found, nil
}

// Resources returns the registered file resources ordered by name.
func (s *Server) Resources() []resource.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds := make([]resource.Descriptor, 0, len(s.resources))
	for _, d := range s.resources {
		ds = append(ds, d)
	}

	slices.SortFunc(ds, func(a, b resource.Descriptor) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.URI, b.URI))
	})

	return ds
}

// Roots returns the directories holding configured resources.
func (s *Server) Roots() []string {
	roots := []string{}
	for _, d := range s.cfg.Directories {
		roots = append(roots, s.cfg.Resolve(d.Path))
	}

	return roots
}

// Personas returns the per-session persona state.
func (s *Server) Personas() *PersonaStore {
	return s.personas
}

func (s *Server) Server() *mcp.Server {
	return s.server
}

// Serve starts the MCP server.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server", slog.String("address", s.address))

	if s.address == "" {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve Stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP(ctx)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	server := &http.Server{
		Addr:    s.address,
		Handler: handler,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},

		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()

			_ = server.Shutdown(shutdownCtx) //nolint:contextcheck // Parent is already done.

		case <-done:
		}
	}()

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	var t mcp.Transport = &mcp.StdioTransport{}
	if s.protocolLog != nil {
		t = &mcp.LoggingTransport{Transport: t, Writer: s.protocolLog}
	}

	err := s.server.Run(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func newResource(d resource.Descriptor) *mcp.Resource {
	r := &mcp.Resource{
		URI:         d.URI,
		Name:        d.Name,
		Title:       d.Title,
		Description: d.Description,
		MIMEType:    d.MIMEType,
		Size:        d.Size,
	}
	if len(d.Tags) > 0 {
		r.Meta = mcp.Meta{"tags": slices.Clone(d.Tags)}
	}

	return r
}

func readFile(d resource.Descriptor) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		b, err := os.ReadFile(d.Path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", d.Path, err)
		}

		contents := &mcp.ResourceContents{
			URI:      d.URI,
			MIMEType: d.MIMEType,
		}
		if isText(d.MIMEType) {
			contents.Text = string(b)
		} else {
			contents.Blob = b
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{contents},
		}, nil
	}
}

func textResult(uri, mimeType, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: mimeType, Text: text},
		},
	}
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", uri, err)
	}

	return textResult(uri, mimeJSON, string(b)), nil
}

// isText reports whether content of mimeType is returned as text rather
// than a blob.
func isText(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}

	return strings.HasPrefix(mediaType, "text/") ||
		mediaType == mimeJSON ||
		strings.HasSuffix(mediaType, "+json")
}

func sameDescriptor(a, b resource.Descriptor) bool {
	return a.Path == b.Path &&
		a.Name == b.Name &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		a.MIMEType == b.MIMEType &&
		a.Size == b.Size &&
		slices.Equal(a.Tags, b.Tags)
}
