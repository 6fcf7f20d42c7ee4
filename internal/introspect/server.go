package introspect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/conduit-lang/mapping/internal/configuration"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/rdbms"
)

// Reloader rebuilds the configuration on POST /configuration/reload
type Reloader interface {
	Reload(ctx context.Context, trigger string, files []string) (*configuration.MappingConfiguration, error)
}

// holderReloader reloads without announcing the outcome
type holderReloader struct {
	holder *configuration.Holder
}

func (r holderReloader) Reload(ctx context.Context, trigger string, files []string) (*configuration.MappingConfiguration, error) {
	return r.holder.Rebuild()
}

// Server serves the current mapping configuration of a holder as JSON
type Server struct {
	holder    *configuration.Holder
	reloader  Reloader
	events    http.Handler
	authority *TokenAuthority
	logger    *zap.Logger
	apiPrefix string
	router    chi.Router

	shutdownTimeout time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request and error logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAPIPrefix mounts every route below prefix, e.g. "/mapping"
func WithAPIPrefix(prefix string) Option {
	return func(s *Server) {
		s.apiPrefix = prefix
	}
}

// WithReloader routes reloads through r, e.g. to announce them
func WithReloader(r Reloader) Option {
	return func(s *Server) {
		s.reloader = r
	}
}

// WithEvents serves reload events on GET /events
func WithEvents(events http.Handler) Option {
	return func(s *Server) {
		s.events = events
	}
}

// WithTokenAuthority requires a bearer token with ReloadScope for reloads
func WithTokenAuthority(authority *TokenAuthority) Option {
	return func(s *Server) {
		s.authority = authority
	}
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// NewServer creates a server reading its configuration from holder
func NewServer(holder *configuration.Holder, opts ...Option) *Server {
	s := &Server{
		holder:          holder,
		logger:          zap.NewNop(),
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reloader == nil {
		s.reloader = holderReloader{holder: holder}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logRequests(s.logger))
	r.Use(recoverPanics(s.logger))
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		renderError(w, http.StatusNotFound, fmt.Errorf("no route for %s", req.URL.Path), "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		renderError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", req.Method), "method_not_allowed")
	})

	if s.apiPrefix != "" {
		r.Route(s.apiPrefix, s.routes)
	} else {
		s.routes(r)
	}
	s.router = r
	return s
}

func (s *Server) routes(r chi.Router) {
	r.Get("/health", s.health)
	r.Get("/configuration", s.getConfiguration)
	r.Group(func(r chi.Router) {
		if s.authority != nil {
			r.Use(requireScope(s.authority, ReloadScope))
		}
		r.Post("/configuration/reload", s.reload)
	})
	r.Get("/types", s.listTypes)
	r.Get("/types/{name}", s.getType)
	r.Get("/classes/{id}", s.getClass)
	r.Get("/relations", s.listRelations)
	r.Get("/relations/{id}", s.getRelation)
	r.Get("/entities", s.listEntities)
	r.Get("/ddl", s.getDDL)
	if s.events != nil {
		r.Handle("/events", s.events)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("introspection server listening", zap.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down introspection server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// current returns the current configuration or writes a 503 response
func (s *Server) current(w http.ResponseWriter) (*configuration.MappingConfiguration, bool) {
	cfg, err := s.holder.Current()
	if err != nil {
		s.logger.Error("mapping configuration unavailable", zap.Error(err))
		renderError(w, http.StatusServiceUnavailable, err, "configuration_unavailable")
		return nil, false
	}
	return cfg, true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.current(w)
	if !ok {
		return
	}
	renderJSON(w, http.StatusOK, NewConfigurationView(cfg))
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.reloader.Reload(r.Context(), "api", nil)
	if err != nil {
		s.logger.Warn("mapping configuration reload failed, keeping the previous one", zap.Error(err))
		renderMappingError(w, err)
		return
	}
	s.logger.Info("mapping configuration reloaded", zap.String("id", cfg.ID()))
	renderJSON(w, http.StatusOK, NewConfigurationView(cfg))
}

func (s *Server) listTypes(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.current(w)
	if !ok {
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind != "" && kind != "class" && kind != "interface" {
		renderError(w, http.StatusBadRequest, fmt.Errorf("kind must be class or interface, got %s", kind), "bad_request")
		return
	}

	summaries := make([]TypeSummary, 0)
	for _, td := range cfg.GetTypeDefinitions() {
		summary := NewTypeSummary(td)
		if kind == "" || summary.Kind == kind {
			summaries = append(summaries, summary)
		}
	}
	renderJSON(w, http.StatusOK, summaries)
}

func (s *Server) getType(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.current(w)
	if !ok {
		return
	}
	td, err := cfg.GetTypeDefinition(pathParam(r, "name"))
	if err != nil {
		renderMappingError(w, err)
		return
	}
	s.renderType(w, td)
}

func (s *Server) getClass(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.current(w)
	if !ok {
		return
	}
	class, err := cfg.GetClassDefinition(pathParam(r, "id"))
	if err != nil {
		renderMappingError(w, err)
		return
	}
	s.renderType(w, class)
}

func (s *Server) renderType(w http.ResponseWriter, td mapping.TypeDefinition) {
	view, err := NewTypeView(td)
	if err != nil {
		renderMappingError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, view)
}

func (s *Server) listRelations(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.current(w)
	if !ok {
		return
	}
	relations := cfg.GetRelationDefinitions()
	views := make([]RelationView, 0, len(relations))
	for _, rd := range relations {
		views = append(views, NewRelationView(rd))
	}
	renderJSON(w, http.StatusOK, views)
}

func (s *Server) getRelation(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.current(w)
	if !ok {
		return
	}
	rd, err := cfg.GetRelationDefinition(pathParam(r, "id"))
	if err != nil {
		renderMappingError(w, err)
		return
	}
	if property := r.URL.Query().Get("end_point"); property != "" {
		ep := rd.GetEndPoint(property)
		if ep == nil {
			renderMappingError(w, mapping.NewNotFoundError("end point", property))
			return
		}
		renderJSON(w, http.StatusOK, NewEndPointView(ep))
		return
	}
	renderJSON(w, http.StatusOK, NewRelationView(rd))
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.current(w)
	if !ok {
		return
	}
	entities := cfg.StorageEntities()
	if provider := r.URL.Query().Get("provider"); provider != "" {
		entities = rdbms.FilterByProvider(entities, provider)
	}
	views := make([]EntityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, NewEntityView(e))
	}
	renderJSON(w, http.StatusOK, views)
}

func (s *Server) getDDL(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.current(w)
	if !ok {
		return
	}

	providers := cfg.StorageProviders()
	provider := providers.Default()
	if name := r.URL.Query().Get("provider"); name != "" {
		p, found := providers.Provider(name)
		if !found {
			renderError(w, http.StatusNotFound, mapping.NewNotFoundError("storage provider", name), "not_found")
			return
		}
		provider = p
	}

	script, err := rdbms.NewDDLGenerator(provider.Dialect).
		GenerateScript(rdbms.FilterByProvider(cfg.StorageEntities(), provider.Name))
	if err != nil {
		renderMappingError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/sql; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(script))
}

// pathParam returns a URL parameter, unescaping characters such as ">"
// that clients encode inside relation IDs
func pathParam(r *http.Request, name string) string {
	value := chi.URLParam(r, name)
	if unescaped, err := url.PathUnescape(value); err == nil {
		return unescaped
	}
	return value
}
