package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/mapping/internal/configuration"
	"github.com/conduit-lang/mapping/internal/discovery"
	"github.com/conduit-lang/mapping/internal/testdomain"
)

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	holder := configuration.NewHolder(func() (*configuration.MappingConfiguration, error) {
		return configuration.BuildFromDomain(testdomain.Domain())
	})
	return NewServer(holder, opts...)
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestServer_RequestIDIsPropagated(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestServer_Configuration(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/configuration")
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[ConfigurationView](t, rec)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, 11, view.Types)
	assert.Equal(t, 10, view.Classes)
	assert.Equal(t, 1, view.Interfaces)
	assert.Equal(t, 5, view.Relations)
}

func TestServer_ListTypes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		query    string
		expected int
	}{
		{"", 11},
		{"?kind=class", 10},
		{"?kind=interface", 1},
	}

	for _, tt := range tests {
		t.Run("types"+tt.query, func(t *testing.T) {
			rec := get(t, s, "/types"+tt.query)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Len(t, decode[[]TypeSummary](t, rec), tt.expected)
		})
	}

	rec := get(t, s, "/types?kind=mixin")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetType(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/types/"+testdomain.Customer)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[TypeView](t, rec)
	assert.Equal(t, testdomain.Customer, view.Name)
	assert.Equal(t, "class", view.Kind)
	assert.Equal(t, "Customer", view.ClassID)
	assert.Equal(t, testdomain.Company, view.BaseClass)
	assert.Equal(t, "CustomerView", view.Entity)
	assert.Equal(t, "filter_view", view.EntityKind)
	assert.Equal(t, "frozen", view.State)

	properties := make(map[string]PropertyView)
	for _, p := range view.Properties {
		properties[p.Name] = p
	}
	require.Contains(t, properties, "Sales.Company.Name")
	assert.Equal(t, testdomain.Company, properties["Sales.Company.Name"].DeclaringType)
	assert.Equal(t, []string{"Name"}, properties["Sales.Company.Name"].Columns)
	assert.Equal(t, []string{"Standard", "Premium", "Gold"}, properties["Sales.Customer.Type"].EnumValues)

	var orders *EndPointView
	for i := range view.EndPoints {
		if view.EndPoints[i].Property == "Sales.Customer.Orders" {
			orders = &view.EndPoints[i]
		}
	}
	require.NotNil(t, orders)
	assert.Equal(t, "many", orders.Cardinality)
	assert.True(t, orders.Virtual)
	assert.Equal(t, "OrderNumber desc", orders.SortExpression)
	assert.Equal(t, "Sales.Order:Sales.Order.Customer->Sales.Customer.Orders", orders.Relation)
}

func TestServer_GetInterface(t *testing.T) {
	s := newTestServer(t)
	rec := get(t, s, "/types/"+testdomain.IContact)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[TypeView](t, rec)
	assert.Equal(t, "interface", view.Kind)
	assert.Empty(t, view.ClassID)
	assert.Equal(t, []string{testdomain.Person}, view.ImplementingClasses)
	assert.Equal(t, "union_view", view.EntityKind)
}

func TestServer_GetClass(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/classes/Distributor")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[TypeView](t, rec)
	assert.Equal(t, testdomain.Distributor, view.Name)
	assert.Equal(t, testdomain.Partner, view.BaseClass)

	rec = get(t, s, "/classes/Unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "not_found", body.Error)
	assert.Contains(t, body.Message, "class 'Unknown' not found")
}

func TestServer_Relations(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/relations")
	require.Equal(t, http.StatusOK, rec.Code)
	relations := decode[[]RelationView](t, rec)
	assert.Len(t, relations, 5)

	id := "Sales.Person:Sales.Person.AssociatedPartnerCompany->Sales.Partner.ContactPerson"
	rec = get(t, s, "/relations/"+url.PathEscape(id))
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[RelationView](t, rec)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, "one_to_one", view.Kind)
	assert.Equal(t, testdomain.Person, view.EndPoints[0].Type)
	assert.False(t, view.EndPoints[0].Virtual)
	assert.True(t, view.EndPoints[1].Virtual)

	rec = get(t, s, "/relations/"+url.PathEscape("Sales.Order:Sales.Order.Official"))
	require.Equal(t, http.StatusOK, rec.Code)
	unidirectional := decode[RelationView](t, rec)
	assert.Equal(t, "unidirectional", unidirectional.Kind)
	assert.True(t, unidirectional.EndPoints[1].Anonymous)

	rec = get(t, s, "/relations/"+url.PathEscape(id)+"?end_point=Sales.Partner.ContactPerson")
	require.Equal(t, http.StatusOK, rec.Code)
	endPoint := decode[EndPointView](t, rec)
	assert.Equal(t, "Sales.Partner.ContactPerson", endPoint.Property)
	assert.Equal(t, id, endPoint.Relation)
	assert.True(t, endPoint.Virtual)

	rec = get(t, s, "/relations/"+url.PathEscape(id)+"?end_point=Sales.Order.Official")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "end point 'Sales.Order.Official' not found")

	rec = get(t, s, "/relations/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Entities(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/entities")
	require.Equal(t, http.StatusOK, rec.Code)
	entities := decode[[]EntityView](t, rec)
	require.NotEmpty(t, entities)
	assert.Equal(t, "Company", entities[0].Name)
	assert.Equal(t, "table", entities[0].Kind)
	assert.Equal(t, "ID", entities[0].Columns[0].Name)
	assert.True(t, entities[0].Columns[0].PrimaryKey)

	rec = get(t, s, "/entities?provider=reporting")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]EntityView](t, rec))
}

func TestServer_DDL(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/ddl")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/sql; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `CREATE TABLE IF NOT EXISTS "Company" (`)

	rec = get(t, s, "/ddl?provider=missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_APIPrefix(t *testing.T) {
	s := newTestServer(t, WithAPIPrefix("/mapping"))

	assert.Equal(t, http.StatusOK, get(t, s, "/mapping/health").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/health").Code)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/types", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_Unavailable(t *testing.T) {
	holder := configuration.NewHolder(func() (*configuration.MappingConfiguration, error) {
		return nil, errors.New("domain files missing")
	})
	s := NewServer(holder)

	rec := get(t, s, "/types")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "configuration_unavailable", decode[ErrorResponse](t, rec).Error)
}

func TestServer_Reload(t *testing.T) {
	broken := false
	holder := configuration.NewHolder(func() (*configuration.MappingConfiguration, error) {
		if broken {
			b := discovery.NewBuilder()
			b.Class("Test.A").Table("A").Relation("Bs", discovery.RelationDescriptor{Target: "Test.B", Opposite: "As", Collection: true})
			b.Class("Test.B").Table("B").Relation("As", discovery.RelationDescriptor{Target: "Test.A", Opposite: "Bs", Collection: true})
			d, err := b.Build()
			if err != nil {
				return nil, err
			}
			return configuration.BuildFromDomain(d)
		}
		return configuration.BuildFromDomain(testdomain.Domain())
	})
	s := NewServer(holder)

	first := decode[ConfigurationView](t, get(t, s, "/configuration"))

	broken = true
	req := httptest.NewRequest(http.MethodPost, "/configuration/reload", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "mapping_invalid", body.Error)
	require.NotEmpty(t, body.Failures)
	assert.Contains(t, body.Failures[0].Message, "many-to-many")

	current := decode[ConfigurationView](t, get(t, s, "/configuration"))
	assert.Equal(t, first.ID, current.ID, "a failed reload keeps the previous configuration")

	broken = false
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/configuration/reload", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEqual(t, first.ID, decode[ConfigurationView](t, rec).ID)
}

func TestServer_Serve(t *testing.T) {
	s := newTestServer(t, WithShutdownTimeout(time.Second))
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRecoverPanics(t *testing.T) {
	handler := recoverPanics(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "internal_error"))
}

type recordingReloader struct {
	triggers []string
	holder   *configuration.Holder
}

func (r *recordingReloader) Reload(ctx context.Context, trigger string, files []string) (*configuration.MappingConfiguration, error) {
	r.triggers = append(r.triggers, trigger)
	return r.holder.Rebuild()
}

func TestServer_ReloadUsesReloader(t *testing.T) {
	holder := configuration.NewHolder(func() (*configuration.MappingConfiguration, error) {
		return configuration.BuildFromDomain(testdomain.Domain())
	})
	reloader := &recordingReloader{holder: holder}
	s := NewServer(holder, WithReloader(reloader))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/configuration/reload", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"api"}, reloader.triggers)
}

func TestServer_Events(t *testing.T) {
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	withEvents := newTestServer(t, WithEvents(events))
	assert.Equal(t, http.StatusTeapot, get(t, withEvents, "/events").Code)

	withoutEvents := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, withoutEvents, "/events").Code)
}
