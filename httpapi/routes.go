// Package httpapi serves the collection store, the settings documents, the availability check
// and the employee login over HTTP with JSON bodies.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AntonStoeckl/dynamic-collections-go/availability"
	cs "github.com/AntonStoeckl/dynamic-collections-go/collectionstore"
	"github.com/AntonStoeckl/dynamic-collections-go/settings"
)

const (
	CRUDPrefix = "/api/universalCRUD"
	AuthPrefix = "/api/auth"

	operationName = "carhire"
)

var ErrNilStore = errors.New("http api needs a store")

type Config struct {
	CORSAllowAll   bool
	UseAccessLog   bool
	RedactErrors   bool
	RequestTimeout time.Duration
	DebugLogging   bool
}

// Store is the collection store as used by the handlers; *collectionstore.Service implements it.
type Store interface {
	Collections() []string
	Schema(collection string) ([]cs.FieldShape, error)
	Filtered(ctx context.Context, collection string, req cs.FilterRequest) (cs.Page, error)
	List(ctx context.Context, collection string, req cs.ListRequest) (cs.Page, error)
	Get(ctx context.Context, collection, id string) (cs.Record, error)
	Create(ctx context.Context, collection string, input cs.Record) (cs.Record, error)
	Update(ctx context.Context, collection, id string, patch cs.Record) (cs.Record, error)
	Delete(ctx context.Context, collection, id string) (cs.Record, error)
	Location() *time.Location
}

// Settings is implemented by *settings.Service.
type Settings interface {
	Get(ctx context.Context, name string) (*settings.Node, error)
	Put(ctx context.Context, name string, doc *settings.Node) error
	Options(ctx context.Context, name, path, parent string) ([]string, error)
	Apply(ctx context.Context, name string, updates []settings.Update) (bool, error)
	HarvestRecord(ctx context.Context, fields []cs.FieldShape, rec cs.Record) error
}

// Availability is implemented by *availability.Resolver.
type Availability interface {
	IsAvailable(ctx context.Context, resourceID string, period cs.Interval, options ...availability.Option) (bool, error)
}

// Authenticator is implemented by *auth.Authenticator.
type Authenticator interface {
	Login(ctx context.Context, employeeID, password string) (cs.Record, error)
}

// Dependencies wires the server. Only Store is required; routes of nil dependencies are not
// registered, and without a registry neither /metrics nor the HTTP metrics are served.
type Dependencies struct {
	Store          Store
	Settings       Settings
	Availability   Availability
	Auth           Authenticator
	Logger         *zap.Logger
	Metrics        *prometheus.Registry
	TracerProvider trace.TracerProvider
	AccessLog      io.Writer
}

type server struct {
	cfg          Config
	store        Store
	settings     Settings
	availability Availability
	auth         Authenticator
}

func NewServer(cfg Config, deps Dependencies) (http.Handler, error) {
	if deps.Store == nil {
		return nil, ErrNilStore
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if deps.AccessLog == nil {
		deps.AccessLog = os.Stdout
	}

	srv := &server{
		cfg:          cfg,
		store:        deps.Store,
		settings:     deps.Settings,
		availability: deps.Availability,
		auth:         deps.Auth,
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	middlewares := []mux.MiddlewareFunc{handleTimeout(cfg.RequestTimeout), handleSpanName}
	if deps.Metrics != nil {
		middlewares = append(middlewares, handleHTTPMetrics(deps.Metrics))
	}
	middlewares = append(middlewares, handleRequestLogging(deps.Logger, cfg.DebugLogging))

	addRoutes(router, srv, deps.Metrics, middlewares)

	// CORS, compression and the access log wrap the router itself: route middlewares do not run
	// for preflight requests, which match no route.
	var handler http.Handler = router
	handler = handlers.CompressHandler(handler)

	if cfg.CORSAllowAll {
		handler = handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		)(handler)
	}

	if cfg.UseAccessLog {
		handler = handlers.LoggingHandler(deps.AccessLog, handler)
	}

	otelOptions := []otelhttp.Option{}
	if deps.TracerProvider != nil {
		otelOptions = append(otelOptions, otelhttp.WithTracerProvider(deps.TracerProvider))
	}

	return otelhttp.NewHandler(handler, operationName, otelOptions...), nil
}

func addRoutes(router *mux.Router,
	srv *server,
	metricsRegistry *prometheus.Registry,
	middlewares []mux.MiddlewareFunc,
) {
	if metricsRegistry != nil {
		router.Handle("/metrics", handleMetrics(metricsRegistry)).Methods(http.MethodGet)
	}

	api := router.PathPrefix(CRUDPrefix).Subrouter()
	api.HandleFunc("/ping", srv.Ping).Methods(http.MethodGet)
	api.HandleFunc("/filtered/{collection}", srv.Filtered).Methods(http.MethodPost)
	api.HandleFunc("/list/{collection}", srv.List).Methods(http.MethodPost)
	api.HandleFunc("/schema/{model}", srv.Schema).Methods(http.MethodGet)

	if srv.settings != nil {
		api.HandleFunc("/settings/{filename}", srv.GetSettings).Methods(http.MethodGet)
		api.HandleFunc("/settings/{filename}", srv.PutSettings).Methods(http.MethodPost)
		api.HandleFunc("/settings/{filename}/options", srv.SettingsOptions).Methods(http.MethodGet)
		api.HandleFunc("/settings/{filename}/values", srv.AppendSettingsValues).Methods(http.MethodPost)
	}

	if srv.availability != nil {
		api.HandleFunc("/availability/{carId}", srv.Availability).Methods(http.MethodGet)
	}

	api.HandleFunc("/{collection}", srv.Create).Methods(http.MethodPost)
	api.HandleFunc("/{collection}/{id}", srv.Get).Methods(http.MethodGet)
	api.HandleFunc("/{collection}/{id}", srv.Update).Methods(http.MethodPut)
	api.HandleFunc("/{collection}/{id}", srv.Delete).Methods(http.MethodDelete)
	api.Use(middlewares...)

	if srv.auth != nil {
		authAPI := router.PathPrefix(AuthPrefix).Subrouter()
		authAPI.HandleFunc("/login", srv.Login).Methods(http.MethodPost)
		authAPI.Use(middlewares...)
	}
}

func handleMetrics(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusNotFound, errorResponse{Error: "Not found"})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed"})
}
