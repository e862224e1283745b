// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator wires the campaign Q&A service together.
//
// It owns construction and lifecycle of every component: the tool-calling
// LLM client, Weaviate knowledge access, web search, the interaction store,
// the session table and its sweep scheduler, the tool executor, the agent
// loop, and the gin router.
//
// # Usage
//
//	cfg := orchestrator.Config{Port: 12210, LLMBackend: "openai"}
//	svc, err := orchestrator.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
//
// # Extensions
//
// Authentication for operator routes and audit logging are injected through
// extensions.ServiceOptions. A nil options value uses the no-op defaults,
// unless Config.AdminToken is set, which installs a bearer-token provider.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianCivic/pkg/extensions"
	"github.com/AleutianAI/AleutianCivic/services/classifier"
	"github.com/AleutianAI/AleutianCivic/services/llm"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/agent"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/handlers"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/knowledge"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/retrieval"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/session"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/store"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/tools"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/ttl"
	"github.com/AleutianAI/AleutianCivic/services/orchestrator/websearch"
	"github.com/AleutianAI/AleutianCivic/services/policy_engine"
)

const serviceName = "aleutian-civic"

// Tracing endpoint values with special meaning.
const (
	TracingDisabled = "none"
	TracingStdout   = "stdout"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the orchestrator lifecycle.
//
// # Thread Safety
//
// Run blocks and must be called at most once. Shutdown may be called from
// another goroutine to stop Run.
type Service interface {
	// Run starts the HTTP server and blocks until it stops. A graceful
	// Shutdown makes Run return nil.
	Run() error

	// Shutdown drains the HTTP server, stops the sweep scheduler, closes
	// the store and flushes traces.
	Shutdown(ctx context.Context) error

	// Router returns the configured gin engine for tests.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds orchestrator configuration. Zero values take the defaults
// applied by applyConfigDefaults.
type Config struct {
	// Port is the HTTP server port. Default: 12210
	Port int

	// GinMode sets the gin mode ("debug", "release", "test"). Empty keeps
	// gin's own default.
	GinMode string

	// LLMBackend selects the tool-calling model.
	// Valid values: "openai", "local", "ollama", "claude", "anthropic".
	// Default: "openai"
	LLMBackend string

	// WeaviateURL enables the knowledge base, e.g. "http://weaviate:8080".
	// Empty disables vector tiers.
	WeaviateURL string

	// EmbeddingBackend is "openai" or "http". Default: "openai"
	EmbeddingBackend string

	// EmbeddingServiceURL is used by the "http" embedding backend.
	EmbeddingServiceURL string

	// EmbeddingModel overrides the OpenAI embedding model.
	EmbeddingModel string

	// OpenAIAPIKey is used by the "openai" embedding backend.
	OpenAIAPIKey string

	// Search configures the web search provider.
	Search websearch.Config

	// CandidateName and OfficialDomain drive the own-side web fallback.
	CandidateName  string
	OfficialDomain string

	// RetrievalBackendTimeout bounds each backend call. Default: 5s
	RetrievalBackendTimeout time.Duration

	// MaxIterations bounds the agent loop. Default: agent.DefaultMaxIterations
	MaxIterations int

	// ModelTimeout bounds each model call. Default: agent.DefaultModelTimeout
	ModelTimeout time.Duration

	// DatabasePath is the SQLite file. Default: "data/civic.db"
	DatabasePath string

	// SessionMax and SessionTimeout bound the session table.
	// Defaults: 1000 and 60m
	SessionMax     int
	SessionTimeout time.Duration

	// SessionSweepInterval is how often expired sessions are removed.
	// Default: 5m
	SessionSweepInterval time.Duration

	// PaymentGateway is "stub" or "midtrans". Default: "stub"
	PaymentGateway     string
	DonationBaseURL    string
	MidtransServerKey  string
	MidtransProduction bool

	// AdminToken protects operator routes when no AuthProvider is injected.
	AdminToken string

	// OTelEndpoint is the OTLP gRPC collector. TracingStdout prints spans
	// and TracingDisabled installs no provider.
	// Default: "aleutian-otel-collector:4317"
	OTelEndpoint string

	// MetricsRegistry receives the service metrics. Nil registers with the
	// process-wide default registry.
	MetricsRegistry *prometheus.Registry
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "openai"
	}
	if cfg.EmbeddingBackend == "" {
		cfg.EmbeddingBackend = "openai"
	}
	if cfg.Search.Provider == "" {
		cfg.Search.Provider = "none"
	}
	if cfg.RetrievalBackendTimeout <= 0 {
		cfg.RetrievalBackendTimeout = 5 * time.Second
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = agent.DefaultMaxIterations
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = agent.DefaultModelTimeout
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "data/civic.db"
	}
	if cfg.SessionMax <= 0 {
		cfg.SessionMax = session.DefaultMaxSessions
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = session.DefaultTimeout
	}
	if cfg.SessionSweepInterval <= 0 {
		cfg.SessionSweepInterval = ttl.DefaultInterval
	}
	if cfg.PaymentGateway == "" {
		cfg.PaymentGateway = "stub"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "aleutian-otel-collector:4317"
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service.
//
// # Thread Safety
//
// All fields are written during New and read-only afterwards, except
// server, which Run sets under mu.
type service struct {
	config Config
	opts   extensions.ServiceOptions

	router  *gin.Engine
	metrics *observability.CivicMetrics

	mu     sync.Mutex
	server *http.Server

	llmClient      llm.ToolCallingClient
	policyEngine   *policy_engine.PolicyEngine
	classifier     *classifier.Classifier
	weaviateClient *weaviate.Client
	searcher       knowledge.Searcher
	ingester       *knowledge.Ingester
	webSearch      websearch.Provider
	store          *store.Store
	sessions       *session.Manager
	scheduler      *ttl.Scheduler
	executor       *tools.Executor
	retriever      *retrieval.Orchestrator
	agent          *agent.Orchestrator

	tracerCleanup func(context.Context)
}

// New creates the orchestrator service.
//
// # Description
//
// Initialization order:
//  1. Tracing and metrics
//  2. Weaviate, the embedder and the collection schema (optional)
//  3. Web search, the classifier and the sensitive-data screen
//  4. The interaction store, sessions and the sweep scheduler
//  5. Tools, retrieval and the agent loop over the LLM client
//  6. The gin router
//
// Weaviate and web search failures degrade the service instead of failing
// it. Store, classifier, policy and LLM failures are fatal.
//
// # Inputs
//
//   - cfg: Configuration. Zero values use defaults.
//   - opts: Extension options. May be nil.
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Non-nil if a required component cannot be built.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	return newService(cfg, opts, nil)
}

// newService is New with an optional pre-built LLM client.
func newService(cfg Config, opts *extensions.ServiceOptions, client llm.ToolCallingClient) (*service, error) {
	s := &service{config: applyConfigDefaults(cfg), llmClient: client}
	s.opts = s.resolveOptions(opts)

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.initMetrics()

	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, running without the knowledge base", "error", err)
		s.weaviateClient = nil
	}

	s.initWebSearch()

	if s.classifier, err = classifier.NewClassifier(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize classifier: %w", err)
	}
	if s.policyEngine, err = policy_engine.NewPolicyEngine(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	if s.store, err = store.Open(s.config.DatabasePath); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to open interaction store: %w", err)
	}

	if err := s.initSessions(); err != nil {
		s.cleanup()
		return nil, err
	}

	if s.llmClient == nil {
		if err := s.initLLMClient(); err != nil {
			s.cleanup()
			return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
		}
	}

	s.initAgent()
	s.initRouter()
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.server = server
	s.mu.Unlock()
	slog.Info("Starting civic orchestrator", "port", s.config.Port, "llm_backend", s.config.LLMBackend)

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	s.cleanup()
	return err
}

// Shutdown stops the server and releases every resource.
func (s *service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	var err error
	if server != nil {
		err = server.Shutdown(ctx)
	}
	s.cleanup()
	return err
}

// Router returns the gin engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// resolveOptions fills missing extension points. A configured AdminToken
// replaces the no-op auth provider.
func (s *service) resolveOptions(opts *extensions.ServiceOptions) extensions.ServiceOptions {
	resolved := extensions.DefaultOptions()
	if opts != nil {
		resolved = extensions.Normalize(*opts)
	}
	if opts == nil || opts.AuthProvider == nil {
		if s.config.AdminToken != "" {
			provider, err := extensions.NewTokenAuthProvider(s.config.AdminToken)
			if err == nil {
				resolved.AuthProvider = provider
			}
		} else {
			slog.Warn("ADMIN_API_TOKEN not set, operator routes are unauthenticated")
		}
	}
	if opts == nil || opts.AuditLogger == nil {
		resolved.AuditLogger = extensions.NewSlogAuditLogger(slog.Default())
	}
	return resolved
}

// initTracer sets up OpenTelemetry tracing.
//
// # Outputs
//
//   - func(context.Context): Flushes and shuts the provider down.
//   - error: Non-nil if the exporter cannot be created.
//
// # Limitations
//
//   - The OTLP connection is insecure gRPC, meant for an in-cluster collector.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	var exporter sdktrace.SpanExporter
	switch s.config.OTelEndpoint {
	case TracingDisabled:
		slog.Info("Tracing disabled")
		return func(context.Context) {}, nil
	case TracingStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		exporter = exp
	default:
		conn, err := grpc.NewClient(s.config.OTelEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		exporter = exp
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}

// initMetrics registers the service metrics plus Go runtime collectors.
func (s *service) initMetrics() {
	if s.config.MetricsRegistry == nil {
		s.metrics = observability.InitMetrics()
		return
	}
	reg := s.config.MetricsRegistry
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = observability.NewMetrics(reg)
}

// initWeaviate connects to Weaviate, picks the embedder and ensures the
// base collections exist.
//
// # Outputs
//
//   - error: Non-nil if a configured Weaviate cannot be used. An empty URL
//     is not an error.
func (s *service) initWeaviate() error {
	if !weaviateConfigured(s.config.WeaviateURL) {
		slog.Info("Weaviate URL not configured, running without the knowledge base")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, embedder, err := openKnowledge(ctx, s.config)
	if err != nil {
		return err
	}

	s.weaviateClient = client
	s.searcher = knowledge.NewWeaviateSearcher(client, embedder)
	s.ingester = knowledge.NewIngester(client, embedder)
	slog.Info("Weaviate client initialized", "url", s.config.WeaviateURL, "embedding_backend", s.config.EmbeddingBackend)
	return nil
}

// OpenIngester connects to the configured Weaviate for offline ingestion.
// It ensures the base collections exist.
func OpenIngester(ctx context.Context, cfg Config) (*knowledge.Ingester, error) {
	cfg = applyConfigDefaults(cfg)
	if !weaviateConfigured(cfg.WeaviateURL) {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL is not configured")
	}
	client, embedder, err := openKnowledge(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return knowledge.NewIngester(client, embedder), nil
}

func weaviateConfigured(raw string) bool {
	raw = strings.Trim(raw, "\"' ")
	return raw != "" && strings.Contains(raw, "http")
}

func openKnowledge(ctx context.Context, cfg Config) (*weaviate.Client, knowledge.Embedder, error) {
	weaviateURL := strings.Trim(cfg.WeaviateURL, "\"' ")
	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, nil, fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if err := knowledge.EnsureSchema(ctx, client, knowledge.BaseCollections()); err != nil {
		return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return client, embedder, nil
}

func newEmbedder(cfg Config) (knowledge.Embedder, error) {
	switch cfg.EmbeddingBackend {
	case "http":
		return knowledge.NewHTTPEmbedder(cfg.EmbeddingServiceURL)
	case "openai":
		return knowledge.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	default:
		return nil, fmt.Errorf("unsupported embedding backend: %s", cfg.EmbeddingBackend)
	}
}

// initWebSearch builds the cached web search provider. Failures disable
// the web tiers.
func (s *service) initWebSearch() {
	provider, err := websearch.NewProvider(s.config.Search)
	if err != nil {
		slog.Warn("Web search unavailable", "provider", s.config.Search.Provider, "error", err)
		return
	}
	if provider == nil {
		slog.Info("Web search disabled")
		return
	}
	s.webSearch = websearch.NewCachedProvider(provider, websearch.DefaultCacheConfig())
	slog.Info("Web search enabled", "provider", s.config.Search.Provider)
}

// initSessions creates the session table and starts its sweep scheduler.
func (s *service) initSessions() error {
	s.sessions = session.NewManager(s.config.SessionMax, s.config.SessionTimeout, s.metrics)

	cfg := ttl.DefaultSchedulerConfig()
	cfg.Interval = s.config.SessionSweepInterval
	s.scheduler = ttl.NewScheduler(s.sessions, cfg)
	if err := s.scheduler.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start session sweep: %w", err)
	}
	return nil
}

// initLLMClient creates the tool-calling client for the configured backend.
//
// # Limitations
//
//   - Only supports: openai, local, ollama, claude/anthropic
func (s *service) initLLMClient() error {
	var err error
	switch s.config.LLMBackend {
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "local":
		s.llmClient, err = llm.NewLocalLlamaCppClient()
		slog.Info("Using Local Llama.cpp LLM backend")
	case "ollama":
		s.llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	case "claude", "anthropic":
		s.llmClient, err = llm.NewAnthropicClient()
		slog.Info("Using Anthropic (Claude) LLM backend")
	default:
		return fmt.Errorf("unsupported LLM backend: %s", s.config.LLMBackend)
	}
	return err
}

// newPaymentGateway selects the donation link gateway.
func (s *service) newPaymentGateway() tools.PaymentGateway {
	if s.config.PaymentGateway == "midtrans" {
		if s.config.MidtransServerKey != "" {
			slog.Info("Using Midtrans payment gateway", "production", s.config.MidtransProduction)
			return tools.NewMidtransGateway(s.config.MidtransServerKey, s.config.MidtransProduction, s.config.DonationBaseURL)
		}
		slog.Warn("MIDTRANS_SERVER_KEY not set, falling back to the stub payment gateway")
	}
	return tools.NewLinkGateway(s.config.DonationBaseURL)
}

// initAgent assembles the retrieval orchestrator, executor and agent loop.
// search_policy_collections answers through the retrieval orchestrator, so
// collection thresholds and dual-source checks govern every answer.
func (s *service) initAgent() {
	s.retriever = retrieval.NewOrchestrator(s.searcher, s.webSearch, retrieval.Config{
		CandidateName:  s.config.CandidateName,
		OfficialDomain: s.config.OfficialDomain,
		BackendTimeout: s.config.RetrievalBackendTimeout,
	}, s.metrics)

	s.executor = tools.NewExecutor(tools.Dependencies{
		Retriever:      s.retriever,
		Analyzer:       s.classifier,
		Searcher:       s.searcher,
		Web:            s.webSearch,
		Volunteers:     s.store,
		Donations:      s.store,
		Payments:       s.newPaymentGateway(),
		Metrics:        s.metrics,
		BackendTimeout: s.config.RetrievalBackendTimeout,
	})

	s.agent = agent.NewOrchestrator(s.llmClient, s.executor, s.sessions, s.classifier, agent.Config{
		CandidateName: s.config.CandidateName,
		MaxIterations: s.config.MaxIterations,
		ModelTimeout:  s.config.ModelTimeout,
	}, s.metrics)
}

// initRouter builds the gin engine and registers every route.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.New()
	s.router.Use(gin.Logger(), gin.Recovery())
	if s.config.OTelEndpoint != TracingDisabled {
		s.router.Use(otelgin.Middleware(serviceName))
	}

	deps := routes.Dependencies{
		Conversation: &handlers.Conversation{
			Agent:   s.agent,
			Store:   s.store,
			Policy:  s.policyEngine,
			Metrics: s.metrics,
		},
		Store:        s.store,
		Classifier:   s.classifier,
		Retriever:    s.retriever,
		HealthChecks: s.healthChecks(),
	}
	if s.ingester != nil {
		deps.Ingester = s.ingester
	}
	if s.config.MetricsRegistry != nil {
		deps.Gatherer = s.config.MetricsRegistry
	}

	routes.SetupRoutes(s.router, deps, s.opts)
}

// healthChecks probes the database and, when configured, Weaviate. The LLM
// is reported as configured without a network call.
func (s *service) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": s.store.Ping,
		"llm": func(context.Context) error {
			return nil
		},
		"weaviate": nil,
	}
	if s.weaviateClient != nil {
		client := s.weaviateClient
		checks["weaviate"] = func(ctx context.Context) error {
			ready, err := client.Misc().ReadyChecker().Do(ctx)
			if err != nil {
				return err
			}
			if !ready {
				return fmt.Errorf("weaviate not ready")
			}
			return nil
		}
	}
	return checks
}

// cleanup releases resources. Safe to call more than once.
func (s *service) cleanup() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Store close error", "error", err)
		}
		s.store = nil
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
