package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/answer"
	"github.com/ziadkadry99/classrag/internal/audit"
	"github.com/ziadkadry99/classrag/internal/auth"
	"github.com/ziadkadry99/classrag/internal/catalog"
	"github.com/ziadkadry99/classrag/internal/ingest"
	"github.com/ziadkadry99/classrag/internal/retrieval"
	"github.com/ziadkadry99/classrag/internal/vectordb"
)

// Config holds server configuration.
type Config struct {
	Port     int
	DataDir  string // directory for the vector index export
	TopK     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server is the classrag HTTP API server.
type Server struct {
	cfg        Config
	tokens     *auth.Tokens
	users      *auth.Store
	catalog    *catalog.Store
	auditStore *audit.Store
	vectors    vectordb.Store
	pipeline   *ingest.Pipeline
	retriever  *retrieval.Retriever
	assembler  *answer.Assembler
	router     chi.Router
	httpServer *http.Server
}

// New creates a new server with all dependencies.
func New(cfg Config, tokens *auth.Tokens, users *auth.Store, cat *catalog.Store, auditStore *audit.Store, vectors vectordb.Store, pipeline *ingest.Pipeline, retriever *retrieval.Retriever, assembler *answer.Assembler) *Server {
	s := &Server{
		cfg:        cfg,
		tokens:     tokens,
		users:      users,
		catalog:    cat,
		auditStore: auditStore,
		vectors:    vectors,
		pipeline:   pipeline,
		retriever:  retriever,
		assembler:  assembler,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.tokens))

			r.Post("/query", s.handleQuery)
			r.Get("/documents", s.handleListDocuments)
			r.Get("/chat/ws", s.handleChatWS)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(access.RoleTeacher, access.RoleAdmin))
				r.Post("/documents", s.handleUploadDocument)
				r.Get("/audit", s.handleAudit)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(access.RoleAdmin))
				r.Post("/users", s.handleCreateUser)
			})
		})
	})

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("classrag server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
