package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/answer"
	"github.com/ziadkadry99/classrag/internal/audit"
	"github.com/ziadkadry99/classrag/internal/auth"
	"github.com/ziadkadry99/classrag/internal/catalog"
	"github.com/ziadkadry99/classrag/internal/retrieval"
)

// Canned responses for the two defined empty-result states.
const (
	msgNoDocuments = "No documents available. Please index documents first."
	msgNoRelevant  = "I couldn't find relevant information to answer your question."
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	principal, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.tokens.Issue(principal.ID, principal.Role)
	if err != nil {
		log.Printf("server: issuing token for %s: %v", principal.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"role":  string(principal.Role),
	})
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type sourceResponse struct {
	File        string `json:"file"`
	AccessLevel string `json:"access_level"`
	Partition   string `json:"partition"`
}

type queryResponse struct {
	Answer  string           `json:"answer"`
	Sources []sourceResponse `json:"sources"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no authenticated principal")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, status := s.runQuery(r, principal, req)
	writeJSON(w, status, resp)
}

// runQuery executes the retrieval + answer flow shared by the JSON and
// websocket endpoints. It returns the response payload and HTTP status.
func (s *Server) runQuery(r *http.Request, principal access.Principal, req queryRequest) (any, int) {
	ctx := r.Context()

	topK := req.TopK
	if topK <= 0 || topK > 50 {
		topK = s.cfg.TopK
	}

	if s.retriever.Empty() {
		return queryResponse{Answer: msgNoDocuments, Sources: []sourceResponse{}}, http.StatusOK
	}

	results, err := s.retriever.Retrieve(ctx, req.Query, principal, topK)
	if err != nil {
		log.Printf("server: retrieval for %s: %v", principal.ID, err)
		if errors.Is(err, retrieval.ErrBackendUnavailable) {
			return map[string]string{"error": "retrieval backend unavailable"}, http.StatusServiceUnavailable
		}
		return map[string]string{"error": "retrieval failed"}, http.StatusInternalServerError
	}

	// Empty after filtering is a defined terminal state, never a
	// generation task.
	if len(results) == 0 {
		return queryResponse{Answer: msgNoRelevant, Sources: []sourceResponse{}}, http.StatusOK
	}

	sources := make([]answer.Source, len(results))
	cited := make([]sourceResponse, len(results))
	for i, res := range results {
		sources[i] = answer.Source{
			Text:        res.Chunk.Text,
			Filename:    res.Chunk.Metadata.Filename,
			AccessLevel: res.Chunk.Metadata.AccessLevel,
			Partition:   string(res.Partition),
		}
		cited[i] = sourceResponse{
			File:        res.Chunk.Metadata.Filename,
			AccessLevel: res.Chunk.Metadata.AccessLevel,
			Partition:   string(res.Partition),
		}
	}

	ans, err := s.assembler.Answer(ctx, req.Query, sources)
	if err != nil {
		log.Printf("server: answer generation for %s: %v", principal.ID, err)
		return map[string]string{"error": "answer generation failed"}, http.StatusBadGateway
	}

	return queryResponse{Answer: ans, Sources: cited}, http.StatusOK
}

type documentResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	AccessLevel string `json:"access_level"`
	ClassGroup  string `json:"class_group,omitempty"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no authenticated principal")
		return
	}

	docs, err := s.catalog.ListDocuments(r.Context())
	if err != nil {
		log.Printf("server: listing documents: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	// The listing honors the same policy as retrieval: students only see
	// documents they could read, with the same fail-closed membership
	// handling.
	var memberships access.Memberships
	if !principal.Role.Elevated() {
		groups, err := s.catalog.Memberships(r.Context(), principal.ID)
		memberships = access.Memberships{Groups: groups, Err: err}
	}

	out := []documentResponse{}
	for _, doc := range docs {
		if d := access.Evaluate(principal, doc.Policy(), memberships); !d.Allow {
			continue
		}
		out = append(out, documentResponse{
			ID:          doc.ID,
			Filename:    doc.Filename,
			AccessLevel: string(doc.AccessLevel),
			ClassGroup:  doc.ClassGroup,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type uploadRequest struct {
	Filename          string   `json:"filename"`
	Text              string   `json:"text"`
	AccessLevel       string   `json:"access_level"`
	AllowedStudentIDs []string `json:"allowed_student_ids"`
	ClassGroup        string   `json:"class_group"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFrom(r.Context())

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "filename and text are required")
		return
	}
	level := access.AccessLevel(req.AccessLevel)
	if !level.Valid() {
		writeError(w, http.StatusBadRequest, "invalid access_level")
		return
	}

	doc := catalog.Document{
		ID:                uuid.New().String(),
		Filename:          req.Filename,
		AccessLevel:       level,
		AllowedStudentIDs: req.AllowedStudentIDs,
		ClassGroup:        req.ClassGroup,
		OwnerID:           principal.ID,
	}

	chunks, err := s.pipeline.IngestDocument(r.Context(), doc, req.Text)
	if err != nil {
		log.Printf("server: ingesting %s: %v", req.Filename, err)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	s.auditStore.Record(r.Context(), audit.Event{
		ActorID:   principal.ID,
		ActorRole: principal.Role,
		Action:    audit.ActionDocCreated,
		Subject:   doc.ID,
		Reason:    req.Filename,
	})

	if err := s.vectors.Persist(r.Context(), s.cfg.DataDir); err != nil {
		log.Printf("server: persisting vector index: %v", err)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"document_id": doc.ID,
		"chunks":      chunks,
	})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	events, err := s.auditStore.Recent(r.Context(), 200)
	if err != nil {
		log.Printf("server: listing audit events: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

type createUserRequest struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Password string   `json:"password"`
	Classes  []string `json:"classes"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	role := access.Role(req.Role)
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("server: hashing password for %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "failed to process password")
		return
	}

	user, err := s.users.CreateUser(r.Context(), auth.User{
		Email:        req.Email,
		Name:         req.Name,
		Role:         role,
		PasswordHash: hash,
	})
	if err != nil {
		log.Printf("server: creating user %s: %v", req.Email, err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	for _, class := range req.Classes {
		if err := s.catalog.AddMembership(r.Context(), user.ID, class); err != nil {
			log.Printf("server: adding %s to class %s: %v", user.ID, class, err)
			writeError(w, http.StatusInternalServerError, "failed to record class membership")
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    user.ID,
		"email": user.Email,
		"role":  string(user.Role),
	})
}
