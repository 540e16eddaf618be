package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/answer"
	"github.com/ziadkadry99/classrag/internal/audit"
	"github.com/ziadkadry99/classrag/internal/auth"
	"github.com/ziadkadry99/classrag/internal/catalog"
	"github.com/ziadkadry99/classrag/internal/db"
	"github.com/ziadkadry99/classrag/internal/ingest"
	"github.com/ziadkadry99/classrag/internal/llm"
	"github.com/ziadkadry99/classrag/internal/retrieval"
	"github.com/ziadkadry99/classrag/internal/vectordb"
)

// testEmbedder produces deterministic vectors from character content, so
// similar texts rank near each other without a real embedding service.
type testEmbedder struct{ dims int }

func (e *testEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dims)
		for j, ch := range text {
			vec[(int(ch)+j)%e.dims] += 1.0
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range vec {
				vec[j] = float32(float64(vec[j]) / norm)
			}
		}
		out[i] = vec
	}
	return out, nil
}

func (e *testEmbedder) Dimensions() int { return e.dims }
func (e *testEmbedder) Name() string    { return "test" }

type stubProvider struct{ reply string }

func (p *stubProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Content: p.reply}, nil
}

func (p *stubProvider) Name() string { return "stub" }

type testEnv struct {
	server  *Server
	catalog *catalog.Store
	users   *auth.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cat := catalog.NewStore(database)
	users := auth.NewStore(database)
	auditStore := audit.NewStore(database)
	vectors := vectordb.NewChromemStore(&testEmbedder{dims: 64})
	tokens := auth.NewTokens("test-secret", time.Hour)

	pipeline := &ingest.Pipeline{
		Catalog: cat,
		Vectors: vectors,
		Chunker: ingest.DefaultChunker(),
	}
	retriever := retrieval.NewRetriever(vectors, cat, auditStore)
	assembler := answer.NewAssembler(&stubProvider{reply: "Here is what the documents say."}, "stub-model")

	srv := New(Config{Port: 0, DataDir: t.TempDir(), TopK: 5}, tokens, users, cat, auditStore, vectors, pipeline, retriever, assembler)
	return &testEnv{server: srv, catalog: cat, users: users}
}

func (env *testEnv) addUser(t *testing.T, email string, role access.Role, classes ...string) {
	t.Helper()
	hash, err := auth.HashPassword("pass-" + email)
	if err != nil {
		t.Fatal(err)
	}
	u, err := env.users.CreateUser(context.Background(), auth.User{
		Email: email, Name: email, Role: role, PasswordHash: hash,
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
	for _, class := range classes {
		if err := env.catalog.AddMembership(context.Background(), u.ID, class); err != nil {
			t.Fatal(err)
		}
	}
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	rec := env.do(t, "POST", "/api/login", "", map[string]string{
		"email": email, "password": "pass-" + email,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["token"] == "" {
		t.Fatalf("login %s: no token in %s", email, rec.Body)
	}
	return resp["token"]
}

func decodeQuery(t *testing.T, rec *httptest.ResponseRecorder) queryResponse {
	t.Helper()
	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding query response %s: %v", rec.Body, err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status %d", rec.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "teacher@school.test", access.RoleTeacher)

	rec := env.do(t, "POST", "/api/login", "", map[string]string{
		"email": "teacher@school.test", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d, want 401", rec.Code)
	}

	rec = env.do(t, "POST", "/api/login", "", map[string]string{
		"email": "nobody@school.test", "password": "x",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: status %d, want 401", rec.Code)
	}

	token := env.login(t, "teacher@school.test")
	if token == "" {
		t.Fatal("no token")
	}
}

func TestQueryRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "POST", "/api/query", "", map[string]any{"query": "hi"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated query: status %d, want 401", rec.Code)
	}
}

func TestQueryEmptyCorpus(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "s1@school.test", access.RoleStudent)
	token := env.login(t, "s1@school.test")

	rec := env.do(t, "POST", "/api/query", token, map[string]any{"query": "anything"})
	if rec.Code != http.StatusOK {
		t.Fatalf("query on empty corpus: status %d: %s", rec.Code, rec.Body)
	}
	resp := decodeQuery(t, rec)
	if resp.Answer != msgNoDocuments {
		t.Errorf("answer: %q", resp.Answer)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources: %v", resp.Sources)
	}
}

func TestUploadRequiresElevatedRole(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "s1@school.test", access.RoleStudent)
	token := env.login(t, "s1@school.test")

	rec := env.do(t, "POST", "/api/documents", token, map[string]any{
		"filename": "x.md", "text": "hello", "access_level": "public",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("student upload: status %d, want 403", rec.Code)
	}
}

func TestUploadAndQueryVisibility(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "teacher@school.test", access.RoleTeacher)
	env.addUser(t, "s1@school.test", access.RoleStudent)

	teacherToken := env.login(t, "teacher@school.test")
	studentToken := env.login(t, "s1@school.test")

	upload := func(filename, text, level string) {
		t.Helper()
		rec := env.do(t, "POST", "/api/documents", teacherToken, map[string]any{
			"filename": filename, "text": text, "access_level": level,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("uploading %s: status %d: %s", filename, rec.Code, rec.Body)
		}
	}
	upload("syllabus.md", "photosynthesis converts light into chemical energy", "public")
	upload("answer-key.md", "photosynthesis exam answer key for grading", "teacher_only")

	// The student gets an answer grounded only in public content.
	rec := env.do(t, "POST", "/api/query", studentToken, map[string]any{
		"query": "photosynthesis",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("student query: status %d: %s", rec.Code, rec.Body)
	}
	resp := decodeQuery(t, rec)
	if resp.Answer != "Here is what the documents say." {
		t.Errorf("student answer: %q", resp.Answer)
	}
	if len(resp.Sources) == 0 {
		t.Fatal("student query returned no sources")
	}
	for _, src := range resp.Sources {
		if src.File == "answer-key.md" {
			t.Error("teacher_only document cited to a student")
		}
		if src.AccessLevel != "public" {
			t.Errorf("student source access level: %q", src.AccessLevel)
		}
	}

	// The teacher sees both documents.
	rec = env.do(t, "POST", "/api/query", teacherToken, map[string]any{
		"query": "photosynthesis",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("teacher query: status %d: %s", rec.Code, rec.Body)
	}
	resp = decodeQuery(t, rec)
	files := make(map[string]bool)
	for _, src := range resp.Sources {
		files[src.File] = true
	}
	if !files["syllabus.md"] || !files["answer-key.md"] {
		t.Errorf("teacher sources: %v", resp.Sources)
	}
}

func TestListDocumentsIsRoleFiltered(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "teacher@school.test", access.RoleTeacher)
	env.addUser(t, "s1@school.test", access.RoleStudent, "Algebra101")
	env.addUser(t, "s2@school.test", access.RoleStudent)

	teacherToken := env.login(t, "teacher@school.test")

	for _, doc := range []map[string]any{
		{"filename": "public.md", "text": "open notes", "access_level": "public"},
		{"filename": "private.md", "text": "grading notes", "access_level": "teacher_only"},
		{"filename": "algebra.md", "text": "class worksheet", "access_level": "class_group", "class_group": "Algebra101"},
	} {
		rec := env.do(t, "POST", "/api/documents", teacherToken, doc)
		if rec.Code != http.StatusCreated {
			t.Fatalf("upload %v: status %d: %s", doc["filename"], rec.Code, rec.Body)
		}
	}

	listFiles := func(token string) map[string]bool {
		t.Helper()
		rec := env.do(t, "GET", "/api/documents", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list documents: status %d: %s", rec.Code, rec.Body)
		}
		var docs []documentResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &docs); err != nil {
			t.Fatal(err)
		}
		files := make(map[string]bool)
		for _, d := range docs {
			files[d.Filename] = true
		}
		return files
	}

	teacherFiles := listFiles(teacherToken)
	if len(teacherFiles) != 3 {
		t.Errorf("teacher listing: %v", teacherFiles)
	}

	memberFiles := listFiles(env.login(t, "s1@school.test"))
	if !memberFiles["public.md"] || !memberFiles["algebra.md"] || memberFiles["private.md"] {
		t.Errorf("class member listing: %v", memberFiles)
	}

	outsiderFiles := listFiles(env.login(t, "s2@school.test"))
	if !outsiderFiles["public.md"] || outsiderFiles["algebra.md"] || outsiderFiles["private.md"] {
		t.Errorf("non-member listing: %v", outsiderFiles)
	}
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "teacher@school.test", access.RoleTeacher)
	env.addUser(t, "admin@school.test", access.RoleAdmin)

	body := map[string]any{
		"email": "new@school.test", "name": "New", "role": "student",
		"password": "secret", "classes": []string{"Algebra101"},
	}

	rec := env.do(t, "POST", "/api/users", env.login(t, "teacher@school.test"), body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("teacher creating user: status %d, want 403", rec.Code)
	}

	rec = env.do(t, "POST", "/api/users", env.login(t, "admin@school.test"), body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin creating user: status %d: %s", rec.Code, rec.Body)
	}

	// The new account can log in and carries its class membership.
	loginRec := env.do(t, "POST", "/api/login", "", map[string]string{
		"email": "new@school.test", "password": "secret",
	})
	if loginRec.Code != http.StatusOK {
		t.Fatalf("new user login: status %d", loginRec.Code)
	}
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "teacher@school.test", access.RoleTeacher)
	env.addUser(t, "s1@school.test", access.RoleStudent)

	teacherToken := env.login(t, "teacher@school.test")
	rec := env.do(t, "POST", "/api/documents", teacherToken, map[string]any{
		"filename": "notes.md", "text": "some notes", "access_level": "public",
	})
	if rec.Code != http.StatusCreated {
		t.Fatal(rec.Body)
	}

	// Students cannot read the audit trail.
	rec = env.do(t, "GET", "/api/audit", env.login(t, "s1@school.test"), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("student audit access: status %d, want 403", rec.Code)
	}

	rec = env.do(t, "GET", "/api/audit", teacherToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: status %d: %s", rec.Code, rec.Body)
	}
	var events []audit.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	var sawUpload bool
	for _, e := range events {
		if e.Action == audit.ActionDocCreated {
			sawUpload = true
		}
	}
	if !sawUpload {
		t.Error("document upload missing from audit trail")
	}
}
