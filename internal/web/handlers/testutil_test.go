package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-gallery/internal/ai"
	"github.com/kozaktomas/photo-gallery/internal/config"
	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/database/mock"
	"github.com/kozaktomas/photo-gallery/internal/describe"
	"github.com/kozaktomas/photo-gallery/internal/identity"
	"github.com/kozaktomas/photo-gallery/internal/search"
	"go.uber.org/zap"
)

// testGallery holds a small populated store:
//
//	image 1: Samantha, dog 0.9
//	image 2: Samantha, Tina, dog 0.6, cat 0.8
//	image 3: no faces, no tags
type testGallery struct {
	store    *mock.Store
	resolver *identity.Resolver
	samantha int64
	tina     int64
}

func newTestGallery(t *testing.T) *testGallery {
	t.Helper()
	store := mock.NewStore()
	for range 3 {
		store.AddImage(database.Image{})
	}
	samantha := store.AddPerson(database.Person{Name: "Samantha", Embedding: []float32{1, 0, 0}, FaceCount: 2})
	tina := store.AddPerson(database.Person{Name: "Tina", Embedding: []float32{0.9, 0.1, 0}, FaceCount: 1})

	store.AssignFace(1, samantha)
	store.AssignFace(2, samantha)
	store.AssignFace(2, tina)
	store.AddTag(1, "dog", 0.9)
	store.AddTag(2, "dog", 0.6)
	store.AddTag(2, "cat", 0.8)

	resolver := identity.NewResolver(store, database.NewPersonIndex(),
		config.IdentityConfig{MinConfidence: 0.6, MaxRetries: 5}, zap.NewNop())
	if err := resolver.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("RebuildIndex() error = %v", err)
	}

	return &testGallery{store: store, resolver: resolver, samantha: samantha, tina: tina}
}

func (g *testGallery) searchHandler() *SearchHandler {
	return NewSearchHandler(search.NewEngine(g.store, g.store, zap.NewNop()), g.store)
}

func (g *testGallery) peopleHandler() *PeopleHandler {
	return NewPeopleHandler(g.store, g.store, g.resolver)
}

func (g *testGallery) imagesHandler(llm ai.Provider) *ImagesHandler {
	return NewImagesHandler(g.store, describe.New(llm, zap.NewNop()))
}

// stubProvider is an ai.Provider returning a fixed reply and recording the last call.
type stubProvider struct {
	reply    string
	err      error
	system   string
	messages []ai.Message
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Complete(ctx context.Context, system string, messages []ai.Message) (string, error) {
	p.system = system
	p.messages = messages
	return p.reply, p.err
}

func (p *stubProvider) GetUsage() ai.Usage { return ai.Usage{} }

func (p *stubProvider) ResetUsage() {}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
