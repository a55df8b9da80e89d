package httpserver

import (
	"fmt"
	"net/http"
	"testing"
)

func BenchmarkHandleCreateReview(b *testing.B) {
	srv := buildTestServer(b)
	cat := createCatalog(b, srv)
	owner, token := createUser(b, srv, false)
	profile := createProfile(b, srv, owner, cat)
	path := fmt.Sprintf("/api/v1/profiles/%d/reviews/", profile.ID)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := do(b, srv, http.MethodPost, path, token, map[string]any{
			"rating":        i%5 + 1,
			"text":          "Benchmark review",
			"reviewer_name": fmt.Sprintf("bench-%d", i),
		})
		if rec.Code != http.StatusCreated {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func BenchmarkHandleListProfiles(b *testing.B) {
	srv := buildTestServer(b)
	cat := createCatalog(b, srv)
	owner, token := createUser(b, srv, false)
	for i := 0; i < 50; i++ {
		createProfile(b, srv, owner, cat)
	}
	path := "/api/v1/profiles/?ordering=-rating&technology=" + cat.tech.Code

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := do(b, srv, http.MethodGet, path, token, nil)
		if rec.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}
