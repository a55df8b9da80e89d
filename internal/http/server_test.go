package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/specialist-directory/internal/auth"
	"github.com/Clark-Hu/specialist-directory/internal/cache"
	"github.com/Clark-Hu/specialist-directory/internal/config"
	"github.com/Clark-Hu/specialist-directory/internal/domain"
	"github.com/Clark-Hu/specialist-directory/internal/logger"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/testdb"
)

var fixtureSeq atomic.Int64

func buildTestServer(tb testing.TB) *Server {
	tb.Helper()
	return buildTestServerWithCache(tb, cache.New(context.Background(), cache.Options{}))
}

func buildTestServerWithCache(tb testing.TB, c *cache.Cache) *Server {
	tb.Helper()
	cfg := config.Config{
		Port:             "0",
		ReadTimeoutSecs:  15,
		WriteTimeoutSecs: 15,
		IdleTimeoutSecs:  60,
	}

	pool := testdb.New(tb, 42000, "directory_test_handlers")
	repo := repository.NewWithPool(pool)
	tokens := auth.NewTokens("access-secret", "refresh-secret", 5*time.Minute, time.Hour)
	authSvc := auth.NewService(repo.Users, tokens, auth.Options{BcryptCost: bcrypt.MinCost})

	return New(cfg, Deps{
		Repo:   repo,
		Auth:   authSvc,
		Cache:  c,
		Logger: logger.Nop(),
	})
}

// createUser inserts an account directly and returns it with an access token.
func createUser(tb testing.TB, srv *Server, staff bool) (domain.User, string) {
	tb.Helper()
	ctx := context.Background()
	email := fmt.Sprintf("user%d@example.com", fixtureSeq.Add(1))
	hash, err := srv.auth.HashPassword("password123")
	if err != nil {
		tb.Fatalf("hash: %v", err)
	}
	u, err := srv.repo.Users.Create(ctx, repository.UserCreateParams{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      staff,
	})
	if err != nil {
		tb.Fatalf("create user: %v", err)
	}
	pair, err := srv.auth.ObtainPair(ctx, email, "password123")
	if err != nil {
		tb.Fatalf("obtain pair: %v", err)
	}
	return u, pair.Access
}

type catalogFixture struct {
	employment domain.EmploymentType
	level      domain.SpecialistLevel
	tech       domain.Technology
}

func createCatalog(tb testing.TB, srv *Server) catalogFixture {
	tb.Helper()
	ctx := context.Background()
	n := fixtureSeq.Add(1)

	e, err := srv.repo.Catalog.CreateEmploymentType(ctx, repository.NamedCodeParams{
		Name: fmt.Sprintf("Full-time %d", n), Code: fmt.Sprintf("full_time_%d", n),
	})
	if err != nil {
		tb.Fatalf("create employment type: %v", err)
	}
	l, err := srv.repo.Catalog.CreateSpecialistLevel(ctx, repository.NamedCodeParams{
		Name: fmt.Sprintf("Senior %d", n), Code: fmt.Sprintf("senior_%d", n),
	})
	if err != nil {
		tb.Fatalf("create level: %v", err)
	}
	name, code := fmt.Sprintf("Go %d", n), fmt.Sprintf("go_%d", n)
	tech, err := srv.repo.Catalog.CreateTechnology(ctx, repository.TechnologyParams{Name: &name, Code: &code})
	if err != nil {
		tb.Fatalf("create technology: %v", err)
	}
	return catalogFixture{employment: e, level: l, tech: tech}
}

func createProfile(tb testing.TB, srv *Server, owner domain.User, cat catalogFixture) domain.Profile {
	tb.Helper()
	p, err := srv.repo.Profiles.Create(context.Background(), repository.ProfileCreateParams{
		UserID:        owner.ID,
		FirstName:     "Grace",
		LastName:      "Hopper",
		Position:      "Backend developer",
		EmploymentID:  cat.employment.ID,
		LevelID:       cat.level.ID,
		Experience:    "7 years",
		TechnologyIDs: []int64{cat.tech.ID},
	})
	if err != nil {
		tb.Fatalf("create profile: %v", err)
	}
	return p
}

// do sends a request through the full router.
func do(tb testing.TB, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	tb.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			tb.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](tb testing.TB, rec *httptest.ResponseRecorder) T {
	tb.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		tb.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(tb testing.TB, rec *httptest.ResponseRecorder, want int) {
	tb.Helper()
	if rec.Code != want {
		tb.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func TestHealthz_NoStore(t *testing.T) {
	srv := New(config.Config{}, Deps{Logger: logger.Nop()})
	rec := do(t, srv, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusServiceUnavailable)
}

func TestRequestIDHeader(t *testing.T) {
	srv := New(config.Config{}, Deps{Logger: logger.Nop()})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
}
