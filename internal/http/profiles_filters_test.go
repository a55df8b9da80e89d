package httpserver

import (
	"net/url"
	"slices"
	"testing"

	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/validate"
)

func TestBuildProfileFilters(t *testing.T) {
	values, _ := url.ParseQuery("technology=go,%20python&technology=rust&employment=%20full_time%20&level=senior" +
		"&min_rating=4.5&min_experience=3&search=%20backend%20&ordering=-rating,created_at&limit=150&offset=20")

	filters, err := buildProfileFilters(values)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(filters.Technologies, []string{"go", "python", "rust"}) {
		t.Fatalf("technologies = %v", filters.Technologies)
	}
	if filters.Employment != "full_time" || filters.Level != "senior" {
		t.Fatalf("employment/level = %q/%q", filters.Employment, filters.Level)
	}
	if filters.MinRating == nil || *filters.MinRating != 4.5 {
		t.Fatalf("min_rating = %v", filters.MinRating)
	}
	if filters.MinExperience == nil || *filters.MinExperience != 3 {
		t.Fatalf("min_experience = %v", filters.MinExperience)
	}
	if filters.Search != "backend" {
		t.Fatalf("search not trimmed: %q", filters.Search)
	}
	if !slices.Equal(filters.Ordering, []string{"-rating", "created_at"}) {
		t.Fatalf("ordering = %v", filters.Ordering)
	}
	// The repository clamps; the parser keeps what was asked for.
	if filters.Limit != 150 || filters.Offset != 20 {
		t.Fatalf("limit/offset = %d/%d", filters.Limit, filters.Offset)
	}
}

func TestBuildProfileFilters_Invalid(t *testing.T) {
	tests := []struct {
		query string
		field string
	}{
		{"min_rating=abc", "min_rating"},
		{"min_rating=5.5", "min_rating"},
		{"min_rating=-1", "min_rating"},
		{"min_rating=NaN", "min_rating"},
		{"min_experience=-2", "min_experience"},
		{"min_experience=two", "min_experience"},
		{"ordering=salary", "ordering"},
		{"ordering=-rating,-password", "ordering"},
		{"limit=0", "limit"},
		{"offset=-1", "offset"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			_, err := buildProfileFilters(values)
			verr, ok := validate.As(err)
			if !ok || len(verr[tt.field]) == 0 {
				t.Fatalf("err = %v, want field error on %s", err, tt.field)
			}
		})
	}
}

func TestBuildProfileFilters_Empty(t *testing.T) {
	filters, err := buildProfileFilters(url.Values{"technology": {" , ,"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters.Technologies) != 0 || filters.MinRating != nil || len(filters.Ordering) != 0 {
		t.Fatalf("filters = %+v", filters)
	}
}

func TestNextPageURL(t *testing.T) {
	current, _ := url.Parse("/api/v1/profiles/?level=senior&limit=2")

	next := nextPageURL(current, repository.ProfileListFilters{Limit: 2}, 2, 5)
	if next == nil {
		t.Fatalf("expected a next link")
	}
	parsed, _ := url.Parse(*next)
	q := parsed.Query()
	if parsed.Path != "/api/v1/profiles/" || q.Get("offset") != "2" || q.Get("limit") != "2" || q.Get("level") != "senior" {
		t.Fatalf("next = %s", *next)
	}

	if last := nextPageURL(current, repository.ProfileListFilters{Limit: 2, Offset: 4}, 1, 5); last != nil {
		t.Fatalf("last page next = %s", *last)
	}
	if empty := nextPageURL(current, repository.ProfileListFilters{}, 0, 0); empty != nil {
		t.Fatalf("empty page next = %s", *empty)
	}
}

func TestBearerTokenFromHeader(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc ", "abc", true},
		{"  Bearer   abc", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Token abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		token, ok := bearerTokenFromHeader(c.header)
		if ok != c.ok || token != c.token {
			t.Fatalf("bearerTokenFromHeader(%q) = %q, %v; want %q, %v", c.header, token, ok, c.token, c.ok)
		}
	}
}

func TestCheckChoice(t *testing.T) {
	if err := checkChoice(nil, "network_type", "github", []string{"github", "linkedin"}); err != nil {
		t.Fatalf("valid choice err = %v", err)
	}
	err := checkChoice(nil, "network_type", "myspace", []string{"github"})
	if verr, ok := validate.As(err); !ok || len(verr["network_type"]) != 1 {
		t.Fatalf("invalid choice err = %v", err)
	}
	err = checkChoice(validate.Field("url", "Enter a valid URL."), "network_type", "myspace", []string{"github"})
	if verr, ok := validate.As(err); !ok || len(verr["url"]) != 1 || len(verr["network_type"]) != 1 {
		t.Fatalf("merged err = %v", err)
	}
}
