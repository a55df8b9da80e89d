package httpserver

import (
	"net/url"
	"testing"

	"github.com/Clark-Hu/specialist-directory/internal/repository"
)

func FuzzBuildProfileFilters(f *testing.F) {
	seeds := []string{
		"technology=go,python&employment=full_time&level=senior",
		"min_rating=4.5&min_experience=3",
		"ordering=-rating,created_at",
		"min_rating=NaN",
		"limit=200&offset=-1",
		"",
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		values, err := url.ParseQuery(raw)
		if err != nil {
			return
		}
		filters, err := buildProfileFilters(values)
		if err != nil {
			return
		}
		if filters.MinRating != nil && (*filters.MinRating < 0 || *filters.MinRating > 5) {
			t.Fatalf("min_rating out of range: %v", *filters.MinRating)
		}
		for _, key := range filters.Ordering {
			if _, ok := repository.ProfileOrderFields[trimDesc(key)]; !ok {
				t.Fatalf("unknown ordering key accepted: %q", key)
			}
		}
	})
}

func trimDesc(key string) string {
	if len(key) > 0 && key[0] == '-' {
		return key[1:]
	}
	return key
}
