package httpserver

import (
	"context"
	"net/http"

	"github.com/Clark-Hu/specialist-directory/internal/cache"
)

func (s *Server) handleListTechnologies(w http.ResponseWriter, r *http.Request) {
	var out []technologyResponse
	s.serveCached(w, r, cache.KeyTechnologies, []string{cache.GenCatalog}, &out, func(ctx context.Context) (any, error) {
		techs, err := s.repo.Catalog.ListTechnologies(ctx, true)
		if err != nil {
			return nil, err
		}
		items := make([]technologyResponse, 0, len(techs))
		for _, t := range techs {
			items = append(items, toTechnologyResponse(t))
		}
		return items, nil
	})
}

func (s *Server) handleListEmploymentTypes(w http.ResponseWriter, r *http.Request) {
	var out []namedCodeResponse
	s.serveCached(w, r, cache.KeyEmploymentTypes, []string{cache.GenCatalog}, &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.Catalog.ListEmploymentTypes(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]namedCodeResponse, 0, len(rows))
		for _, e := range rows {
			items = append(items, namedCodeResponse{ID: e.ID, Name: e.Name, Code: e.Code})
		}
		return items, nil
	})
}

func (s *Server) handleListSpecialistLevels(w http.ResponseWriter, r *http.Request) {
	var out []namedCodeResponse
	s.serveCached(w, r, cache.KeySpecialistLevels, []string{cache.GenCatalog}, &out, func(ctx context.Context) (any, error) {
		rows, err := s.repo.Catalog.ListSpecialistLevels(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]namedCodeResponse, 0, len(rows))
		for _, l := range rows {
			items = append(items, namedCodeResponse{ID: l.ID, Name: l.Name, Code: l.Code})
		}
		return items, nil
	})
}

// serveCached answers from the cache when key is present, otherwise calls
// load and writes its result. hit receives the decoded cache value. The result
// is stored only if none of genKeys was bumped while load ran.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string, genKeys []string, hit any, load func(context.Context) (any, error)) {
	ctx := r.Context()
	if ok, err := s.cache.GetJSON(ctx, key, hit); err == nil && ok {
		s.respondJSON(w, http.StatusOK, hit)
		return
	}

	stamp, stampErr := s.cache.Stamp(ctx, genKeys...)
	payload, err := load(ctx)
	if err != nil {
		s.respondServiceError(w, r, err, "load "+key)
		return
	}
	if stampErr == nil {
		if _, err := s.cache.SetJSONIfCurrent(ctx, key, payload, 0, stamp); err != nil {
			s.logger.Warn("cache store failed", "key", key, "error", err)
		}
	}
	s.respondJSON(w, http.StatusOK, payload)
}

// profileOwner returns the owner of a profile, from the cache when possible.
// Ownership never changes after creation.
func (s *Server) profileOwner(ctx context.Context, profileID int64) (int64, error) {
	key := cache.ProfileOwnerKey(profileID)
	var ownerID int64
	if ok, err := s.cache.GetJSON(ctx, key, &ownerID); err == nil && ok {
		return ownerID, nil
	}
	ownerID, err := s.repo.Profiles.OwnerID(ctx, profileID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.SetJSON(ctx, key, ownerID, 0); err != nil {
		s.logger.Warn("cache store failed", "key", key, "error", err)
	}
	return ownerID, nil
}

func (s *Server) invalidateCatalog(ctx context.Context) {
	if err := s.cache.InvalidateCatalog(ctx); err != nil {
		s.logger.Warn("catalog cache invalidation failed", "error", err)
	}
}

func (s *Server) invalidateProfile(ctx context.Context, profileID int64) {
	if err := s.cache.InvalidateProfile(ctx, profileID); err != nil {
		s.logger.Warn("profile cache invalidation failed", "profile_id", profileID, "error", err)
	}
}
