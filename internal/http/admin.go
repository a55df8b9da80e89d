package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/validate"
)

type namedCodeRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Code string `json:"code" validate:"required,max=50"`
}

type technologyRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Code        *string `json:"code" validate:"omitempty,min=1,max=50"`
	Description *string `json:"description"`
	Website     *string `json:"website" validate:"omitempty,url"`
	Icon        *string `json:"icon" validate:"omitempty,max=50"`
	IsActive    *bool   `json:"is_active"`
}

type flagRequest struct {
	Value *bool `json:"value" validate:"required"`
}

type statsResponse struct {
	Profile     int64   `json:"profile"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}

type reviewDeletedResponse struct {
	Profile    int64 `json:"profile"`
	StatsStale bool  `json:"stats_stale"`
}

func (s *Server) registerAdminRoutes(r chi.Router) {
	r.Get("/technologies/", s.handleAdminListTechnologies)
	r.Post("/technologies/", s.handleAdminCreateTechnology)
	r.Patch("/technologies/{id}/", s.handleAdminUpdateTechnology)
	r.Delete("/technologies/{id}/", s.handleAdminDeleteTechnology)

	for _, kind := range []namedCatalog{employmentCatalog, levelCatalog} {
		r.Get("/"+kind.path+"/", s.handleAdminListNamed(kind))
		r.Post("/"+kind.path+"/", s.handleAdminCreateNamed(kind))
		r.Put("/"+kind.path+"/{id}/", s.handleAdminUpdateNamed(kind))
		r.Delete("/"+kind.path+"/{id}/", s.handleAdminDeleteNamed(kind))
	}

	r.Get("/users/", s.handleAdminListUsers)
	r.Post("/users/{id}/active/", s.handleAdminSetUserActive)
	r.Post("/users/{id}/staff/", s.handleAdminSetUserStaff)

	r.Get("/reviews/", s.handleAdminListReviews)
	r.Post("/reviews/{id}/verify/", s.handleAdminVerifyReview)
	r.Delete("/reviews/{id}/", s.handleAdminDeleteReview)

	r.Post("/contacts/{id}/verify/", s.handleAdminVerifyContact)
	r.Post("/profiles/{id}/recompute-stats/", s.handleAdminRecomputeStats)
}

func (s *Server) handleAdminListTechnologies(w http.ResponseWriter, r *http.Request) {
	techs, err := s.repo.Catalog.ListTechnologies(r.Context(), false)
	if err != nil {
		s.respondServiceError(w, r, err, "list technologies")
		return
	}
	usage, err := s.repo.Catalog.TechnologyUsage(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err, "list technologies")
		return
	}
	out := make([]technologyUsageResponse, 0, len(techs))
	for _, t := range techs {
		out = append(out, technologyUsageResponse{
			technologyResponse: toTechnologyResponse(t),
			ProfilesCount:      usage[t.ID].Profiles,
			ProjectsCount:      usage[t.ID].Projects,
		})
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminCreateTechnology(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTechnology(w, r)
	if !ok {
		return
	}
	errs := validate.Errors{}
	if req.Name == nil || *req.Name == "" {
		errs.Add("name", "This field is required.")
	}
	if req.Code == nil || *req.Code == "" {
		errs.Add("code", "This field is required.")
	}
	if err := errs.Err(); err != nil {
		s.respondServiceError(w, r, err, "create technology")
		return
	}

	tech, err := s.repo.Catalog.CreateTechnology(r.Context(), req.params())
	if err != nil {
		s.respondServiceError(w, r, err, "create technology")
		return
	}
	s.invalidateCatalog(r.Context())
	s.respondJSON(w, http.StatusCreated, toTechnologyResponse(tech))
}

func (s *Server) handleAdminUpdateTechnology(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeTechnology(w, r)
	if !ok {
		return
	}
	tech, err := s.repo.Catalog.UpdateTechnology(r.Context(), id, req.params())
	if err != nil {
		s.respondServiceError(w, r, err, "update technology")
		return
	}
	s.invalidateCatalog(r.Context())
	s.respondJSON(w, http.StatusOK, toTechnologyResponse(tech))
}

func (s *Server) handleAdminDeleteTechnology(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.repo.Catalog.DeleteTechnology(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err, "delete technology")
		return
	}
	s.invalidateCatalog(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decodeTechnology(w http.ResponseWriter, r *http.Request) (technologyRequest, bool) {
	var req technologyRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return req, false
	}
	req.Name = trimPtr(req.Name)
	req.Code = trimPtr(req.Code)
	req.Website = trimPtr(req.Website)
	req.Icon = trimPtr(req.Icon)
	if err := validate.Struct(req); err != nil {
		s.respondServiceError(w, r, err, "validate technology")
		return req, false
	}
	return req, true
}

func (req technologyRequest) params() repository.TechnologyParams {
	return repository.TechnologyParams{
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
		Website:     req.Website,
		Icon:        req.Icon,
		IsActive:    req.IsActive,
	}
}

// namedCatalog adapts employment types and specialist levels, which share a
// shape, to one set of handlers.
type namedCatalog struct {
	path   string
	noun   string
	list   func(*repository.CatalogRepository, *http.Request) ([]namedCodeResponse, error)
	usage  func(*repository.CatalogRepository, *http.Request) (map[int64]repository.UsageCount, error)
	create func(*repository.CatalogRepository, *http.Request, repository.NamedCodeParams) (namedCodeResponse, error)
	update func(*repository.CatalogRepository, *http.Request, int64, repository.NamedCodeParams) (namedCodeResponse, error)
	delete func(*repository.CatalogRepository, *http.Request, int64) error
}

var employmentCatalog = namedCatalog{
	path: "employment-types",
	noun: "employment type",
	list: func(c *repository.CatalogRepository, r *http.Request) ([]namedCodeResponse, error) {
		rows, err := c.ListEmploymentTypes(r.Context())
		out := make([]namedCodeResponse, 0, len(rows))
		for _, e := range rows {
			out = append(out, employmentResponse(e))
		}
		return out, err
	},
	usage: func(c *repository.CatalogRepository, r *http.Request) (map[int64]repository.UsageCount, error) {
		return c.EmploymentUsage(r.Context())
	},
	create: func(c *repository.CatalogRepository, r *http.Request, p repository.NamedCodeParams) (namedCodeResponse, error) {
		e, err := c.CreateEmploymentType(r.Context(), p)
		return employmentResponse(e), err
	},
	update: func(c *repository.CatalogRepository, r *http.Request, id int64, p repository.NamedCodeParams) (namedCodeResponse, error) {
		e, err := c.UpdateEmploymentType(r.Context(), id, p)
		return employmentResponse(e), err
	},
	delete: func(c *repository.CatalogRepository, r *http.Request, id int64) error {
		return c.DeleteEmploymentType(r.Context(), id)
	},
}

var levelCatalog = namedCatalog{
	path: "specialist-levels",
	noun: "specialist level",
	list: func(c *repository.CatalogRepository, r *http.Request) ([]namedCodeResponse, error) {
		rows, err := c.ListSpecialistLevels(r.Context())
		out := make([]namedCodeResponse, 0, len(rows))
		for _, l := range rows {
			out = append(out, levelResponse(l))
		}
		return out, err
	},
	usage: func(c *repository.CatalogRepository, r *http.Request) (map[int64]repository.UsageCount, error) {
		return c.LevelUsage(r.Context())
	},
	create: func(c *repository.CatalogRepository, r *http.Request, p repository.NamedCodeParams) (namedCodeResponse, error) {
		l, err := c.CreateSpecialistLevel(r.Context(), p)
		return levelResponse(l), err
	},
	update: func(c *repository.CatalogRepository, r *http.Request, id int64, p repository.NamedCodeParams) (namedCodeResponse, error) {
		l, err := c.UpdateSpecialistLevel(r.Context(), id, p)
		return levelResponse(l), err
	},
	delete: func(c *repository.CatalogRepository, r *http.Request, id int64) error {
		return c.DeleteSpecialistLevel(r.Context(), id)
	},
}

func employmentResponse(e domain.EmploymentType) namedCodeResponse {
	return namedCodeResponse{ID: e.ID, Name: e.Name, Code: e.Code}
}

func levelResponse(l domain.SpecialistLevel) namedCodeResponse {
	return namedCodeResponse{ID: l.ID, Name: l.Name, Code: l.Code}
}

func (s *Server) handleAdminListNamed(kind namedCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := kind.list(s.repo.Catalog, r)
		if err != nil {
			s.respondServiceError(w, r, err, "list "+kind.noun+"s")
			return
		}
		usage, err := kind.usage(s.repo.Catalog, r)
		if err != nil {
			s.respondServiceError(w, r, err, "list "+kind.noun+"s")
			return
		}
		out := make([]catalogUsageResponse, 0, len(rows))
		for _, row := range rows {
			out = append(out, toCatalogUsage(row.ID, row.Name, row.Code, usage))
		}
		s.respondJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleAdminCreateNamed(kind namedCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, ok := s.decodeNamedCode(w, r)
		if !ok {
			return
		}
		row, err := kind.create(s.repo.Catalog, r, params)
		if err != nil {
			s.respondServiceError(w, r, err, "create "+kind.noun)
			return
		}
		s.invalidateCatalog(r.Context())
		s.respondJSON(w, http.StatusCreated, row)
	}
}

func (s *Server) handleAdminUpdateNamed(kind namedCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.pathID(w, r)
		if !ok {
			return
		}
		params, ok := s.decodeNamedCode(w, r)
		if !ok {
			return
		}
		row, err := kind.update(s.repo.Catalog, r, id, params)
		if err != nil {
			s.respondServiceError(w, r, err, "update "+kind.noun)
			return
		}
		s.invalidateCatalog(r.Context())
		s.respondJSON(w, http.StatusOK, row)
	}
}

func (s *Server) handleAdminDeleteNamed(kind namedCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.pathID(w, r)
		if !ok {
			return
		}
		if err := kind.delete(s.repo.Catalog, r, id); err != nil {
			s.respondServiceError(w, r, err, "delete "+kind.noun)
			return
		}
		s.invalidateCatalog(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) decodeNamedCode(w http.ResponseWriter, r *http.Request) (repository.NamedCodeParams, bool) {
	var req namedCodeRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return repository.NamedCodeParams{}, false
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.TrimSpace(req.Code)
	if err := validate.Struct(req); err != nil {
		s.respondServiceError(w, r, err, "validate catalog entry")
		return repository.NamedCodeParams{}, false
	}
	return repository.NamedCodeParams{Name: req.Name, Code: req.Code}, true
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	users, err := s.repo.Users.List(r.Context(), repository.UserListFilters{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.respondServiceError(w, r, err, "list users")
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminSetUserActive(w http.ResponseWriter, r *http.Request) {
	s.setUserFlag(w, r, "update user", s.repo.Users.SetActive)
}

func (s *Server) handleAdminSetUserStaff(w http.ResponseWriter, r *http.Request) {
	s.setUserFlag(w, r, "update user", s.repo.Users.SetStaff)
}

func (s *Server) setUserFlag(w http.ResponseWriter, r *http.Request, action string, set func(ctx context.Context, id int64, v bool) (domain.User, error)) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req flagRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondServiceError(w, r, err, action)
		return
	}
	user, err := set(r.Context(), id, *req.Value)
	if err != nil {
		s.respondServiceError(w, r, err, action)
		return
	}
	s.logger.Info("user flag changed", "user_id", id, "path", r.URL.Path, "value", *req.Value)
	s.respondJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleAdminListReviews(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := s.pageParams(w, r)
	if !ok {
		return
	}
	filters := repository.ReviewAdminFilters{Limit: limit, Offset: offset}
	query := r.URL.Query()
	if val := strings.TrimSpace(query.Get("profile")); val != "" {
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil || id <= 0 {
			s.respondJSON(w, http.StatusBadRequest, validate.Field("profile", "Enter a valid profile id."))
			return
		}
		filters.ProfileID = &id
	}
	if val := strings.TrimSpace(query.Get("verified")); val != "" {
		verified, err := strconv.ParseBool(val)
		if err != nil {
			s.respondJSON(w, http.StatusBadRequest, validate.Field("verified", "Enter true or false."))
			return
		}
		filters.Verified = &verified
	}

	items, err := s.repo.Reviews.List(r.Context(), filters)
	if err != nil {
		s.respondServiceError(w, r, err, "list reviews")
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponses(items))
}

func (s *Server) handleAdminVerifyReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	review, err := s.repo.Reviews.Verify(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "verify review")
		return
	}
	s.invalidateProfile(r.Context(), review.ProfileID)
	s.respondJSON(w, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleAdminDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	profileID, err := s.reviews.Delete(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "delete review")
		return
	}
	s.respondJSON(w, http.StatusOK, reviewDeletedResponse{Profile: profileID, StatsStale: true})
}

func (s *Server) handleAdminVerifyContact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	c, err := s.repo.Contacts.VerifyContact(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "verify contact")
		return
	}
	s.invalidateProfile(r.Context(), c.ProfileID)
	s.respondJSON(w, http.StatusOK, toContactResponse(c))
}

func (s *Server) handleAdminRecomputeStats(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	stats, err := s.reviews.Recompute(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "recompute stats")
		return
	}
	s.respondJSON(w, http.StatusOK, statsResponse{
		Profile:     id,
		Rating:      domain.RoundToOneDecimal(stats.Rating),
		ReviewCount: stats.ReviewCount,
	})
}

func (s *Server) pageParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	query := r.URL.Query()
	var limit, offset int
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n <= 0 {
			s.respondJSON(w, http.StatusBadRequest, validate.Field("limit", "Enter a positive whole number."))
			return 0, 0, false
		}
		limit = n
	}
	if val := strings.TrimSpace(query.Get("offset")); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			s.respondJSON(w, http.StatusBadRequest, validate.Field("offset", "Enter a non-negative whole number."))
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
