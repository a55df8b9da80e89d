package httpserver

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/specialist-directory/internal/cache"
	"github.com/Clark-Hu/specialist-directory/internal/domain"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/reviews"
	"github.com/Clark-Hu/specialist-directory/internal/validate"
)

type profileCreateRequest struct {
	Photo        string   `json:"photo" validate:"omitempty,url"`
	FirstName    string   `json:"first_name" validate:"required,max=100"`
	LastName     string   `json:"last_name" validate:"required,max=100"`
	Position     string   `json:"position" validate:"required,max=100"`
	Employment   string   `json:"employment" validate:"required"`
	Level        string   `json:"level" validate:"required"`
	Experience   string   `json:"experience" validate:"required,max=20"`
	Technologies []string `json:"technologies"`
}

type profileUpdateRequest struct {
	Photo        *string   `json:"photo" validate:"omitempty,url"`
	FirstName    *string   `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName     *string   `json:"last_name" validate:"omitempty,min=1,max=100"`
	Position     *string   `json:"position" validate:"omitempty,min=1,max=100"`
	Employment   *string   `json:"employment" validate:"omitempty,min=1"`
	Level        *string   `json:"level" validate:"omitempty,min=1"`
	Experience   *string   `json:"experience" validate:"omitempty,min=1,max=20"`
	Technologies *[]string `json:"technologies"`
}

type reviewCreateRequest struct {
	Project          *int64 `json:"project"`
	Rating           int    `json:"rating"`
	Text             string `json:"text"`
	ReviewerName     string `json:"reviewer_name"`
	ReviewerPosition string `json:"reviewer_position"`
	ReviewerCompany  string `json:"reviewer_company"`
}

type projectCreateRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"required"`
	StartDate    string   `json:"start_date" validate:"required"`
	EndDate      *string  `json:"end_date"`
	Status       string   `json:"status" validate:"omitempty,oneof=ongoing completed cancelled"`
	Client       string   `json:"client" validate:"max=100"`
	URL          string   `json:"url" validate:"omitempty,url"`
	Image        string   `json:"image" validate:"omitempty,url"`
	Technologies []string `json:"technologies"`
}

type socialNetworkCreateRequest struct {
	NetworkType string `json:"network_type" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	IsPrimary   bool   `json:"is_primary"`
	CustomName  string `json:"custom_name" validate:"max=50"`
}

type contactCreateRequest struct {
	ContactType string `json:"contact_type" validate:"required"`
	Value       string `json:"value" validate:"required,max=100"`
	IsPrimary   bool   `json:"is_primary"`
	IsPublic    *bool  `json:"is_public"`
	CustomName  string `json:"custom_name" validate:"max=50"`
	Label       string `json:"label" validate:"max=50"`
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	filters, err := buildProfileFilters(r.URL.Query())
	if err != nil {
		s.respondServiceError(w, r, err, "list profiles")
		return
	}

	result, err := s.repo.Profiles.List(r.Context(), filters)
	if err != nil {
		s.respondServiceError(w, r, err, "list profiles")
		return
	}

	items := make([]profileListItem, 0, len(result.Items))
	for _, p := range result.Items {
		items = append(items, toProfileListItem(p))
	}
	s.respondJSON(w, http.StatusOK, profileListResponse{
		Count: result.Count,
		Next:  nextPageURL(r.URL, filters, len(items), result.Count),
		Items: items,
	})
}

// buildProfileFilters parses list query parameters. Malformed values are
// reported as validate.Errors keyed by parameter name.
func buildProfileFilters(query url.Values) (repository.ProfileListFilters, error) {
	var filters repository.ProfileListFilters
	errs := validate.Errors{}

	for _, raw := range query["technology"] {
		for _, code := range strings.Split(raw, ",") {
			if code = strings.TrimSpace(code); code != "" {
				filters.Technologies = append(filters.Technologies, code)
			}
		}
	}
	filters.Employment = strings.TrimSpace(query.Get("employment"))
	filters.Level = strings.TrimSpace(query.Get("level"))
	filters.Search = strings.TrimSpace(query.Get("search"))

	if val := strings.TrimSpace(query.Get("min_rating")); val != "" {
		rating, err := strconv.ParseFloat(val, 64)
		if err != nil || math.IsNaN(rating) || rating < 0 || rating > 5 {
			errs.Add("min_rating", "Enter a number between 0 and 5.")
		} else {
			filters.MinRating = &rating
		}
	}
	if val := strings.TrimSpace(query.Get("min_experience")); val != "" {
		years, err := strconv.Atoi(val)
		if err != nil || years < 0 {
			errs.Add("min_experience", "Enter a non-negative whole number.")
		} else {
			filters.MinExperience = &years
		}
	}
	if val := strings.TrimSpace(query.Get("ordering")); val != "" {
		for _, key := range strings.Split(val, ",") {
			key = strings.TrimSpace(key)
			if _, ok := repository.ProfileOrderFields[strings.TrimPrefix(key, "-")]; !ok {
				errs.Add("ordering", fmt.Sprintf("Unknown ordering field %q.", key))
				continue
			}
			filters.Ordering = append(filters.Ordering, key)
		}
	}
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit <= 0 {
			errs.Add("limit", "Enter a positive whole number.")
		} else {
			filters.Limit = limit
		}
	}
	if val := strings.TrimSpace(query.Get("offset")); val != "" {
		offset, err := strconv.Atoi(val)
		if err != nil || offset < 0 {
			errs.Add("offset", "Enter a non-negative whole number.")
		} else {
			filters.Offset = offset
		}
	}
	return filters, errs.Err()
}

// nextPageURL returns the request URL advanced by one page, or nil on the
// last page.
func nextPageURL(current *url.URL, filters repository.ProfileListFilters, returned int, total int64) *string {
	if returned == 0 || int64(filters.Offset+returned) >= total {
		return nil
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}
	next := *current
	q := next.Query()
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(filters.Offset+returned))
	next.RawQuery = q.Encode()
	out := next.RequestURI()
	return &out
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	var req profileCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Position = strings.TrimSpace(req.Position)
	req.Experience = strings.TrimSpace(req.Experience)
	if err := validate.Struct(req); err != nil {
		s.respondServiceError(w, r, err, "create profile")
		return
	}

	refs, err := s.resolveCatalogRefs(r.Context(), &req.Employment, &req.Level, &req.Technologies)
	if err != nil {
		s.respondServiceError(w, r, err, "create profile")
		return
	}

	var created domain.Profile
	err = s.repo.WithTx(r.Context(), func(tx *repository.Repository) error {
		var err error
		created, err = tx.Profiles.Create(r.Context(), repository.ProfileCreateParams{
			UserID:        user.ID,
			Photo:         strings.TrimSpace(req.Photo),
			FirstName:     req.FirstName,
			LastName:      req.LastName,
			Position:      req.Position,
			EmploymentID:  *refs.employmentID,
			LevelID:       *refs.levelID,
			Experience:    req.Experience,
			TechnologyIDs: refs.technologyIDs,
		})
		return err
	})
	if err != nil {
		s.respondServiceError(w, r, err, "create profile")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/profiles/%d/", created.ID))
	s.respondJSON(w, http.StatusCreated, toProfileDetail(domain.ProfileDetail{Profile: created}))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	user, _ := currentUser(r)
	private := user.IsStaff || user.IsAdmin
	if !private {
		ownerID, err := s.profileOwner(r.Context(), id)
		if err != nil {
			s.respondServiceError(w, r, err, "load profile")
			return
		}
		private = canManage(user, ownerID)
	}

	gens := []string{cache.ProfileGenKey(id), cache.GenCatalog}
	var cached profileDetailResponse
	s.serveCached(w, r, cache.ProfileDetailKey(id, private), gens, &cached, func(ctx context.Context) (any, error) {
		detail, err := s.repo.ProfileDetail(ctx, id, private)
		if err != nil {
			return nil, err
		}
		return toProfileDetail(detail), nil
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireProfileOwner(w, r)
	if !ok {
		return
	}

	var req profileUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.FirstName = trimPtr(req.FirstName)
	req.LastName = trimPtr(req.LastName)
	req.Position = trimPtr(req.Position)
	req.Experience = trimPtr(req.Experience)
	req.Photo = trimPtr(req.Photo)
	if err := validate.Struct(req); err != nil {
		s.respondServiceError(w, r, err, "update profile")
		return
	}

	refs, err := s.resolveCatalogRefs(r.Context(), req.Employment, req.Level, req.Technologies)
	if err != nil {
		s.respondServiceError(w, r, err, "update profile")
		return
	}
	params := repository.ProfileUpdateParams{
		Photo:        req.Photo,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Position:     req.Position,
		EmploymentID: refs.employmentID,
		LevelID:      refs.levelID,
		Experience:   req.Experience,
	}
	if req.Technologies != nil {
		params.TechnologyIDs = &refs.technologyIDs
	}

	var updated domain.Profile
	err = s.repo.WithTx(r.Context(), func(tx *repository.Repository) error {
		var err error
		updated, err = tx.Profiles.Update(r.Context(), id, params)
		return err
	})
	if err != nil {
		s.respondServiceError(w, r, err, "update profile")
		return
	}
	s.invalidateProfile(r.Context(), id)
	s.respondJSON(w, http.StatusOK, toProfileListItem(updated))
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requireProfileOwner(w, r)
	if !ok {
		return
	}
	if err := s.repo.Profiles.Delete(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err, "delete profile")
		return
	}
	s.invalidateProfile(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.repo.Profiles.OwnerID(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err, "list reviews")
		return
	}

	query := r.URL.Query()
	var filters repository.ReviewListFilters
	if val := strings.TrimSpace(query.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit <= 0 {
			s.respondJSON(w, http.StatusBadRequest, validate.Field("limit", "Enter a positive whole number."))
			return
		}
		filters.Limit = limit
	}
	if val := strings.TrimSpace(query.Get("cursor")); val != "" {
		cursor, err := repository.DecodeCursor(val)
		if err != nil {
			s.respondJSON(w, http.StatusBadRequest, validate.Field("cursor", "Invalid cursor."))
			return
		}
		filters.Cursor = cursor
	}

	result, err := s.repo.Reviews.ListByProfile(r.Context(), id, filters)
	if err != nil {
		s.respondServiceError(w, r, err, "list reviews")
		return
	}
	s.respondJSON(w, http.StatusOK, reviewListResponse{
		Items:      toReviewResponses(result.Items),
		NextCursor: result.NextCursor,
	})
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req reviewCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}

	review, err := s.reviews.Record(r.Context(), reviews.RecordInput{
		ProfileID:        id,
		ProjectID:        req.Project,
		Rating:           req.Rating,
		Text:             req.Text,
		ReviewerName:     req.ReviewerName,
		ReviewerPosition: req.ReviewerPosition,
		ReviewerCompany:  req.ReviewerCompany,
	})
	if err != nil {
		s.respondServiceError(w, r, err, "create review")
		return
	}
	s.respondJSON(w, http.StatusCreated, toReviewResponse(review))
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	profileID, ok := s.requireProfileOwner(w, r)
	if !ok {
		return
	}

	var req projectCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if err := validate.Struct(req); err != nil {
		s.respondServiceError(w, r, err, "create project")
		return
	}

	start, end, err := parseProjectDates(req.StartDate, req.EndDate)
	if err != nil {
		s.respondServiceError(w, r, err, "create project")
		return
	}
	refs, err := s.resolveCatalogRefs(r.Context(), nil, nil, &req.Technologies)
	if err != nil {
		s.respondServiceError(w, r, err, "create project")
		return
	}

	var project domain.Project
	err = s.repo.WithTx(r.Context(), func(tx *repository.Repository) error {
		var err error
		project, err = tx.Projects.Create(r.Context(), repository.ProjectCreateParams{
			ProfileID:     profileID,
			Title:         req.Title,
			Description:   req.Description,
			StartDate:     start,
			EndDate:       end,
			Status:        req.Status,
			Client:        strings.TrimSpace(req.Client),
			URL:           strings.TrimSpace(req.URL),
			Image:         strings.TrimSpace(req.Image),
			TechnologyIDs: refs.technologyIDs,
		})
		if err != nil {
			return err
		}
		return tx.Profiles.AdjustProjectCount(r.Context(), profileID, 1)
	})
	if err != nil {
		s.respondServiceError(w, r, err, "create project")
		return
	}
	s.invalidateProfile(r.Context(), profileID)
	s.respondJSON(w, http.StatusCreated, toProjectResponse(project))
}

func parseProjectDates(startRaw string, endRaw *string) (time.Time, *time.Time, error) {
	errs := validate.Errors{}
	start, err := time.Parse(dateLayout, strings.TrimSpace(startRaw))
	if err != nil {
		errs.Add("start_date", "Date has wrong format. Use YYYY-MM-DD.")
	}
	var end *time.Time
	if endRaw != nil && strings.TrimSpace(*endRaw) != "" {
		parsed, err := time.Parse(dateLayout, strings.TrimSpace(*endRaw))
		switch {
		case err != nil:
			errs.Add("end_date", "Date has wrong format. Use YYYY-MM-DD.")
		case len(errs) == 0 && parsed.Before(start):
			errs.Add("end_date", "End date cannot be before start date.")
		default:
			end = &parsed
		}
	}
	return start, end, errs.Err()
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	project, err := s.repo.Projects.Get(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "delete project")
		return
	}
	if !s.ownsProfile(w, r, project.ProfileID) {
		return
	}

	err = s.repo.WithTx(r.Context(), func(tx *repository.Repository) error {
		profileID, err := tx.Projects.Delete(r.Context(), id)
		if err != nil {
			return err
		}
		return tx.Profiles.AdjustProjectCount(r.Context(), profileID, -1)
	})
	if err != nil {
		s.respondServiceError(w, r, err, "delete project")
		return
	}
	s.invalidateProfile(r.Context(), project.ProfileID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateSocialNetwork(w http.ResponseWriter, r *http.Request) {
	profileID, ok := s.requireProfileOwner(w, r)
	if !ok {
		return
	}

	var req socialNetworkCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.NetworkType = strings.TrimSpace(req.NetworkType)
	req.URL = strings.TrimSpace(req.URL)
	req.CustomName = strings.TrimSpace(req.CustomName)
	if err := checkChoice(validate.Struct(req), "network_type", req.NetworkType, domain.NetworkTypes); err != nil {
		s.respondServiceError(w, r, err, "create social network")
		return
	}

	sn, err := s.repo.Contacts.CreateSocialNetwork(r.Context(), repository.SocialNetworkParams{
		ProfileID:   profileID,
		NetworkType: req.NetworkType,
		URL:         req.URL,
		IsPrimary:   req.IsPrimary,
		CustomName:  req.CustomName,
	})
	if err != nil {
		s.respondServiceError(w, r, err, "create social network")
		return
	}
	s.invalidateProfile(r.Context(), profileID)
	s.respondJSON(w, http.StatusCreated, toSocialNetworkResponse(sn))
}

func (s *Server) handleDeleteSocialNetwork(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	sn, err := s.repo.Contacts.GetSocialNetwork(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "delete social network")
		return
	}
	if !s.ownsProfile(w, r, sn.ProfileID) {
		return
	}
	if err := s.repo.Contacts.DeleteSocialNetwork(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err, "delete social network")
		return
	}
	s.invalidateProfile(r.Context(), sn.ProfileID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	profileID, ok := s.requireProfileOwner(w, r)
	if !ok {
		return
	}

	var req contactCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	req.ContactType = strings.TrimSpace(req.ContactType)
	req.Value = strings.TrimSpace(req.Value)
	if err := checkChoice(validate.Struct(req), "contact_type", req.ContactType, domain.ContactTypes); err != nil {
		s.respondServiceError(w, r, err, "create contact")
		return
	}
	public := true
	if req.IsPublic != nil {
		public = *req.IsPublic
	}

	c, err := s.repo.Contacts.CreateContact(r.Context(), repository.ContactParams{
		ProfileID:   profileID,
		ContactType: req.ContactType,
		Value:       req.Value,
		IsPrimary:   req.IsPrimary,
		IsPublic:    public,
		CustomName:  strings.TrimSpace(req.CustomName),
		Label:       strings.TrimSpace(req.Label),
	})
	if err != nil {
		s.respondServiceError(w, r, err, "create contact")
		return
	}
	s.invalidateProfile(r.Context(), profileID)
	s.respondJSON(w, http.StatusCreated, toContactResponse(c))
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	c, err := s.repo.Contacts.GetContact(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "delete contact")
		return
	}
	if !s.ownsProfile(w, r, c.ProfileID) {
		return
	}
	if err := s.repo.Contacts.DeleteContact(r.Context(), id); err != nil {
		s.respondServiceError(w, r, err, "delete contact")
		return
	}
	s.invalidateProfile(r.Context(), c.ProfileID)
	w.WriteHeader(http.StatusNoContent)
}

// requireProfileOwner parses {id} as a profile id and checks the caller may
// manage it. It writes the error response itself.
func (s *Server) requireProfileOwner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := s.pathID(w, r)
	if !ok {
		return 0, false
	}
	if !s.ownsProfile(w, r, id) {
		return 0, false
	}
	return id, true
}

func (s *Server) ownsProfile(w http.ResponseWriter, r *http.Request, profileID int64) bool {
	ownerID, err := s.repo.Profiles.OwnerID(r.Context(), profileID)
	if err != nil {
		s.respondServiceError(w, r, err, "load profile")
		return false
	}
	user, _ := currentUser(r)
	if !canManage(user, ownerID) {
		s.respondForbidden(w)
		return false
	}
	return true
}

type catalogRefs struct {
	employmentID  *int64
	levelID       *int64
	technologyIDs []int64
}

// resolveCatalogRefs turns employment/level/technology codes into ids. Nil
// arguments are skipped. Unknown codes become field errors.
func (s *Server) resolveCatalogRefs(ctx context.Context, employment, level *string, technologies *[]string) (catalogRefs, error) {
	var refs catalogRefs
	errs := validate.Errors{}

	if employment != nil {
		e, err := s.repo.Catalog.EmploymentTypeByCode(ctx, *employment)
		switch {
		case err == nil:
			refs.employmentID = &e.ID
		case isNotFound(err):
			errs.Add("employment", fmt.Sprintf("Object with code=%s does not exist.", strings.TrimSpace(*employment)))
		default:
			return refs, err
		}
	}
	if level != nil {
		l, err := s.repo.Catalog.SpecialistLevelByCode(ctx, *level)
		switch {
		case err == nil:
			refs.levelID = &l.ID
		case isNotFound(err):
			errs.Add("level", fmt.Sprintf("Object with code=%s does not exist.", strings.TrimSpace(*level)))
		default:
			return refs, err
		}
	}
	if technologies != nil {
		techs, missing, err := s.repo.Catalog.TechnologiesByCodes(ctx, *technologies)
		if err != nil {
			return refs, err
		}
		for _, code := range missing {
			errs.Add("technologies", fmt.Sprintf("Object with code=%s does not exist.", code))
		}
		refs.technologyIDs = make([]int64, 0, len(techs))
		for _, t := range techs {
			refs.technologyIDs = append(refs.technologyIDs, t.ID)
		}
	}
	return refs, errs.Err()
}

// checkChoice merges a membership check for value into the result of a
// struct validation.
func checkChoice(err error, field, value string, choices []string) error {
	if value == "" || slices.Contains(choices, value) {
		return err
	}
	msg := fmt.Sprintf("%q is not a valid choice.", value)
	if err == nil {
		return validate.Field(field, msg)
	}
	verr, ok := validate.As(err)
	if !ok {
		return err
	}
	verr.Add(field, msg)
	return verr
}
