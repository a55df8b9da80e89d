package httpserver

import (
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
)

const dateLayout = "2006-01-02"

type userResponse struct {
	ID        int64      `json:"id"`
	UUID      uuid.UUID  `json:"uuid"`
	Email     string     `json:"email"`
	FirstName *string    `json:"first_name"`
	LastName  *string    `json:"last_name"`
	FullName  string     `json:"full_name"`
	IsActive  bool       `json:"is_active"`
	IsStaff   bool       `json:"is_staff"`
	LastSeen  *time.Time `json:"last_seen"`
	CreatedAt time.Time  `json:"created_at"`
}

type namedCodeResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type technologyBrief struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type technologyResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Icon        string `json:"icon"`
	IsActive    bool   `json:"is_active"`
}

// profileListItem is the compact representation used in listings.
type profileListItem struct {
	ID           int64             `json:"id"`
	Photo        string            `json:"photo"`
	FirstName    string            `json:"first_name"`
	LastName     string            `json:"last_name"`
	Position     string            `json:"position"`
	Employment   namedCodeResponse `json:"employment"`
	Level        namedCodeResponse `json:"level"`
	Experience   string            `json:"experience"`
	Rating       float64           `json:"rating"`
	ReviewCount  int               `json:"review_count"`
	ProjectCount int               `json:"project_count"`
	Technologies []technologyBrief `json:"technologies"`
}

type profileListResponse struct {
	Count int64             `json:"count"`
	Next  *string           `json:"next"`
	Items []profileListItem `json:"items"`
}

// profileDetailResponse nests every related record of a profile.
type profileDetailResponse struct {
	profileListItem
	UserID         int64                   `json:"user_id"`
	SocialNetworks []socialNetworkResponse `json:"social_networks"`
	Contacts       []contactResponse       `json:"contacts"`
	Projects       []projectResponse       `json:"projects"`
	Reviews        []reviewResponse        `json:"reviews"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

type socialNetworkResponse struct {
	ID          int64  `json:"id"`
	NetworkType string `json:"network_type"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	IsPrimary   bool   `json:"is_primary"`
	CustomName  string `json:"custom_name"`
}

type contactResponse struct {
	ID          int64  `json:"id"`
	ContactType string `json:"contact_type"`
	Value       string `json:"value"`
	IsPrimary   bool   `json:"is_primary"`
	IsPublic    bool   `json:"is_public"`
	CustomName  string `json:"custom_name"`
	Label       string `json:"label"`
	IsVerified  bool   `json:"is_verified"`
}

type projectResponse struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	StartDate    string            `json:"start_date"`
	EndDate      *string           `json:"end_date"`
	Status       string            `json:"status"`
	Client       string            `json:"client"`
	URL          string            `json:"url"`
	Image        string            `json:"image"`
	Technologies []technologyBrief `json:"technologies"`
	Reviews      []reviewResponse  `json:"reviews"`
}

type reviewResponse struct {
	ID               int64     `json:"id"`
	Profile          int64     `json:"profile"`
	Project          *int64    `json:"project"`
	Rating           int       `json:"rating"`
	Text             string    `json:"text"`
	ReviewerName     string    `json:"reviewer_name"`
	ReviewerPosition string    `json:"reviewer_position"`
	ReviewerCompany  string    `json:"reviewer_company"`
	IsVerified       bool      `json:"is_verified"`
	CreatedAt        time.Time `json:"created_at"`
}

type reviewListResponse struct {
	Items      []reviewResponse `json:"items"`
	NextCursor *string          `json:"next_cursor,omitempty"`
}

type catalogUsageResponse struct {
	namedCodeResponse
	ProfilesCount int64 `json:"profiles_count"`
}

type technologyUsageResponse struct {
	technologyResponse
	ProfilesCount int64 `json:"profiles_count"`
	ProjectsCount int64 `json:"projects_count"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		UUID:      u.UUID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		IsActive:  u.IsActive,
		IsStaff:   u.IsStaff,
		LastSeen:  u.LastSeenAt,
		CreatedAt: u.CreatedAt,
	}
}

func toTechnologyResponse(t domain.Technology) technologyResponse {
	return technologyResponse{
		ID:          t.ID,
		Name:        t.Name,
		Code:        t.Code,
		Description: t.Description,
		Website:     t.Website,
		Icon:        t.Icon,
		IsActive:    t.IsActive,
	}
}

func toTechnologyBriefs(techs []domain.Technology) []technologyBrief {
	out := make([]technologyBrief, 0, len(techs))
	for _, t := range techs {
		out = append(out, technologyBrief{ID: t.ID, Name: t.Name, Code: t.Code})
	}
	return out
}

func toProfileListItem(p domain.Profile) profileListItem {
	return profileListItem{
		ID:           p.ID,
		Photo:        p.Photo,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Position:     p.Position,
		Employment:   namedCodeResponse{ID: p.Employment.ID, Name: p.Employment.Name, Code: p.Employment.Code},
		Level:        namedCodeResponse{ID: p.Level.ID, Name: p.Level.Name, Code: p.Level.Code},
		Experience:   p.Experience,
		Rating:       domain.RoundToOneDecimal(p.Rating),
		ReviewCount:  p.ReviewCount,
		ProjectCount: p.ProjectCount,
		Technologies: toTechnologyBriefs(p.Technologies),
	}
}

func toProfileDetail(d domain.ProfileDetail) profileDetailResponse {
	resp := profileDetailResponse{
		profileListItem: toProfileListItem(d.Profile),
		UserID:          d.UserID,
		SocialNetworks:  make([]socialNetworkResponse, 0, len(d.SocialNetworks)),
		Contacts:        make([]contactResponse, 0, len(d.Contacts)),
		Projects:        make([]projectResponse, 0, len(d.Projects)),
		Reviews:         toReviewResponses(d.Reviews),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, sn := range d.SocialNetworks {
		resp.SocialNetworks = append(resp.SocialNetworks, toSocialNetworkResponse(sn))
	}
	for _, c := range d.Contacts {
		resp.Contacts = append(resp.Contacts, toContactResponse(c))
	}
	for _, p := range d.Projects {
		resp.Projects = append(resp.Projects, toProjectResponse(p))
	}
	return resp
}

func toSocialNetworkResponse(sn domain.SocialNetwork) socialNetworkResponse {
	return socialNetworkResponse{
		ID:          sn.ID,
		NetworkType: sn.NetworkType,
		DisplayName: sn.DisplayName(),
		URL:         sn.URL,
		IsPrimary:   sn.IsPrimary,
		CustomName:  sn.CustomName,
	}
}

func toContactResponse(c domain.ContactInfo) contactResponse {
	return contactResponse{
		ID:          c.ID,
		ContactType: c.ContactType,
		Value:       c.Value,
		IsPrimary:   c.IsPrimary,
		IsPublic:    c.IsPublic,
		CustomName:  c.CustomName,
		Label:       c.Label,
		IsVerified:  c.IsVerified,
	}
}

func toProjectResponse(p domain.Project) projectResponse {
	resp := projectResponse{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		StartDate:    p.StartDate.Format(dateLayout),
		Status:       p.Status,
		Client:       p.Client,
		URL:          p.URL,
		Image:        p.Image,
		Technologies: toTechnologyBriefs(p.Technologies),
		Reviews:      toReviewResponses(p.Reviews),
	}
	if p.EndDate != nil {
		end := p.EndDate.Format(dateLayout)
		resp.EndDate = &end
	}
	return resp
}

func toReviewResponse(rv domain.Review) reviewResponse {
	return reviewResponse{
		ID:               rv.ID,
		Profile:          rv.ProfileID,
		Project:          rv.ProjectID,
		Rating:           rv.Rating,
		Text:             rv.Text,
		ReviewerName:     rv.ReviewerName,
		ReviewerPosition: rv.ReviewerPosition,
		ReviewerCompany:  rv.ReviewerCompany,
		IsVerified:       rv.IsVerified,
		CreatedAt:        rv.CreatedAt,
	}
}

func toReviewResponses(items []domain.Review) []reviewResponse {
	out := make([]reviewResponse, 0, len(items))
	for _, rv := range items {
		out = append(out, toReviewResponse(rv))
	}
	return out
}

func toCatalogUsage(id int64, name, code string, usage map[int64]repository.UsageCount) catalogUsageResponse {
	return catalogUsageResponse{
		namedCodeResponse: namedCodeResponse{ID: id, Name: name, Code: code},
		ProfilesCount:     usage[id].Profiles,
	}
}
