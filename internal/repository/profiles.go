package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
)

// ProfilesRepository provides persistence helpers for specialist profiles.
type ProfilesRepository struct {
	db DBTX
}

const profileSelect = `
    SELECT
        p.id,
        p.user_id,
        p.photo,
        p.first_name,
        p.last_name,
        p.position,
        e.id, e.name, e.code,
        l.id, l.name, l.code,
        p.experience,
        p.rating::float8,
        p.review_count,
        p.project_count,
        p.created_at,
        p.updated_at
    FROM profiles p
    JOIN employment_types e ON e.id = p.employment_id
    JOIN specialist_levels l ON l.id = p.level_id
`

// ProfileOrderFields maps accepted ordering keys onto SQL columns.
var ProfileOrderFields = map[string]string{
	"rating":        "p.rating",
	"review_count":  "p.review_count",
	"project_count": "p.project_count",
	"created_at":    "p.created_at",
}

// DefaultProfileOrdering is applied when no ordering is requested.
var DefaultProfileOrdering = []string{"-rating", "-review_count"}

// ProfileCreateParams bundles the fields required to create a profile.
type ProfileCreateParams struct {
	UserID        int64
	Photo         string
	FirstName     string
	LastName      string
	Position      string
	EmploymentID  int64
	LevelID       int64
	Experience    string
	TechnologyIDs []int64
}

// ProfileUpdateParams holds a partial update. Nil fields are left unchanged.
// Statistics are not updatable here.
type ProfileUpdateParams struct {
	Photo         *string
	FirstName     *string
	LastName      *string
	Position      *string
	EmploymentID  *int64
	LevelID       *int64
	Experience    *string
	TechnologyIDs *[]int64
}

// ProfileListFilters encapsulates filtering, search, ordering and pagination.
type ProfileListFilters struct {
	Technologies  []string
	Employment    string
	Level         string
	MinRating     *float64
	MinExperience *int
	Search        string
	Ordering      []string
	Limit         int
	Offset        int
}

// ProfileListResult returns one page together with the total match count.
type ProfileListResult struct {
	Items []domain.Profile
	Count int64
}

// Create inserts a profile and links its technologies. Callers should run it
// inside WithTx so both writes land together.
func (r *ProfilesRepository) Create(ctx context.Context, params ProfileCreateParams) (domain.Profile, error) {
	const query = `
        INSERT INTO profiles (user_id, photo, first_name, last_name, position, employment_id, level_id, experience)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id
    `
	var id int64
	err := r.db.QueryRow(ctx, query, params.UserID, params.Photo, params.FirstName, params.LastName,
		params.Position, params.EmploymentID, params.LevelID, params.Experience).Scan(&id)
	if err != nil {
		return domain.Profile{}, translate(err)
	}
	if err := r.SetTechnologies(ctx, id, params.TechnologyIDs); err != nil {
		return domain.Profile{}, err
	}
	return r.GetByID(ctx, id)
}

// GetByID fetches a profile with its employment, level and technologies.
func (r *ProfilesRepository) GetByID(ctx context.Context, id int64) (domain.Profile, error) {
	profile, err := scanProfile(r.db.QueryRow(ctx, profileSelect+` WHERE p.id = $1`, id))
	if err != nil {
		return domain.Profile{}, translate(err)
	}
	techs, err := r.technologiesFor(ctx, []int64{id})
	if err != nil {
		return domain.Profile{}, err
	}
	profile.Technologies = techs[id]
	return profile, nil
}

// OwnerID returns the user id owning the profile.
func (r *ProfilesRepository) OwnerID(ctx context.Context, id int64) (int64, error) {
	var owner int64
	err := r.db.QueryRow(ctx, `SELECT user_id FROM profiles WHERE id = $1`, id).Scan(&owner)
	return owner, translate(err)
}

// Update applies the non-nil fields of params.
func (r *ProfilesRepository) Update(ctx context.Context, id int64, params ProfileUpdateParams) (domain.Profile, error) {
	const query = `
        UPDATE profiles
        SET photo = COALESCE($2, photo),
            first_name = COALESCE($3, first_name),
            last_name = COALESCE($4, last_name),
            position = COALESCE($5, position),
            employment_id = COALESCE($6, employment_id),
            level_id = COALESCE($7, level_id),
            experience = COALESCE($8, experience),
            updated_at = now()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, id, params.Photo, params.FirstName, params.LastName,
		params.Position, params.EmploymentID, params.LevelID, params.Experience)
	if err != nil {
		return domain.Profile{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Profile{}, ErrNotFound
	}
	if params.TechnologyIDs != nil {
		if err := r.SetTechnologies(ctx, id, *params.TechnologyIDs); err != nil {
			return domain.Profile{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// SetTechnologies replaces the technology links of a profile.
func (r *ProfilesRepository) SetTechnologies(ctx context.Context, id int64, technologyIDs []int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM profile_technologies WHERE profile_id = $1`, id); err != nil {
		return err
	}
	if len(technologyIDs) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, `
        INSERT INTO profile_technologies (profile_id, technology_id)
        SELECT $1, t FROM unnest($2::bigint[]) AS t
        ON CONFLICT DO NOTHING
    `, id, technologyIDs)
	return translate(err)
}

// Delete removes a profile and, through cascades, everything attached to it.
func (r *ProfilesRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LockStats reads the profile statistics while holding a row lock until the
// surrounding transaction ends. It must run inside WithTx.
func (r *ProfilesRepository) LockStats(ctx context.Context, id int64) (domain.ProfileStats, error) {
	var stats domain.ProfileStats
	err := r.db.QueryRow(ctx,
		`SELECT rating::float8, review_count FROM profiles WHERE id = $1 FOR UPDATE`, id,
	).Scan(&stats.Rating, &stats.ReviewCount)
	if err != nil {
		return domain.ProfileStats{}, translate(err)
	}
	return stats, nil
}

// UpdateStats persists rating and review_count.
func (r *ProfilesRepository) UpdateStats(ctx context.Context, id int64, stats domain.ProfileStats) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE profiles
        SET rating = $2, review_count = $3, updated_at = now()
        WHERE id = $1
    `, id, stats.Rating, stats.ReviewCount)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustProjectCount shifts project_count by delta, never below zero.
func (r *ProfilesRepository) AdjustProjectCount(ctx context.Context, id int64, delta int) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE profiles
        SET project_count = GREATEST(project_count + $2, 0), updated_at = now()
        WHERE id = $1
    `, id, delta)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns profiles that match the provided filters.
func (r *ProfilesRepository) List(ctx context.Context, filters ProfileListFilters) (ProfileListResult, error) {
	filters.Limit = clampLimit(filters.Limit)
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if codes := normalizeCodes(filters.Technologies); len(codes) > 0 {
		where = append(where, fmt.Sprintf(`EXISTS (
            SELECT 1 FROM profile_technologies pt
            JOIN technologies t ON t.id = pt.technology_id
            WHERE pt.profile_id = p.id AND t.code = ANY(%s))`, arg(codes)))
	}
	if code := strings.TrimSpace(filters.Employment); code != "" {
		where = append(where, fmt.Sprintf("e.code = %s", arg(code)))
	}
	if code := strings.TrimSpace(filters.Level); code != "" {
		where = append(where, fmt.Sprintf("l.code = %s", arg(code)))
	}
	if filters.MinRating != nil {
		where = append(where, fmt.Sprintf("p.rating >= %s", arg(*filters.MinRating)))
	}
	if filters.MinExperience != nil {
		where = append(where, fmt.Sprintf(
			`COALESCE(substring(p.experience from '^\s*(\d+)')::int, 0) >= %s`, arg(*filters.MinExperience)))
	}
	if q := strings.TrimSpace(filters.Search); q != "" {
		p := arg("%" + q + "%")
		where = append(where, fmt.Sprintf("(p.first_name ILIKE %s OR p.last_name ILIKE %s OR p.position ILIKE %s)", p, p, p))
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var count int64
	countQuery := `SELECT COUNT(*) FROM profiles p
        JOIN employment_types e ON e.id = p.employment_id
        JOIN specialist_levels l ON l.id = p.level_id` + whereSQL
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&count); err != nil {
		return ProfileListResult{}, fmt.Errorf("count profiles: %w", err)
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString(profileSelect)
	queryBuilder.WriteString(whereSQL)
	queryBuilder.WriteString(" ORDER BY ")
	queryBuilder.WriteString(profileOrderClause(filters.Ordering))
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", filters.Limit, filters.Offset))

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		return ProfileListResult{}, err
	}
	items, err := collect(rows, scanProfile)
	if err != nil {
		return ProfileListResult{}, err
	}

	ids := make([]int64, 0, len(items))
	for _, p := range items {
		ids = append(ids, p.ID)
	}
	techs, err := r.technologiesFor(ctx, ids)
	if err != nil {
		return ProfileListResult{}, err
	}
	for i := range items {
		items[i].Technologies = techs[items[i].ID]
	}

	return ProfileListResult{Items: items, Count: count}, nil
}

// profileOrderClause builds an ORDER BY from "-field" / "field" keys. Unknown
// keys are skipped and p.id breaks ties so offsets stay stable.
func profileOrderClause(ordering []string) string {
	if len(ordering) == 0 {
		ordering = DefaultProfileOrdering
	}
	parts := make([]string, 0, len(ordering)+1)
	for _, key := range ordering {
		key = strings.TrimSpace(key)
		dir := "ASC"
		if strings.HasPrefix(key, "-") {
			dir = "DESC"
			key = key[1:]
		}
		col, ok := ProfileOrderFields[key]
		if !ok {
			continue
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		return profileOrderClause(DefaultProfileOrdering)
	}
	return strings.Join(append(parts, "p.id DESC"), ", ")
}

func (r *ProfilesRepository) technologiesFor(ctx context.Context, profileIDs []int64) (map[int64][]domain.Technology, error) {
	out := make(map[int64][]domain.Technology, len(profileIDs))
	if len(profileIDs) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
        SELECT pt.profile_id, %s
        FROM profile_technologies pt
        JOIN technologies t ON t.id = pt.technology_id
        WHERE pt.profile_id = ANY($1)
        ORDER BY t.name
    `, technologyColumns)
	rows, err := r.db.Query(ctx, query, profileIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var owner int64
		var t domain.Technology
		if err := rows.Scan(&owner, &t.ID, &t.Name, &t.Code, &t.Description, &t.Website,
			&t.Icon, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], t)
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Photo,
		&p.FirstName,
		&p.LastName,
		&p.Position,
		&p.Employment.ID, &p.Employment.Name, &p.Employment.Code,
		&p.Level.ID, &p.Level.Name, &p.Level.Code,
		&p.Experience,
		&p.Rating,
		&p.ReviewCount,
		&p.ProjectCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	return p, nil
}

// ProfileDetail loads a profile with every related record. Private contacts
// are included only when withPrivateContacts is set.
func (r *Repository) ProfileDetail(ctx context.Context, id int64, withPrivateContacts bool) (domain.ProfileDetail, error) {
	profile, err := r.Profiles.GetByID(ctx, id)
	if err != nil {
		return domain.ProfileDetail{}, err
	}
	detail := domain.ProfileDetail{Profile: profile}

	if detail.SocialNetworks, err = r.Contacts.ListSocialNetworks(ctx, id); err != nil {
		return domain.ProfileDetail{}, fmt.Errorf("load social networks: %w", err)
	}
	if detail.Contacts, err = r.Contacts.ListContacts(ctx, id, !withPrivateContacts); err != nil {
		return domain.ProfileDetail{}, fmt.Errorf("load contacts: %w", err)
	}
	if detail.Projects, err = r.Projects.ListByProfile(ctx, id); err != nil {
		return domain.ProfileDetail{}, fmt.Errorf("load projects: %w", err)
	}
	projectIDs := make([]int64, 0, len(detail.Projects))
	for _, p := range detail.Projects {
		projectIDs = append(projectIDs, p.ID)
	}
	byProject, err := r.Reviews.ListByProjectIDs(ctx, projectIDs)
	if err != nil {
		return domain.ProfileDetail{}, fmt.Errorf("load project reviews: %w", err)
	}
	for i := range detail.Projects {
		detail.Projects[i].Reviews = byProject[detail.Projects[i].ID]
	}
	if detail.Reviews, err = r.Reviews.Recent(ctx, id, DetailReviewLimit); err != nil {
		return domain.ProfileDetail{}, fmt.Errorf("load reviews: %w", err)
	}
	return detail, nil
}
