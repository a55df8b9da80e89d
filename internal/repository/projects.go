package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
)

// ProjectsRepository persists projects listed on profiles.
type ProjectsRepository struct {
	db DBTX
}

const projectColumns = `
    id,
    profile_id,
    title,
    description,
    start_date,
    end_date,
    status,
    client,
    url,
    image,
    created_at,
    updated_at
`

// ProjectCreateParams bundles the fields required to create a project.
type ProjectCreateParams struct {
	ProfileID     int64
	Title         string
	Description   string
	StartDate     time.Time
	EndDate       *time.Time
	Status        string
	Client        string
	URL           string
	Image         string
	TechnologyIDs []int64
}

// Create inserts a project and links its technologies. project_count is the
// caller's responsibility, inside the same transaction.
func (r *ProjectsRepository) Create(ctx context.Context, params ProjectCreateParams) (domain.Project, error) {
	if params.Status == "" {
		params.Status = domain.ProjectOngoing
	}
	query := fmt.Sprintf(`
        INSERT INTO projects (profile_id, title, description, start_date, end_date, status, client, url, image)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING %s
    `, projectColumns)
	project, err := scanProject(r.db.QueryRow(ctx, query, params.ProfileID, params.Title, params.Description,
		params.StartDate, params.EndDate, params.Status, params.Client, params.URL, params.Image))
	if err != nil {
		return domain.Project{}, translate(err)
	}
	if len(params.TechnologyIDs) > 0 {
		_, err = r.db.Exec(ctx, `
            INSERT INTO project_technologies (project_id, technology_id)
            SELECT $1, t FROM unnest($2::bigint[]) AS t
            ON CONFLICT DO NOTHING
        `, project.ID, params.TechnologyIDs)
		if err != nil {
			return domain.Project{}, translate(err)
		}
	}
	techs, err := r.technologiesFor(ctx, []int64{project.ID})
	if err != nil {
		return domain.Project{}, err
	}
	project.Technologies = techs[project.ID]
	return project, nil
}

// Get fetches a project by id without its technologies.
func (r *ProjectsRepository) Get(ctx context.Context, id int64) (domain.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	p, err := scanProject(r.db.QueryRow(ctx, query, id))
	return p, translate(err)
}

// ListByProfile returns a profile's projects, most recently started first,
// with technologies attached.
func (r *ProjectsRepository) ListByProfile(ctx context.Context, profileID int64) ([]domain.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE profile_id = $1 ORDER BY start_date DESC, id DESC`, projectColumns)
	rows, err := r.db.Query(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	projects, err := collect(rows, scanProject)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	techs, err := r.technologiesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].Technologies = techs[projects[i].ID]
	}
	return projects, nil
}

// Delete removes a project and returns the owning profile id. Reviews that
// referenced it keep existing with project_id set to NULL.
func (r *ProjectsRepository) Delete(ctx context.Context, id int64) (int64, error) {
	var profileID int64
	err := r.db.QueryRow(ctx, `DELETE FROM projects WHERE id = $1 RETURNING profile_id`, id).Scan(&profileID)
	return profileID, translate(err)
}

func (r *ProjectsRepository) technologiesFor(ctx context.Context, projectIDs []int64) (map[int64][]domain.Technology, error) {
	out := make(map[int64][]domain.Technology, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`
        SELECT pj.project_id, %s
        FROM project_technologies pj
        JOIN technologies t ON t.id = pj.technology_id
        WHERE pj.project_id = ANY($1)
        ORDER BY t.name
    `, technologyColumns)
	rows, err := r.db.Query(ctx, query, projectIDs)
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

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(
		&p.ID,
		&p.ProfileID,
		&p.Title,
		&p.Description,
		&p.StartDate,
		&p.EndDate,
		&p.Status,
		&p.Client,
		&p.URL,
		&p.Image,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}
