package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
)

// CatalogRepository manages reference data: employment types, specialist
// levels and technologies.
type CatalogRepository struct {
	db DBTX
}

// Grade tables share the (id, name, code) shape.
const (
	employmentTable = "employment_types"
	levelTable      = "specialist_levels"
)

// NamedCodeParams creates or updates an employment type or specialist level.
type NamedCodeParams struct {
	Name string
	Code string
}

// TechnologyParams creates or updates a technology. Nil fields are left
// unchanged on update.
type TechnologyParams struct {
	Name        *string
	Code        *string
	Description *string
	Website     *string
	Icon        *string
	IsActive    *bool
}

// UsageCount pairs a catalog row id with the number of rows referencing it.
type UsageCount struct {
	Profiles int64
	Projects int64
}

type namedCode struct {
	ID   int64
	Name string
	Code string
}

const technologyColumns = `
    t.id,
    t.name,
    t.code,
    t.description,
    t.website,
    t.icon,
    t.is_active,
    t.created_at,
    t.updated_at
`

// ListEmploymentTypes returns every employment type ordered by name.
func (r *CatalogRepository) ListEmploymentTypes(ctx context.Context) ([]domain.EmploymentType, error) {
	rows, err := r.listNamed(ctx, employmentTable)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EmploymentType, 0, len(rows))
	for _, n := range rows {
		out = append(out, domain.EmploymentType{ID: n.ID, Name: n.Name, Code: n.Code})
	}
	return out, nil
}

// ListSpecialistLevels returns every specialist level ordered by name.
func (r *CatalogRepository) ListSpecialistLevels(ctx context.Context) ([]domain.SpecialistLevel, error) {
	rows, err := r.listNamed(ctx, levelTable)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SpecialistLevel, 0, len(rows))
	for _, n := range rows {
		out = append(out, domain.SpecialistLevel{ID: n.ID, Name: n.Name, Code: n.Code})
	}
	return out, nil
}

// EmploymentTypeByCode resolves an employment type by its code.
func (r *CatalogRepository) EmploymentTypeByCode(ctx context.Context, code string) (domain.EmploymentType, error) {
	n, err := r.namedByCode(ctx, employmentTable, code)
	return domain.EmploymentType{ID: n.ID, Name: n.Name, Code: n.Code}, err
}

// SpecialistLevelByCode resolves a specialist level by its code.
func (r *CatalogRepository) SpecialistLevelByCode(ctx context.Context, code string) (domain.SpecialistLevel, error) {
	n, err := r.namedByCode(ctx, levelTable, code)
	return domain.SpecialistLevel{ID: n.ID, Name: n.Name, Code: n.Code}, err
}

// CreateEmploymentType inserts an employment type.
func (r *CatalogRepository) CreateEmploymentType(ctx context.Context, params NamedCodeParams) (domain.EmploymentType, error) {
	n, err := r.createNamed(ctx, employmentTable, params)
	return domain.EmploymentType{ID: n.ID, Name: n.Name, Code: n.Code}, err
}

// CreateSpecialistLevel inserts a specialist level.
func (r *CatalogRepository) CreateSpecialistLevel(ctx context.Context, params NamedCodeParams) (domain.SpecialistLevel, error) {
	n, err := r.createNamed(ctx, levelTable, params)
	return domain.SpecialistLevel{ID: n.ID, Name: n.Name, Code: n.Code}, err
}

// UpdateEmploymentType renames or recodes an employment type.
func (r *CatalogRepository) UpdateEmploymentType(ctx context.Context, id int64, params NamedCodeParams) (domain.EmploymentType, error) {
	n, err := r.updateNamed(ctx, employmentTable, id, params)
	return domain.EmploymentType{ID: n.ID, Name: n.Name, Code: n.Code}, err
}

// UpdateSpecialistLevel renames or recodes a specialist level.
func (r *CatalogRepository) UpdateSpecialistLevel(ctx context.Context, id int64, params NamedCodeParams) (domain.SpecialistLevel, error) {
	n, err := r.updateNamed(ctx, levelTable, id, params)
	return domain.SpecialistLevel{ID: n.ID, Name: n.Name, Code: n.Code}, err
}

// DeleteEmploymentType removes an employment type. Referenced rows yield ErrForeignKey.
func (r *CatalogRepository) DeleteEmploymentType(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, employmentTable, id)
}

// DeleteSpecialistLevel removes a specialist level. Referenced rows yield ErrForeignKey.
func (r *CatalogRepository) DeleteSpecialistLevel(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, levelTable, id)
}

// EmploymentUsage counts profiles per employment type id.
func (r *CatalogRepository) EmploymentUsage(ctx context.Context) (map[int64]UsageCount, error) {
	return r.usage(ctx, `SELECT employment_id, COUNT(*), 0 FROM profiles GROUP BY employment_id`)
}

// LevelUsage counts profiles per specialist level id.
func (r *CatalogRepository) LevelUsage(ctx context.Context) (map[int64]UsageCount, error) {
	return r.usage(ctx, `SELECT level_id, COUNT(*), 0 FROM profiles GROUP BY level_id`)
}

// TechnologyUsage counts profiles and projects per technology id.
func (r *CatalogRepository) TechnologyUsage(ctx context.Context) (map[int64]UsageCount, error) {
	return r.usage(ctx, `
        SELECT t.id,
               (SELECT COUNT(*) FROM profile_technologies pt WHERE pt.technology_id = t.id),
               (SELECT COUNT(*) FROM project_technologies pj WHERE pj.technology_id = t.id)
        FROM technologies t
    `)
}

// ListTechnologies returns technologies ordered by name.
func (r *CatalogRepository) ListTechnologies(ctx context.Context, activeOnly bool) ([]domain.Technology, error) {
	query := fmt.Sprintf(`SELECT %s FROM technologies t`, technologyColumns)
	if activeOnly {
		query += ` WHERE t.is_active`
	}
	query += ` ORDER BY t.name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTechnology)
}

// TechnologiesByCodes resolves codes to technologies. Unknown codes are
// returned in missing, in input order.
func (r *CatalogRepository) TechnologiesByCodes(ctx context.Context, codes []string) ([]domain.Technology, []string, error) {
	codes = normalizeCodes(codes)
	if len(codes) == 0 {
		return nil, nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM technologies t WHERE t.code = ANY($1) ORDER BY t.name`, technologyColumns)
	rows, err := r.db.Query(ctx, query, codes)
	if err != nil {
		return nil, nil, err
	}
	techs, err := collect(rows, scanTechnology)
	if err != nil {
		return nil, nil, err
	}
	found := make(map[string]struct{}, len(techs))
	for _, t := range techs {
		found[t.Code] = struct{}{}
	}
	var missing []string
	for _, c := range codes {
		if _, ok := found[c]; !ok {
			missing = append(missing, c)
		}
	}
	return techs, missing, nil
}

// CreateTechnology inserts a technology. Name and Code are required.
func (r *CatalogRepository) CreateTechnology(ctx context.Context, params TechnologyParams) (domain.Technology, error) {
	if params.Name == nil || params.Code == nil {
		return domain.Technology{}, fmt.Errorf("create technology: name and code are required")
	}
	active := true
	if params.IsActive != nil {
		active = *params.IsActive
	}
	query := fmt.Sprintf(`
        INSERT INTO technologies AS t (name, code, description, website, icon, is_active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, technologyColumns)
	row := r.db.QueryRow(ctx, query, *params.Name, *params.Code,
		deref(params.Description), deref(params.Website), deref(params.Icon), active)
	tech, err := scanTechnology(row)
	return tech, translate(err)
}

// UpdateTechnology applies the non-nil fields of params.
func (r *CatalogRepository) UpdateTechnology(ctx context.Context, id int64, params TechnologyParams) (domain.Technology, error) {
	query := fmt.Sprintf(`
        UPDATE technologies AS t
        SET name = COALESCE($2, t.name),
            code = COALESCE($3, t.code),
            description = COALESCE($4, t.description),
            website = COALESCE($5, t.website),
            icon = COALESCE($6, t.icon),
            is_active = COALESCE($7, t.is_active),
            updated_at = now()
        WHERE t.id = $1
        RETURNING %s
    `, technologyColumns)
	row := r.db.QueryRow(ctx, query, id, params.Name, params.Code,
		params.Description, params.Website, params.Icon, params.IsActive)
	tech, err := scanTechnology(row)
	return tech, translate(err)
}

// DeleteTechnology removes a technology and its profile/project links.
func (r *CatalogRepository) DeleteTechnology(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "technologies", id)
}

func (r *CatalogRepository) listNamed(ctx context.Context, table string) ([]namedCode, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT id, name, code FROM %s ORDER BY name`, table))
	if err != nil {
		return nil, err
	}
	return collect(rows, scanNamedCode)
}

func (r *CatalogRepository) namedByCode(ctx context.Context, table, code string) (namedCode, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT id, name, code FROM %s WHERE code = $1`, table), strings.TrimSpace(code))
	n, err := scanNamedCode(row)
	return n, translate(err)
}

func (r *CatalogRepository) createNamed(ctx context.Context, table string, params NamedCodeParams) (namedCode, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`INSERT INTO %s (name, code) VALUES ($1,$2) RETURNING id, name, code`, table),
		params.Name, params.Code)
	n, err := scanNamedCode(row)
	return n, translate(err)
}

func (r *CatalogRepository) updateNamed(ctx context.Context, table string, id int64, params NamedCodeParams) (namedCode, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET name = COALESCE(NULLIF($2, ''), name),
            code = COALESCE(NULLIF($3, ''), code)
        WHERE id = $1
        RETURNING id, name, code
    `, table), id, params.Name, params.Code)
	n, err := scanNamedCode(row)
	return n, translate(err)
}

func (r *CatalogRepository) deleteByID(ctx context.Context, table string, id int64) error {
	return execDelete(ctx, r.db, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
}

func (r *CatalogRepository) usage(ctx context.Context, query string) (map[int64]UsageCount, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]UsageCount)
	for rows.Next() {
		var id int64
		var u UsageCount
		if err := rows.Scan(&id, &u.Profiles, &u.Projects); err != nil {
			return nil, err
		}
		out[id] = u
	}
	return out, rows.Err()
}

func scanNamedCode(row pgx.Row) (namedCode, error) {
	var n namedCode
	if err := row.Scan(&n.ID, &n.Name, &n.Code); err != nil {
		return namedCode{}, err
	}
	return n, nil
}

func scanTechnology(row pgx.Row) (domain.Technology, error) {
	var t domain.Technology
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Code,
		&t.Description,
		&t.Website,
		&t.Icon,
		&t.IsActive,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return domain.Technology{}, err
	}
	return t, nil
}

func normalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
