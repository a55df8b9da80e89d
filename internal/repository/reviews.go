package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
)

// DetailReviewLimit caps the reviews embedded in a profile detail view.
const DetailReviewLimit = 50

// ReviewsRepository provides helpers for profile reviews.
type ReviewsRepository struct {
	db DBTX
}

const reviewColumns = `
    id,
    profile_id,
    project_id,
    rating,
    text,
    reviewer_name,
    reviewer_position,
    reviewer_company,
    is_verified,
    verified_at,
    created_at,
    updated_at
`

// ReviewCreateParams captures the payload required to insert a review.
type ReviewCreateParams struct {
	ProfileID        int64
	ProjectID        *int64
	Rating           int
	Text             string
	ReviewerName     string
	ReviewerPosition string
	ReviewerCompany  string
}

// ReviewListFilters selects one page of a profile's reviews.
type ReviewListFilters struct {
	Limit  int
	Cursor *ReviewCursor
}

// ReviewCursor allows stable pagination by created_at/id.
type ReviewCursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        int64     `json:"id"`
}

// ReviewListResult returns the paginated payload.
type ReviewListResult struct {
	Items      []domain.Review
	NextCursor *string
}

// ReviewAdminFilters narrows the back-office review listing.
type ReviewAdminFilters struct {
	ProfileID *int64
	Verified  *bool
	Limit     int
	Offset    int
}

// Insert stores a review row. It does not touch profile statistics.
func (r *ReviewsRepository) Insert(ctx context.Context, params ReviewCreateParams) (domain.Review, error) {
	query := fmt.Sprintf(`
        INSERT INTO reviews (profile_id, project_id, rating, text, reviewer_name, reviewer_position, reviewer_company)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING %s
    `, reviewColumns)
	review, err := scanReview(r.db.QueryRow(ctx, query, params.ProfileID, params.ProjectID, params.Rating,
		params.Text, params.ReviewerName, params.ReviewerPosition, params.ReviewerCompany))
	return review, translate(err)
}

// Ratings returns every rating currently stored for a profile.
func (r *ReviewsRepository) Ratings(ctx context.Context, profileID int64) ([]int, error) {
	rows, err := r.db.Query(ctx, `SELECT rating FROM reviews WHERE profile_id = $1`, profileID)
	if err != nil {
		return nil, fmt.Errorf("load ratings: %w", err)
	}
	return collect(rows, func(row pgx.Row) (int, error) {
		var v int
		err := row.Scan(&v)
		return v, err
	})
}

// Get fetches a review by id.
func (r *ReviewsRepository) Get(ctx context.Context, id int64) (domain.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	review, err := scanReview(r.db.QueryRow(ctx, query, id))
	return review, translate(err)
}

// ListByProfile returns a profile's reviews newest first.
func (r *ReviewsRepository) ListByProfile(ctx context.Context, profileID int64, filters ReviewListFilters) (ReviewListResult, error) {
	filters.Limit = clampLimit(filters.Limit)

	args := []interface{}{profileID}
	where := "profile_id = $1"
	if filters.Cursor != nil {
		args = append(args, filters.Cursor.CreatedAt, filters.Cursor.ID)
		where += " AND (created_at, id) < ($2, $3)"
	}
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d`,
		reviewColumns, where, filters.Limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return ReviewListResult{}, err
	}
	items, err := collect(rows, scanReview)
	if err != nil {
		return ReviewListResult{}, err
	}

	var nextCursor *string
	if len(items) == filters.Limit {
		last := items[len(items)-1]
		token, err := EncodeCursor(ReviewCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		if err != nil {
			return ReviewListResult{}, err
		}
		nextCursor = &token
	}
	return ReviewListResult{Items: items, NextCursor: nextCursor}, nil
}

// Recent returns up to limit of a profile's newest reviews.
func (r *ReviewsRepository) Recent(ctx context.Context, profileID int64, limit int) ([]domain.Review, error) {
	res, err := r.ListByProfile(ctx, profileID, ReviewListFilters{Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// ListByProjectIDs groups reviews by the project they reference.
func (r *ReviewsRepository) ListByProjectIDs(ctx context.Context, projectIDs []int64) (map[int64][]domain.Review, error) {
	out := make(map[int64][]domain.Review, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE project_id = ANY($1) ORDER BY created_at DESC, id DESC`, reviewColumns)
	rows, err := r.db.Query(ctx, query, projectIDs)
	if err != nil {
		return nil, err
	}
	items, err := collect(rows, scanReview)
	if err != nil {
		return nil, err
	}
	for _, rv := range items {
		out[*rv.ProjectID] = append(out[*rv.ProjectID], rv)
	}
	return out, nil
}

// List returns reviews for the back-office, newest first.
func (r *ReviewsRepository) List(ctx context.Context, filters ReviewAdminFilters) ([]domain.Review, error) {
	filters.Limit = clampLimit(filters.Limit)
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	where := make([]string, 0)
	args := make([]interface{}, 0)
	if filters.ProfileID != nil {
		args = append(args, *filters.ProfileID)
		where = append(where, fmt.Sprintf("profile_id = $%d", len(args)))
	}
	if filters.Verified != nil {
		args = append(args, *filters.Verified)
		where = append(where, fmt.Sprintf("is_verified = $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT %s FROM reviews`, reviewColumns)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", filters.Limit, filters.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReview)
}

// Verify marks a review verified. The rating is left alone, so profile
// statistics stay valid.
func (r *ReviewsRepository) Verify(ctx context.Context, id int64) (domain.Review, error) {
	query := fmt.Sprintf(`
        UPDATE reviews
        SET is_verified = TRUE, verified_at = COALESCE(verified_at, now()), updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, reviewColumns)
	review, err := scanReview(r.db.QueryRow(ctx, query, id))
	return review, translate(err)
}

// Delete removes a review and returns the profile it belonged to. Profile
// statistics are not recomputed.
func (r *ReviewsRepository) Delete(ctx context.Context, id int64) (int64, error) {
	var profileID int64
	err := r.db.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING profile_id`, id).Scan(&profileID)
	return profileID, translate(err)
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var rv domain.Review
	err := row.Scan(
		&rv.ID,
		&rv.ProfileID,
		&rv.ProjectID,
		&rv.Rating,
		&rv.Text,
		&rv.ReviewerName,
		&rv.ReviewerPosition,
		&rv.ReviewerCompany,
		&rv.IsVerified,
		&rv.VerifiedAt,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}
	return rv, nil
}

// EncodeCursor serializes a cursor into an opaque URL-safe token.
func EncodeCursor(c ReviewCursor) (string, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeCursor parses a cursor token into a ReviewCursor.
func DecodeCursor(token string) (*ReviewCursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", err)
	}
	var cursor ReviewCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	if cursor.ID <= 0 || cursor.CreatedAt.IsZero() {
		return nil, fmt.Errorf("invalid cursor payload")
	}
	return &cursor, nil
}
