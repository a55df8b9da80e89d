package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
)

// ContactsRepository persists social network links and contact channels.
type ContactsRepository struct {
	db DBTX
}

const socialNetworkColumns = `id, profile_id, network_type, url, is_primary, custom_name`

const contactColumns = `
    id,
    profile_id,
    contact_type,
    value,
    is_primary,
    is_public,
    custom_name,
    label,
    is_verified,
    verified_at
`

// SocialNetworkParams bundles the fields of a new social network link.
type SocialNetworkParams struct {
	ProfileID   int64
	NetworkType string
	URL         string
	IsPrimary   bool
	CustomName  string
}

// ContactParams bundles the fields of a new contact channel.
type ContactParams struct {
	ProfileID   int64
	ContactType string
	Value       string
	IsPrimary   bool
	IsPublic    bool
	CustomName  string
	Label       string
}

// CreateSocialNetwork inserts a link. A second link of the same network type
// on one profile is rejected with ErrConflict.
func (r *ContactsRepository) CreateSocialNetwork(ctx context.Context, params SocialNetworkParams) (domain.SocialNetwork, error) {
	query := fmt.Sprintf(`
        INSERT INTO social_networks (profile_id, network_type, url, is_primary, custom_name)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING %s
    `, socialNetworkColumns)
	sn, err := scanSocialNetwork(r.db.QueryRow(ctx, query, params.ProfileID, params.NetworkType,
		params.URL, params.IsPrimary, params.CustomName))
	return sn, translate(err)
}

// GetSocialNetwork fetches a link by id.
func (r *ContactsRepository) GetSocialNetwork(ctx context.Context, id int64) (domain.SocialNetwork, error) {
	query := fmt.Sprintf(`SELECT %s FROM social_networks WHERE id = $1`, socialNetworkColumns)
	sn, err := scanSocialNetwork(r.db.QueryRow(ctx, query, id))
	return sn, translate(err)
}

// ListSocialNetworks returns a profile's links, primary first.
func (r *ContactsRepository) ListSocialNetworks(ctx context.Context, profileID int64) ([]domain.SocialNetwork, error) {
	query := fmt.Sprintf(`SELECT %s FROM social_networks WHERE profile_id = $1 ORDER BY is_primary DESC, network_type`,
		socialNetworkColumns)
	rows, err := r.db.Query(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSocialNetwork)
}

// DeleteSocialNetwork removes a link.
func (r *ContactsRepository) DeleteSocialNetwork(ctx context.Context, id int64) error {
	return execDelete(ctx, r.db, `DELETE FROM social_networks WHERE id = $1`, id)
}

// CreateContact inserts a contact. A duplicate (type, value) on one profile
// is rejected with ErrConflict.
func (r *ContactsRepository) CreateContact(ctx context.Context, params ContactParams) (domain.ContactInfo, error) {
	query := fmt.Sprintf(`
        INSERT INTO contact_infos (profile_id, contact_type, value, is_primary, is_public, custom_name, label)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING %s
    `, contactColumns)
	c, err := scanContact(r.db.QueryRow(ctx, query, params.ProfileID, params.ContactType, params.Value,
		params.IsPrimary, params.IsPublic, params.CustomName, params.Label))
	return c, translate(err)
}

// GetContact fetches a contact by id.
func (r *ContactsRepository) GetContact(ctx context.Context, id int64) (domain.ContactInfo, error) {
	query := fmt.Sprintf(`SELECT %s FROM contact_infos WHERE id = $1`, contactColumns)
	c, err := scanContact(r.db.QueryRow(ctx, query, id))
	return c, translate(err)
}

// ListContacts returns a profile's contacts, primary first. publicOnly hides
// contacts marked private.
func (r *ContactsRepository) ListContacts(ctx context.Context, profileID int64, publicOnly bool) ([]domain.ContactInfo, error) {
	query := fmt.Sprintf(`SELECT %s FROM contact_infos WHERE profile_id = $1`, contactColumns)
	if publicOnly {
		query += ` AND is_public`
	}
	query += ` ORDER BY is_primary DESC, contact_type`
	rows, err := r.db.Query(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanContact)
}

// VerifyContact marks a contact verified and stamps verified_at once.
func (r *ContactsRepository) VerifyContact(ctx context.Context, id int64) (domain.ContactInfo, error) {
	query := fmt.Sprintf(`
        UPDATE contact_infos
        SET is_verified = TRUE, verified_at = COALESCE(verified_at, now())
        WHERE id = $1
        RETURNING %s
    `, contactColumns)
	c, err := scanContact(r.db.QueryRow(ctx, query, id))
	return c, translate(err)
}

// DeleteContact removes a contact.
func (r *ContactsRepository) DeleteContact(ctx context.Context, id int64) error {
	return execDelete(ctx, r.db, `DELETE FROM contact_infos WHERE id = $1`, id)
}

func scanSocialNetwork(row pgx.Row) (domain.SocialNetwork, error) {
	var sn domain.SocialNetwork
	if err := row.Scan(&sn.ID, &sn.ProfileID, &sn.NetworkType, &sn.URL, &sn.IsPrimary, &sn.CustomName); err != nil {
		return domain.SocialNetwork{}, err
	}
	return sn, nil
}

func scanContact(row pgx.Row) (domain.ContactInfo, error) {
	var c domain.ContactInfo
	err := row.Scan(
		&c.ID,
		&c.ProfileID,
		&c.ContactType,
		&c.Value,
		&c.IsPrimary,
		&c.IsPublic,
		&c.CustomName,
		&c.Label,
		&c.IsVerified,
		&c.VerifiedAt,
	)
	if err != nil {
		return domain.ContactInfo{}, err
	}
	return c, nil
}

func execDelete(ctx context.Context, db DBTX, query string, id int64) error {
	tag, err := db.Exec(ctx, query, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
