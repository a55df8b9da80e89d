// Package reviews records reviews and keeps the denormalized profile
// statistics (rating, review_count) in step with them.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
	"github.com/Clark-Hu/specialist-directory/internal/logger"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/validate"
)

// Invalidator drops cached views of a profile.
type Invalidator interface {
	InvalidateProfile(ctx context.Context, profileID int64) error
}

// RecordInput is a review submitted against a profile.
type RecordInput struct {
	ProfileID        int64  `json:"profile" validate:"gt=0"`
	ProjectID        *int64 `json:"project" validate:"omitempty,gt=0"`
	Rating           int    `json:"rating" validate:"gte=1,lte=5"`
	Text             string `json:"text" validate:"required"`
	ReviewerName     string `json:"reviewer_name" validate:"required,max=100"`
	ReviewerPosition string `json:"reviewer_position" validate:"max=100"`
	ReviewerCompany  string `json:"reviewer_company" validate:"max=100"`
}

// Service is the only write path for new reviews.
type Service struct {
	repo   *repository.Repository
	cache  Invalidator
	logger *logger.Logger
}

// NewService wires the aggregator. cache and log may be nil.
func NewService(repo *repository.Repository, cache Invalidator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, cache: cache, logger: log.With("component", "reviews")}
}

// Record validates in, then in one transaction locks the profile row, derives
// the next statistics from the stored ratings plus in.Rating, persists them and
// inserts the review. Invalid input returns validate.Errors and writes nothing.
// An unknown profile returns repository.ErrNotFound.
func (s *Service) Record(ctx context.Context, in RecordInput) (domain.Review, error) {
	in.Text = strings.TrimSpace(in.Text)
	in.ReviewerName = strings.TrimSpace(in.ReviewerName)
	in.ReviewerPosition = strings.TrimSpace(in.ReviewerPosition)
	in.ReviewerCompany = strings.TrimSpace(in.ReviewerCompany)
	if err := validate.Struct(in); err != nil {
		return domain.Review{}, err
	}

	var review domain.Review
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		prev, err := tx.Profiles.LockStats(ctx, in.ProfileID)
		if err != nil {
			return fmt.Errorf("lock profile %d: %w", in.ProfileID, err)
		}

		if in.ProjectID != nil {
			project, err := tx.Projects.Get(ctx, *in.ProjectID)
			if errors.Is(err, repository.ErrNotFound) {
				return validate.Field("project", "Invalid pk - object does not exist.")
			}
			if err != nil {
				return fmt.Errorf("load project: %w", err)
			}
			if project.ProfileID != in.ProfileID {
				return validate.Field("project", "Project does not belong to this profile.")
			}
		}

		ratings, err := tx.Reviews.Ratings(ctx, in.ProfileID)
		if err != nil {
			return err
		}
		next := domain.NextProfileStats(prev.ReviewCount, ratings, in.Rating)
		if err := tx.Profiles.UpdateStats(ctx, in.ProfileID, next); err != nil {
			return fmt.Errorf("update profile stats: %w", err)
		}

		review, err = tx.Reviews.Insert(ctx, repository.ReviewCreateParams{
			ProfileID:        in.ProfileID,
			ProjectID:        in.ProjectID,
			Rating:           in.Rating,
			Text:             in.Text,
			ReviewerName:     in.ReviewerName,
			ReviewerPosition: in.ReviewerPosition,
			ReviewerCompany:  in.ReviewerCompany,
		})
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Review{}, err
	}

	s.invalidate(ctx, in.ProfileID)
	s.logger.Debug("review recorded", "profile_id", in.ProfileID, "review_id", review.ID, "rating", review.Rating)
	return review, nil
}

// Recompute rebuilds a profile's statistics from its current reviews under
// the same row lock Record uses.
func (s *Service) Recompute(ctx context.Context, profileID int64) (domain.ProfileStats, error) {
	var stats domain.ProfileStats
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if _, err := tx.Profiles.LockStats(ctx, profileID); err != nil {
			return fmt.Errorf("lock profile %d: %w", profileID, err)
		}
		ratings, err := tx.Reviews.Ratings(ctx, profileID)
		if err != nil {
			return err
		}
		stats = domain.RecomputeProfileStats(ratings)
		return tx.Profiles.UpdateStats(ctx, profileID, stats)
	})
	if err != nil {
		return domain.ProfileStats{}, err
	}
	s.invalidate(ctx, profileID)
	s.logger.Info("profile stats recomputed", "profile_id", profileID, "rating", stats.Rating, "review_count", stats.ReviewCount)
	return stats, nil
}

// Delete removes a review. Statistics are left as they are and must be
// repaired with Recompute.
func (s *Service) Delete(ctx context.Context, reviewID int64) (int64, error) {
	profileID, err := s.repo.Reviews.Delete(ctx, reviewID)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, profileID)
	s.logger.Info("review deleted, profile stats stale", "profile_id", profileID, "review_id", reviewID)
	return profileID, nil
}

func (s *Service) invalidate(ctx context.Context, profileID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProfile(ctx, profileID); err != nil {
		s.logger.Warn("profile cache invalidation failed", "profile_id", profileID, "error", err)
	}
}
