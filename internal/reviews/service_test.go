package reviews

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Clark-Hu/specialist-directory/internal/domain"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/testdb"
	"github.com/Clark-Hu/specialist-directory/internal/validate"
)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recordingInvalidator) InvalidateProfile(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

type testEnv struct {
	ctx     context.Context
	repo    *repository.Repository
	service *Service
	cache   *recordingInvalidator
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	pool := testdb.New(t, 44000, "reviews_test")
	repo := repository.NewWithPool(pool)
	inv := &recordingInvalidator{}
	return &testEnv{
		ctx:     context.Background(),
		repo:    repo,
		service: NewService(repo, inv, nil),
		cache:   inv,
	}
}

func (e *testEnv) newProfile(t testing.TB) domain.Profile {
	t.Helper()
	suffix := time.Now().UnixNano()
	emp, err := e.repo.Catalog.CreateEmploymentType(e.ctx, repository.NamedCodeParams{Name: fmt.Sprintf("emp-%d", suffix), Code: fmt.Sprintf("e%d", suffix%1e9)})
	if err != nil {
		t.Fatalf("create employment: %v", err)
	}
	lvl, err := e.repo.Catalog.CreateSpecialistLevel(e.ctx, repository.NamedCodeParams{Name: fmt.Sprintf("lvl-%d", suffix), Code: fmt.Sprintf("l%d", suffix%1e9)})
	if err != nil {
		t.Fatalf("create level: %v", err)
	}
	user, err := e.repo.Users.Create(e.ctx, repository.UserCreateParams{Email: fmt.Sprintf("u%d@example.com", suffix), PasswordHash: "x", IsActive: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := e.repo.Profiles.Create(e.ctx, repository.ProfileCreateParams{
		UserID:       user.ID,
		FirstName:    "Rita",
		LastName:     "Reviewed",
		Position:     "Engineer",
		EmploymentID: emp.ID,
		LevelID:      lvl.ID,
		Experience:   "4 years",
	})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

func (e *testEnv) stats(t testing.TB, id int64) domain.ProfileStats {
	t.Helper()
	p, err := e.repo.Profiles.GetByID(e.ctx, id)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	return domain.ProfileStats{Rating: p.Rating, ReviewCount: p.ReviewCount}
}

func input(profileID int64, rating int) RecordInput {
	return RecordInput{ProfileID: profileID, Rating: rating, Text: "good", ReviewerName: "Client"}
}

func assertStats(t *testing.T, got domain.ProfileStats, rating float64, count int) {
	t.Helper()
	if got.ReviewCount != count || math.Abs(got.Rating-rating) > 0.0001 {
		t.Fatalf("stats = %.1f/%d, want %.1f/%d", got.Rating, got.ReviewCount, rating, count)
	}
}

func TestRecord_UpdatesStats(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProfile(t)

	if _, err := env.service.Record(env.ctx, input(p.ID, 5)); err != nil {
		t.Fatalf("record 5: %v", err)
	}
	assertStats(t, env.stats(t, p.ID), 5.0, 1)

	if _, err := env.service.Record(env.ctx, input(p.ID, 1)); err != nil {
		t.Fatalf("record 1: %v", err)
	}
	assertStats(t, env.stats(t, p.ID), 3.0, 2)

	if _, err := env.service.Record(env.ctx, input(p.ID, 4)); err != nil {
		t.Fatalf("record 4: %v", err)
	}
	assertStats(t, env.stats(t, p.ID), 3.3, 3)

	if len(env.cache.ids) != 3 || env.cache.ids[0] != p.ID {
		t.Fatalf("invalidations = %v", env.cache.ids)
	}
}

func TestRecord_RejectsOutOfRange(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProfile(t)

	for _, rating := range []int{0, 6} {
		_, err := env.service.Record(env.ctx, input(p.ID, rating))
		verr, ok := validate.As(err)
		if !ok || len(verr["rating"]) == 0 {
			t.Fatalf("rating %d err = %v, want rating field error", rating, err)
		}
	}
	assertStats(t, env.stats(t, p.ID), 0, 0)

	ratings, err := env.repo.Reviews.Ratings(env.ctx, p.ID)
	if err != nil || len(ratings) != 0 {
		t.Fatalf("rejected review stored: %v, %v", ratings, err)
	}
}

func TestRecord_RequiresTextAndReviewer(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProfile(t)

	_, err := env.service.Record(env.ctx, RecordInput{ProfileID: p.ID, Rating: 3, Text: "   "})
	verr, ok := validate.As(err)
	if !ok || len(verr["text"]) == 0 || len(verr["reviewer_name"]) == 0 {
		t.Fatalf("err = %v", err)
	}
}

func TestRecord_UnknownProfile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.Record(env.ctx, input(424242, 3))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecord_ProjectMustBelongToProfile(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProfile(t)
	other := env.newProfile(t)

	project, err := env.repo.Projects.Create(env.ctx, repository.ProjectCreateParams{
		ProfileID:   other.ID,
		Title:       "Elsewhere",
		Description: "d",
		StartDate:   time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	in := input(p.ID, 4)
	in.ProjectID = &project.ID
	_, err = env.service.Record(env.ctx, in)
	if verr, ok := validate.As(err); !ok || len(verr["project"]) == 0 {
		t.Fatalf("err = %v, want project field error", err)
	}
	assertStats(t, env.stats(t, p.ID), 0, 0)
}

func TestRecord_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProfile(t)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(rating int) {
			defer wg.Done()
			if _, err := env.service.Record(env.ctx, input(p.ID, rating)); err != nil {
				t.Errorf("record %d: %v", rating, err)
			}
		}(i%5 + 1)
	}
	wg.Wait()

	// Ratings 1..5 twice each: mean 3.0.
	assertStats(t, env.stats(t, p.ID), 3.0, workers)
}

func TestProjectDelete_LeavesStats(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProfile(t)

	project, err := env.repo.Projects.Create(env.ctx, repository.ProjectCreateParams{
		ProfileID:   p.ID,
		Title:       "Own",
		Description: "d",
		StartDate:   time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	in := input(p.ID, 2)
	in.ProjectID = &project.ID
	rv, err := env.service.Record(env.ctx, in)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if _, err := env.repo.Projects.Delete(env.ctx, project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	got, err := env.repo.Reviews.Get(env.ctx, rv.ID)
	if err != nil || got.ProjectID != nil {
		t.Fatalf("review after project delete = %+v, %v", got, err)
	}
	assertStats(t, env.stats(t, p.ID), 2.0, 1)
}

func TestDeleteThenRecompute(t *testing.T) {
	env := newTestEnv(t)
	p := env.newProfile(t)

	first, err := env.service.Record(env.ctx, input(p.ID, 5))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := env.service.Record(env.ctx, input(p.ID, 2)); err != nil {
		t.Fatalf("record: %v", err)
	}
	assertStats(t, env.stats(t, p.ID), 3.5, 2)

	owner, err := env.service.Delete(env.ctx, first.ID)
	if err != nil || owner != p.ID {
		t.Fatalf("delete = %d, %v", owner, err)
	}
	assertStats(t, env.stats(t, p.ID), 3.5, 2)

	stats, err := env.service.Recompute(env.ctx, p.ID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	assertStats(t, stats, 2.0, 1)
	assertStats(t, env.stats(t, p.ID), 2.0, 1)
}

func BenchmarkRecord(b *testing.B) {
	env := newTestEnv(b)
	p := env.newProfile(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.service.Record(env.ctx, input(p.ID, i%5+1)); err != nil {
			b.Fatalf("record: %v", err)
		}
	}
}
