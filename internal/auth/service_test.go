package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/testdb"
	"github.com/Clark-Hu/specialist-directory/internal/validate"
)

func newTestService(t *testing.T) (*Service, *repository.Repository) {
	t.Helper()
	pool := testdb.New(t, 46000, "auth_test")
	repo := repository.NewWithPool(pool)
	svc := NewService(repo.Users, newTestTokens(), Options{BcryptCost: bcrypt.MinCost})
	return svc, repo
}

func validSignup() SignupInput {
	return SignupInput{Email: "  Ada@Example.com ", Password: "correct horse", FirstName: "Ada", LastName: "Lovelace"}
}

func TestSignup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, validSignup())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if u.Email != "ada@example.com" || !u.IsActive || u.IsStaff {
		t.Fatalf("user = %+v", u)
	}
	if u.PasswordHash == "correct horse" {
		t.Fatalf("password stored in plain text")
	}

	_, err = svc.Signup(ctx, validSignup())
	verr, ok := validate.As(err)
	if !ok || len(verr["email"]) == 0 {
		t.Fatalf("duplicate signup err = %v", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		mod   func(*SignupInput)
		field string
	}{
		{"bad email", func(in *SignupInput) { in.Email = "not-an-email" }, "email"},
		{"short password", func(in *SignupInput) { in.Password = "  short  " }, "password"},
		{"missing first name", func(in *SignupInput) { in.FirstName = " " }, "first_name"},
		{"missing last name", func(in *SignupInput) { in.LastName = "" }, "last_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validSignup()
			tt.mod(&in)
			_, err := svc.Signup(ctx, in)
			verr, ok := validate.As(err)
			if !ok || len(verr[tt.field]) == 0 {
				t.Fatalf("err = %v, want error on %s", err, tt.field)
			}
		})
	}
}

func TestObtainRefreshVerify(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	u, err := svc.Signup(ctx, validSignup())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := svc.ObtainPair(ctx, "ada@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.ObtainPair(ctx, "nobody@example.com", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v", err)
	}
	if _, err := svc.ObtainPair(ctx, "", ""); err == nil {
		t.Fatalf("missing fields accepted")
	} else if verr, ok := validate.As(err); !ok || len(verr) != 2 {
		t.Fatalf("missing fields err = %v", err)
	}

	pair, err := svc.ObtainPair(ctx, "ADA@example.com", "correct horse")
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}
	seen, err := repo.Users.GetByID(ctx, u.ID)
	if err != nil || seen.LastSeenAt == nil || time.Since(*seen.LastSeenAt) > time.Minute {
		t.Fatalf("last_seen not updated: %+v, %v", seen, err)
	}

	me, err := svc.Authenticate(ctx, pair.Access)
	if err != nil || me.ID != u.ID {
		t.Fatalf("authenticate = %+v, %v", me, err)
	}
	if _, err := svc.Authenticate(ctx, pair.Refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh used as access err = %v", err)
	}

	access, err := svc.Refresh(ctx, pair.Refresh)
	if err != nil || access == "" {
		t.Fatalf("refresh = %q, %v", access, err)
	}
	if _, err := svc.Refresh(ctx, pair.Access); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access used as refresh err = %v", err)
	}

	if err := svc.Verify(pair.Refresh); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.Verify("nope"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("verify garbage err = %v", err)
	}
}

func TestInactiveUserRejected(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	u, err := svc.Signup(ctx, validSignup())
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	pair, err := svc.ObtainPair(ctx, "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("obtain: %v", err)
	}

	if _, err := repo.Users.SetActive(ctx, u.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.ObtainPair(ctx, "ada@example.com", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("inactive login err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, pair.Access); !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("inactive access err = %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.Refresh); !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("inactive refresh err = %v", err)
	}
}
