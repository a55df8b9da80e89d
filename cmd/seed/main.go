// Command seed loads reference data (employment types, specialist levels,
// technologies) and optionally a staff account into the directory database.
// Rows whose code already exists are left untouched, so it is safe to rerun.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Clark-Hu/specialist-directory/internal/auth"
	"github.com/Clark-Hu/specialist-directory/internal/config"
	"github.com/Clark-Hu/specialist-directory/internal/logger"
	"github.com/Clark-Hu/specialist-directory/internal/repository"
	"github.com/Clark-Hu/specialist-directory/internal/store"
)

type namedEntry struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type technologyEntry struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Website     string `json:"website"`
	Icon        string `json:"icon"`
}

type seedFile struct {
	EmploymentTypes  []namedEntry      `json:"employment_types"`
	SpecialistLevels []namedEntry      `json:"specialist_levels"`
	Technologies     []technologyEntry `json:"technologies"`
}

type counts struct {
	created, skipped int
}

func main() {
	var (
		data       = flag.String("data", "cmd/seed/seed.json", "path to reference data file")
		staffEmail = flag.String("staff-email", "", "create a staff account with this email")
		staffPass  = flag.String("staff-password", "", "password for -staff-email")
		logMode    = flag.String("log", "development", "log mode: development or production")
	)
	flag.Parse()

	log, err := logger.New(*logMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(*data, *staffEmail, *staffPass, log); err != nil {
		log.Fatal("seed failed", "error", err)
	}
}

func run(dataPath, staffEmail, staffPass string, log *logger.Logger) error {
	file, err := os.ReadFile(dataPath)
	if err != nil {
		return fmt.Errorf("read seed data: %w", err)
	}
	var payload seedFile
	if err := json.Unmarshal(file, &payload); err != nil {
		return fmt.Errorf("parse seed data: %w", err)
	}

	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.LoadDB()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.New(ctx, cfg.DBURL, store.Options{
		MaxConns:               2,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		AutoMigrate:            true,
		Logger:                 log,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()
	repo := repository.New(st)

	return repo.WithTx(ctx, func(tx *repository.Repository) error {
		var c counts
		for _, e := range payload.EmploymentTypes {
			err := c.insert(ctx, tx, func(sp *repository.Repository) error {
				_, err := sp.Catalog.CreateEmploymentType(ctx, repository.NamedCodeParams{Name: e.Name, Code: e.Code})
				return err
			})
			if err != nil {
				return fmt.Errorf("employment type %q: %w", e.Code, err)
			}
		}
		log.Info("employment types seeded", "created", c.created, "skipped", c.skipped)

		c = counts{}
		for _, l := range payload.SpecialistLevels {
			err := c.insert(ctx, tx, func(sp *repository.Repository) error {
				_, err := sp.Catalog.CreateSpecialistLevel(ctx, repository.NamedCodeParams{Name: l.Name, Code: l.Code})
				return err
			})
			if err != nil {
				return fmt.Errorf("specialist level %q: %w", l.Code, err)
			}
		}
		log.Info("specialist levels seeded", "created", c.created, "skipped", c.skipped)

		c = counts{}
		for _, t := range payload.Technologies {
			err := c.insert(ctx, tx, func(sp *repository.Repository) error {
				_, err := sp.Catalog.CreateTechnology(ctx, repository.TechnologyParams{
					Name:        &t.Name,
					Code:        &t.Code,
					Description: &t.Description,
					Website:     &t.Website,
					Icon:        &t.Icon,
				})
				return err
			})
			if err != nil {
				return fmt.Errorf("technology %q: %w", t.Code, err)
			}
		}
		log.Info("technologies seeded", "created", c.created, "skipped", c.skipped)

		if staffEmail == "" {
			return nil
		}
		return createStaff(ctx, tx, staffEmail, staffPass, log)
	})
}

// insert runs one create inside a savepoint so a duplicate code rolls back
// only that row. Unique violations count as skipped.
func (c *counts) insert(ctx context.Context, tx *repository.Repository, create func(*repository.Repository) error) error {
	err := tx.WithTx(ctx, create)
	switch {
	case err == nil:
		c.created++
		return nil
	case errors.Is(err, repository.ErrConflict):
		c.skipped++
		return nil
	default:
		return err
	}
}

func createStaff(ctx context.Context, tx *repository.Repository, email, password string, log *logger.Logger) error {
	if len(password) < 8 {
		return errors.New("staff password must be at least 8 characters")
	}
	svc := auth.NewService(tx.Users, nil, auth.Options{Logger: log})
	hash, err := svc.HashPassword(password)
	if err != nil {
		return err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	var id int64
	err = tx.WithTx(ctx, func(sp *repository.Repository) error {
		u, err := sp.Users.Create(ctx, repository.UserCreateParams{
			Email:        email,
			PasswordHash: hash,
			IsActive:     true,
			IsStaff:      true,
		})
		id = u.ID
		return err
	})
	if errors.Is(err, repository.ErrConflict) {
		log.Warn("staff account already exists", "email", email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create staff account: %w", err)
	}
	log.Info("staff account created", "user_id", id, "email", email)
	return nil
}
