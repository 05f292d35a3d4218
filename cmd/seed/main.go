// Command seed populates a development database with demo employees and a
// week of shift slots so the API can be exercised immediately:
//
//	go run ./cmd/seed
//
// Seeding is idempotent per run only in the sense that it refuses to touch a
// database that already contains employees; set SEED_FORCE=1 to seed anyway.
// SEED_DB_PATH overrides DB_PATH so a throwaway database can be filled without
// touching the server's configuration.
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/shiftdesk/go-schedule-backend/internal/config"
	"github.com/shiftdesk/go-schedule-backend/internal/domain"
	"github.com/shiftdesk/go-schedule-backend/internal/orgtime"
	"github.com/shiftdesk/go-schedule-backend/internal/repo"
	"github.com/shiftdesk/go-schedule-backend/internal/sysutil"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)

	dbPath := sysutil.FirstNonEmpty(os.Getenv("SEED_DB_PATH"), cfg.DBPath)
	db, err := repo.OpenSQLite(dbPath, false)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ctx := context.Background()

	existing, err := repo.ListEmployees(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("inspect database")
	}
	if len(existing) > 0 && !sysutil.IsTruthy(os.Getenv("SEED_FORCE")) {
		log.Warn().Int("employees", len(existing)).Msg("database already seeded; nothing to do")
		os.Exit(0)
	}

	clock, err := orgtime.New(cfg.OrgTimezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.OrgTimezone).Msg("configure organization clock")
	}

	employees := []*domain.Employee{
		{FirstName: "Priya", LastName: "Smith", Role: domain.RoleAdmin,
			Skills: domain.SkillSet{Skills: []string{"forklift", "first_aid"}}},
		{FirstName: "John", LastName: "Doe", Role: domain.RoleEmployee,
			Skills: domain.SkillSet{Skills: []string{"forklift"}}},
		{FirstName: "Alex", LastName: "Johnson", Role: domain.RoleEmployee,
			Skills: domain.SkillSet{Skills: []string{"first_aid"}}},
		{FirstName: "Maria", LastName: "Garcia", Role: domain.RoleEmployee},
		{FirstName: "Sam", LastName: "Lee", Role: domain.RoleEmployee,
			Certifications: domain.Certifications{Expired: true}},
	}
	for _, e := range employees {
		if err := repo.CreateEmployee(ctx, db, e); err != nil {
			log.Fatal().Err(err).Str("name", e.FullName).Msg("seed employee")
		}
		log.Info().Str("id", e.ID).Str("name", e.FullName).Str("role", string(e.Role)).Msg("employee created")
	}

	// One week of morning/night slots starting today; the first few slots get
	// assignees so swap and cover flows are testable out of the box.
	holders := []*string{&employees[1].ID, &employees[2].ID, &employees[3].ID, nil}
	day := clock.Today()
	created := 0
	for i := 0; i < 7; i++ {
		for j, typ := range []domain.ShiftType{domain.ShiftMorning, domain.ShiftNight} {
			sh := &domain.Shift{
				Date:               day.AddDays(i),
				Type:               typ,
				AssignedEmployeeID: holders[(i*2+j)%len(holders)],
			}
			if err := repo.CreateShift(ctx, db, sh); err != nil {
				log.Fatal().Err(err).Str("date", sh.Date.String()).Str("type", string(typ)).Msg("seed shift")
			}
			created++
		}
	}

	log.Info().Int("employees", len(employees)).Int("shifts", created).Msg("seed complete")
}
