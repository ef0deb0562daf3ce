package integration

import (
	"context"
	"fmt"
	"os"

	"github.com/stretchr/testify/suite"

	"github.com/udisondev/spawnkeep/internal/db"
)

// IntegrationSuite is the base for integration suites. The PostgreSQL
// container starts once in TestMain; each suite gets an isolated schema via
// acquireSchema().
type IntegrationSuite struct {
	suite.Suite
	db    *db.DB
	store *db.SpawnerRepository
	ctx   context.Context
}

// SetupSuite runs once before all tests in the suite.
func (s *IntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	// A manually set DB_ADDR wins (for CI/CD).
	dbAddr := os.Getenv("DB_ADDR")
	if dbAddr == "" {
		dbAddr = acquireSchema(s.T())
	}

	if err := db.RunMigrations(s.ctx, dbAddr); err != nil {
		s.T().Fatalf("failed to run migrations: %v", err)
	}

	var err error
	s.db, err = db.New(s.ctx, dbAddr)
	if err != nil {
		s.T().Fatalf("failed to connect to database: %v", err)
	}
	s.store = db.NewSpawnerRepository(s.db.Pool())
}

// SetupTest wipes spawner rows before each test.
func (s *IntegrationSuite) SetupTest() {
	if err := s.cleanupTestData(); err != nil {
		s.T().Fatalf("failed to cleanup test data: %v", err)
	}
}

// TearDownSuite runs once after all tests in the suite.
func (s *IntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	// The container terminates in TestMain, the schema drops via t.Cleanup.
}

func (s *IntegrationSuite) cleanupTestData() error {
	if _, err := s.db.Pool().Exec(s.ctx, "TRUNCATE TABLE spawners"); err != nil {
		return fmt.Errorf("truncating test tables: %w", err)
	}
	return nil
}
