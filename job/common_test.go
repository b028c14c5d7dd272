package job

import (
	"testing"

	"gorm.io/gorm"

	"github.com/hairizuan-noorazman/workflow-capture/logger"
	"github.com/hairizuan-noorazman/workflow-capture/testutil"
)

// setupTestStore creates a test database and job store for testing.
func setupTestStore(t *testing.T) (*gorm.DB, Store) {
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Job{})

	log := logger.NewTestLogger()
	store := NewSQLStore(db, log)

	return db, store
}

func captureConfig(app string) JSONMap {
	return JSONMap{
		ConfigApp:             app,
		ConfigTaskName:        "create_issue",
		ConfigTaskDescription: "Create a new issue titled Bug",
		ConfigStartURL:        "https://linear.app",
	}
}
