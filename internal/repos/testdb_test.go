package repos

import (
    "fmt"
    "testing"

    "github.com/google/uuid"
    "gorm.io/driver/sqlite"
    "gorm.io/gorm"
    gormlogger "gorm.io/gorm/logger"

    "github.com/danlsims/AIChatbot/internal/logger"
    "github.com/danlsims/AIChatbot/internal/types"
)

// newTestDB opens an isolated in-memory sqlite database. The shared-cache DSN
// keeps every pooled connection pointed at the same database.
func newTestDB(t *testing.T) *gorm.DB {
    t.Helper()
    dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
    db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
        Logger: gormlogger.Default.LogMode(gormlogger.Silent),
    })
    if err != nil {
        t.Fatalf("failed to open test db: %v", err)
    }
    if err := db.AutoMigrate(&types.User{}, &types.UserToken{}, &types.Conversation{}, &types.Message{}); err != nil {
        t.Fatalf("failed to migrate test db: %v", err)
    }
    return db
}

func newTestLogger(t *testing.T) *logger.Logger {
    t.Helper()
    log, err := logger.New("development")
    if err != nil {
        t.Fatalf("failed to init logger: %v", err)
    }
    return log
}
