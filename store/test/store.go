package test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/campfire-chat/campfire/internal/profile"
	"github.com/campfire-chat/campfire/store"
	"github.com/campfire-chat/campfire/store/db"
)

// NewTestingStore creates a migrated sqlite-backed store in a per-test
// directory. Set CAMPFIRE_TEST_DSN and CAMPFIRE_TEST_DRIVER to run the suite
// against postgres instead.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := getTestingProfile(t)
	driver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	st := store.New(driver, p)
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func getTestingProfile(t *testing.T) *profile.Profile {
	if dsn := os.Getenv("CAMPFIRE_TEST_DSN"); dsn != "" {
		driver := os.Getenv("CAMPFIRE_TEST_DRIVER")
		if driver == "" {
			driver = "postgres"
		}
		return &profile.Profile{Mode: "demo", Driver: driver, DSN: dsn}
	}

	dir := t.TempDir()
	return &profile.Profile{
		Mode:   "demo",
		Driver: "sqlite",
		Data:   dir,
		DSN:    filepath.Join(dir, "campfire_test.db"),
	}
}

func createTestingUser(ctx context.Context, ts *store.Store, email string) (*store.User, error) {
	now := time.Now().Unix()
	return ts.CreateUser(ctx, &store.User{
		Name:         "tester",
		Email:        email,
		PasswordHash: "$2a$10$testhashtesthashtesthashte",
		CreatedTs:    now,
		UpdatedTs:    now,
		RowStatus:    store.Normal,
	})
}

func createTestingConversation(ctx context.Context, ts *store.Store, creatorID int32, uid, agent string) (*store.Conversation, error) {
	now := time.Now().Unix()
	return ts.CreateConversation(ctx, &store.Conversation{
		UID:       uid,
		CreatorID: creatorID,
		Title:     fmt.Sprintf("conversation %s", uid),
		AgentID:   agent,
		CreatedTs: now,
		UpdatedTs: now,
		RowStatus: store.Normal,
	})
}
