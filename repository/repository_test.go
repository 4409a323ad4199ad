package repository

import (
	"context"
	"errors"
	"testing"

	"DMPlayer/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(model.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormUserRepository(newTestDB(t))

	u := &model.User{Email: "dj@example.com", ArtistName: "DJ", PasswordHash: "x"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("id not assigned")
	}

	dup := &model.User{Email: "dj@example.com", ArtistName: "Other", PasswordHash: "y"}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}

	got, err := repo.GetByEmail(ctx, "dj@example.com")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("GetByEmail = %+v, %v", got, err)
	}
	missing, err := repo.GetByID(ctx, 999)
	if err != nil || missing != nil {
		t.Fatalf("GetByID(missing) = %+v, %v", missing, err)
	}
}

func TestProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewGormUserRepository(db)
	projects := NewGormProjectRepository(db)
	tracks := NewGormTrackRepository(db)
	cues := NewGormCueRepository(db)

	owner := &model.User{Email: "a@example.com", ArtistName: "Aphex", PasswordHash: "x"}
	if err := users.Create(ctx, owner); err != nil {
		t.Fatal(err)
	}
	p := &model.Project{ID: "p1", OwnerID: owner.ID, Name: "Set"}
	if err := projects.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := tracks.Create(ctx, &model.Track{ID: "t1", ProjectID: "p1", OriginalName: "a.mp3", ObjectKey: "k", Duration: 90}); err != nil {
		t.Fatal(err)
	}
	for id, at := range map[string]float64{"c1": 40, "c2": 10, "c3": 25} {
		if err := cues.Create(ctx, &model.CuePoint{ID: id, ProjectID: "p1", Time: at}); err != nil {
			t.Fatal(err)
		}
	}

	if err := cues.UpdateTime(ctx, "p1", "c1", 5); err != nil {
		t.Fatal(err)
	}
	if err := cues.UpdateTime(ctx, "other", "c1", 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-project update: %v", err)
	}

	detail, err := projects.GetDetail(ctx, "p1")
	if err != nil || detail == nil {
		t.Fatalf("GetDetail = %v, %v", detail, err)
	}
	if detail.Owner != "Aphex" || len(detail.Tracks) != 1 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	var order []string
	for _, c := range detail.CuePoints {
		order = append(order, c.ID)
	}
	if len(order) != 3 || order[0] != "c1" || order[1] != "c2" || order[2] != "c3" {
		t.Fatalf("cues not sorted by time: %v", order)
	}

	p.Name, p.Public = "Renamed", true
	if err := projects.Update(ctx, p); err != nil {
		t.Fatal(err)
	}
	public, err := projects.ListPublic(ctx)
	if err != nil || len(public) != 1 || public[0].Name != "Renamed" {
		t.Fatalf("ListPublic = %v, %v", public, err)
	}

	if err := projects.Delete(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	left, _ := cues.ListByProject(ctx, "p1")
	trk, _ := tracks.ListByProject(ctx, "p1")
	if len(left) != 0 || len(trk) != 0 {
		t.Fatalf("children not deleted: %d cues %d tracks", len(left), len(trk))
	}
	if err := projects.Delete(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
