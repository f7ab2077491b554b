package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/simp-lee/gorepo/internal/domain"
)

// widget and part are minimal entities with a has-many association.
type widget struct {
	domain.BaseModel
	Name  string `gorm:"size:100"`
	Color string `gorm:"size:20"`
	Parts []part `gorm:"foreignKey:WidgetID"`
}

type part struct {
	domain.BaseModel
	WidgetID uint
	Label    string `gorm:"size:100"`
}

// newTestDB opens a file-backed SQLite database so that every pooled
// connection sees the same data.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "repo.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&widget{}, &part{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// stepClock returns a clock that advances one minute per call.
func stepClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(time.Minute)
		return now
	}
}

var epoch = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newWidgetRepo(db *gorm.DB) *Repository[widget, *widget] {
	return New[widget](db, WithClock(stepClock(epoch)))
}

// seedWidgets stores one widget per name and returns them in insertion order.
func seedWidgets(t *testing.T, db *gorm.DB, names ...string) []*widget {
	t.Helper()
	repo := newWidgetRepo(db)
	ws := make([]*widget, len(names))
	for i, n := range names {
		ws[i] = &widget{Name: n, Color: "red"}
	}
	if _, err := repo.AddRange(context.Background(), ws); err != nil {
		t.Fatalf("AddRange: %v", err)
	}
	if saved, err := repo.SaveChanges(context.Background()); err != nil || !saved {
		t.Fatalf("SaveChanges = (%v, %v); want (true, nil)", saved, err)
	}
	return ws
}

func ids(ws []*widget) []uint {
	out := make([]uint, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}

func TestAddAndGetByID(t *testing.T) {
	db := newTestDB(t)
	repo := newWidgetRepo(db)
	ctx := context.Background()

	w := &widget{Name: "alpha"}
	if _, err := repo.Add(ctx, w); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if w.ID != 0 {
		t.Fatal("ID should be assigned only by SaveChanges")
	}
	if !w.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt = %v; want %v", w.CreatedAt, epoch)
	}

	saved, err := repo.SaveChanges(ctx)
	if err != nil || !saved {
		t.Fatalf("SaveChanges = (%v, %v); want (true, nil)", saved, err)
	}
	if w.ID == 0 {
		t.Fatal("expected non-zero ID after SaveChanges")
	}

	got, err := New[widget](db).GetByID(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "alpha" || got.IsDeleted || got.DeletedAt != nil || got.ModifiedAt != nil {
		t.Errorf("unexpected entity %+v", got)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := newWidgetRepo(newTestDB(t))

	_, err := repo.GetByID(context.Background(), 999)
	if !domain.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveChanges_NothingStaged(t *testing.T) {
	repo := newWidgetRepo(newTestDB(t))

	saved, err := repo.SaveChanges(context.Background())
	if err != nil || saved {
		t.Fatalf("SaveChanges = (%v, %v); want (false, nil)", saved, err)
	}
}

func TestSoftDelete_HiddenFromNormalReads(t *testing.T) {
	db := newTestDB(t)
	ws := seedWidgets(t, db, "a", "b", "c")
	ctx := context.Background()

	repo := newWidgetRepo(db)
	if ok, err := repo.Remove(ctx, ws[1], false); err != nil || !ok {
		t.Fatalf("Remove = (%v, %v)", ok, err)
	}
	if _, err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	fresh := newWidgetRepo(db)
	visible, err := fresh.Get(ctx, domain.True[widget]())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("Get returned %d rows; want 2", len(visible))
	}
	for _, w := range visible {
		if w.ID == ws[1].ID {
			t.Fatal("soft-deleted row returned by Get")
		}
	}

	if n, err := fresh.Count(ctx, domain.True[widget]()); err != nil || n != 2 {
		t.Errorf("Count = (%d, %v); want (2, nil)", n, err)
	}
	byName := domain.Where[widget](domain.Eq("name", "b"))
	if ok, err := fresh.Exists(ctx, byName); err != nil || ok {
		t.Errorf("Exists(deleted) = (%v, %v); want (false, nil)", ok, err)
	}
	if _, err := fresh.GetByID(ctx, ws[1].ID); !domain.IsNotFound(err) {
		t.Errorf("GetByID(deleted) error = %v; want not found", err)
	}

	all, err := fresh.GetWithDeleted(ctx, domain.True[widget]())
	if err != nil || len(all) != 3 {
		t.Fatalf("GetWithDeleted = (%d rows, %v); want 3", len(all), err)
	}
	if n, err := fresh.CountWithDeleted(ctx, byName); err != nil || n != 1 {
		t.Errorf("CountWithDeleted = (%d, %v); want (1, nil)", n, err)
	}

	// IsDeleted and DeletedAt change together, and ModifiedAt is left alone.
	for _, w := range all {
		if w.IsDeleted != (w.DeletedAt != nil) {
			t.Errorf("entity %d violates the soft-delete invariant: %+v", w.ID, w.BaseModel)
		}
		if w.ID == ws[1].ID {
			if !w.IsDeleted {
				t.Error("removed row should be flagged deleted")
			}
			if w.ModifiedAt != nil {
				t.Error("soft delete must not stamp ModifiedAt")
			}
		}
	}
}

func TestHardDelete_RemovesRow(t *testing.T) {
	db := newTestDB(t)
	ws := seedWidgets(t, db, "a", "b")
	ctx := context.Background()

	repo := newWidgetRepo(db)
	if _, err := repo.Remove(ctx, ws[0], true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if saved, err := repo.SaveChanges(ctx); err != nil || !saved {
		t.Fatalf("SaveChanges = (%v, %v)", saved, err)
	}

	n, err := repo.CountWithDeleted(ctx, domain.True[widget]())
	if err != nil || n != 1 {
		t.Errorf("CountWithDeleted = (%d, %v); want (1, nil)", n, err)
	}
}

func TestUpdate_ModifiedAtAndCreatedAt(t *testing.T) {
	db := newTestDB(t)
	ws := seedWidgets(t, db, "a")
	ctx := context.Background()
	created := ws[0].CreatedAt

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := New[widget](db, WithClock(func() time.Time { return now }))

	w, err := repo.GetByID(ctx, ws[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	w.Name = "renamed"
	w.CreatedAt = now // must never be written
	if ok, err := repo.Update(ctx, w, true); err != nil || !ok {
		t.Fatalf("Update = (%v, %v)", ok, err)
	}
	if _, err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	got, err := New[widget](db).GetByID(ctx, w.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "renamed" {
		t.Errorf("Name = %q; want renamed", got.Name)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v; want %v", got.CreatedAt, created)
	}
	if got.ModifiedAt == nil || !got.ModifiedAt.Equal(now) {
		t.Errorf("ModifiedAt = %v; want %v", got.ModifiedAt, now)
	}

	// Suppressed stamping keeps the previous value.
	later := New[widget](db, WithClock(func() time.Time { return now.Add(time.Hour) }))
	got.Color = "blue"
	if _, err := later.Update(ctx, got, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := later.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}
	again, _ := New[widget](db).GetByID(ctx, w.ID)
	if again.Color != "blue" || !again.ModifiedAt.Equal(now) {
		t.Errorf("unexpected entity after suppressed update: %+v", again)
	}
}

func TestUpdateRange(t *testing.T) {
	db := newTestDB(t)
	ws := seedWidgets(t, db, "a", "b")
	ctx := context.Background()

	repo := newWidgetRepo(db)
	for _, w := range ws {
		w.Color = "green"
	}
	if ok, err := repo.UpdateRange(ctx, ws, true); err != nil || !ok {
		t.Fatalf("UpdateRange = (%v, %v)", ok, err)
	}
	if _, err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	n, err := repo.Count(ctx, domain.Where[widget](domain.Eq("color", "green")))
	if err != nil || n != 2 {
		t.Errorf("Count(green) = (%d, %v); want (2, nil)", n, err)
	}
}

func TestCommandValidation(t *testing.T) {
	db := newTestDB(t)
	repo := newWidgetRepo(db)
	ctx := context.Background()

	if _, err := repo.Add(ctx, nil); !domain.IsValidation(err) {
		t.Errorf("Add(nil) error = %v; want validation", err)
	}
	if _, err := repo.Add(ctx, &widget{BaseModel: domain.BaseModel{ID: 7}}); !domain.IsValidation(err) {
		t.Errorf("Add(with id) error = %v; want validation", err)
	}
	if _, err := repo.Update(ctx, &widget{Name: "x"}, true); !domain.IsValidation(err) {
		t.Errorf("Update(no id) error = %v; want validation", err)
	}
	if _, err := repo.Remove(ctx, nil, false); !domain.IsValidation(err) {
		t.Errorf("Remove(nil) error = %v; want validation", err)
	}
	if _, err := repo.RemoveRange(ctx, nil, false); !domain.IsValidation(err) {
		t.Errorf("RemoveRange(empty) error = %v; want validation", err)
	}

	// A single invalid entry rejects the whole batch.
	if _, err := repo.AddRange(ctx, []*widget{{Name: "ok"}, nil, {Name: "ok2"}}); !domain.IsValidation(err) {
		t.Fatalf("AddRange error = %v; want validation", err)
	}
	if saved, err := repo.SaveChanges(ctx); err != nil || saved {
		t.Fatalf("SaveChanges after rejected batch = (%v, %v); want (false, nil)", saved, err)
	}
	if n, _ := repo.CountWithDeleted(ctx, domain.True[widget]()); n != 0 {
		t.Errorf("rejected batch left %d rows", n)
	}
}

func TestRemoveByID(t *testing.T) {
	db := newTestDB(t)
	ws := seedWidgets(t, db, "a", "b")
	ctx := context.Background()

	repo := newWidgetRepo(db)
	if ok, err := repo.RemoveByID(ctx, 12345, false); err != nil || ok {
		t.Fatalf("RemoveByID(missing) = (%v, %v); want (false, nil)", ok, err)
	}

	if ok, err := repo.RemoveByID(ctx, ws[0].ID, false); err != nil || !ok {
		t.Fatalf("RemoveByID = (%v, %v)", ok, err)
	}
	// The tracked instance is already flagged, so it is no longer visible.
	if _, err := repo.GetByID(ctx, ws[0].ID, domain.Tracking()); !domain.IsNotFound(err) {
		t.Errorf("tracked GetByID after remove = %v; want not found", err)
	}
	if saved, err := repo.SaveChanges(ctx); err != nil || !saved {
		t.Fatalf("SaveChanges = (%v, %v)", saved, err)
	}

	if ok, err := newWidgetRepo(db).RemoveByID(ctx, ws[0].ID, false); err != nil || ok {
		t.Errorf("RemoveByID(already deleted) = (%v, %v); want (false, nil)", ok, err)
	}
}

func TestRemoveRange(t *testing.T) {
	db := newTestDB(t)
	ws := seedWidgets(t, db, "a", "b", "c")
	ctx := context.Background()

	repo := newWidgetRepo(db)
	if ok, err := repo.RemoveRange(ctx, ws[:2], false); err != nil || !ok {
		t.Fatalf("RemoveRange = (%v, %v)", ok, err)
	}
	if _, err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	visible, err := repo.Get(ctx, domain.True[widget]())
	if err != nil || len(visible) != 1 || visible[0].ID != ws[2].ID {
		t.Fatalf("Get after RemoveRange = (%v, %v)", ids(visible), err)
	}
}

func TestTracking_IdentityResolution(t *testing.T) {
	db := newTestDB(t)
	ws := seedWidgets(t, db, "a", "b")
	ctx := context.Background()

	repo := newWidgetRepo(db)
	first, err := repo.Get(ctx, domain.True[widget](), domain.Tracking(), domain.OrderBy("id", false))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := repo.Get(ctx, domain.True[widget](), domain.Tracking(), domain.OrderBy("id", false))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("tracked reads of row %d returned different instances", first[i].ID)
		}
	}

	byID, err := repo.GetByID(ctx, ws[0].ID, domain.Tracking())
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID != first[0] {
		t.Error("tracked GetByID should resolve to the tracked instance")
	}

	detached, err := repo.GetByID(ctx, ws[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if detached == first[0] {
		t.Error("untracked GetByID must return a detached copy")
	}
}

func TestSpecComposition(t *testing.T) {
	db := newTestDB(t)
	repo := newWidgetRepo(db)
	ctx := context.Background()

	ws := []*widget{
		{Name: "Red Apple", Color: "red"},
		{Name: "Green Apple", Color: "green"},
		{Name: "Red Car", Color: "red"},
		{Name: "100%_match", Color: "red"},
	}
	if _, err := repo.AddRange(ctx, ws); err != nil {
		t.Fatalf("AddRange: %v", err)
	}
	if _, err := repo.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	all, err := repo.Get(ctx, domain.True[widget]())
	if err != nil || len(all) != len(ws) {
		t.Fatalf("True matched %d rows (%v); want %d", len(all), err, len(ws))
	}

	a := domain.Where[widget](domain.Contains("name", "APPLE"))
	b := domain.Where[widget](domain.EqualFold("color", "RED"))

	ab, err := repo.Get(ctx, a.And(b), domain.OrderBy("id", false))
	if err != nil {
		t.Fatalf("Get(a AND b): %v", err)
	}
	ba, err := repo.Get(ctx, domain.And(b, a), domain.OrderBy("id", false))
	if err != nil {
		t.Fatalf("Get(b AND a): %v", err)
	}
	if len(ab) != 1 || len(ba) != 1 || ab[0].ID != ws[0].ID || ba[0].ID != ws[0].ID {
		t.Errorf("a AND b = %v, b AND a = %v; want [%d]", ids(ab), ids(ba), ws[0].ID)
	}

	// Wildcards in the search term are matched literally.
	literal, err := repo.Get(ctx, domain.Where[widget](domain.Contains("name", "%_")))
	if err != nil || len(literal) != 1 || literal[0].ID != ws[3].ID {
		t.Errorf("Contains(%%_) = (%v, %v); want [%d]", ids(literal), err, ws[3].ID)
	}
}

func TestGet_Ordering(t *testing.T) {
	db := newTestDB(t)
	seedWidgets(t, db, "b", "c", "a")
	repo := newWidgetRepo(db)

	got, err := repo.Get(context.Background(), domain.True[widget](), domain.OrderBy("name", true))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var names []string
	for _, w := range got {
		names = append(names, w.Name)
	}
	if len(names) != 3 || names[0] != "c" || names[1] != "b" || names[2] != "a" {
		t.Errorf("names = %v; want [c b a]", names)
	}
}

func TestPreload_SkipsSoftDeletedChildren(t *testing.T) {
	db := newTestDB(t)
	ws := seedWidgets(t, db, "w")
	ctx := context.Background()

	parts := New[part](db)
	kept := &part{WidgetID: ws[0].ID, Label: "kept"}
	gone := &part{WidgetID: ws[0].ID, Label: "gone"}
	if _, err := parts.AddRange(ctx, []*part{kept, gone}); err != nil {
		t.Fatalf("AddRange: %v", err)
	}
	if _, err := parts.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}
	if _, err := parts.Remove(ctx, gone, false); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := parts.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	repo := newWidgetRepo(db)
	got, err := repo.GetByID(ctx, ws[0].ID, domain.Preload("Parts"))
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Parts) != 1 || got.Parts[0].Label != "kept" {
		t.Errorf("preloaded parts = %+v; want only kept", got.Parts)
	}

	withDeleted, err := repo.GetWithDeleted(ctx, domain.True[widget](), domain.Preload("Parts"))
	if err != nil || len(withDeleted) != 1 {
		t.Fatalf("GetWithDeleted = (%d, %v)", len(withDeleted), err)
	}
	if len(withDeleted[0].Parts) != 2 {
		t.Errorf("with-deleted preload returned %d parts; want 2", len(withDeleted[0].Parts))
	}
}

func TestAddWithIdentity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Free the first keys again; the next generated ID would be 3.
	old := seedWidgets(t, db, "old1", "old2")
	cleanup := newWidgetRepo(db)
	if _, err := cleanup.RemoveRange(ctx, old, true); err != nil {
		t.Fatalf("RemoveRange: %v", err)
	}
	if _, err := cleanup.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges: %v", err)
	}

	repo := newWidgetRepo(db)
	fixed := []*widget{
		{BaseModel: domain.BaseModel{ID: 1}, Name: "first"},
		{BaseModel: domain.BaseModel{ID: 2}, Name: "second"},
	}
	if _, err := repo.AddWithIdentity(ctx, fixed); err != nil {
		t.Fatalf("AddWithIdentity: %v", err)
	}
	if saved, err := repo.SaveChanges(ctx); err != nil || !saved {
		t.Fatalf("SaveChanges = (%v, %v); want (true, nil)", saved, err)
	}
	if fixed[0].ID != 1 || fixed[1].ID != 2 || !fixed[0].CreatedAt.Equal(epoch) {
		t.Errorf("fixed rows = %+v, %+v", fixed[0].BaseModel, fixed[1].BaseModel)
	}

	got, err := New[widget](db).GetByID(ctx, 2)
	if err != nil || got.Name != "second" {
		t.Fatalf("GetByID(2) = (%+v, %v)", got, err)
	}

	next := seedWidgets(t, db, "generated")
	if next[0].ID <= 2 {
		t.Errorf("generated ID = %d; want above the preset keys", next[0].ID)
	}
}

func TestAddWithIdentity_Validation(t *testing.T) {
	db := newTestDB(t)
	repo := newWidgetRepo(db)
	ctx := context.Background()

	if _, err := repo.AddWithIdentity(ctx, nil); !domain.IsValidation(err) {
		t.Errorf("AddWithIdentity(empty) error = %v; want validation", err)
	}
	if _, err := repo.AddWithIdentity(ctx, []*widget{{BaseModel: domain.BaseModel{ID: 5}}, {Name: "no id"}}); !domain.IsValidation(err) {
		t.Errorf("AddWithIdentity(missing id) error = %v; want validation", err)
	}

	// A key collision fails the flush but keeps the preset keys for a retry.
	seedWidgets(t, db, "taken")
	dup := &widget{BaseModel: domain.BaseModel{ID: 1}, Name: "dup"}
	if _, err := repo.AddWithIdentity(ctx, []*widget{dup}); err != nil {
		t.Fatalf("AddWithIdentity: %v", err)
	}
	if _, err := repo.SaveChanges(ctx); !domain.IsRepository(err) {
		t.Fatalf("SaveChanges error = %v; want repository error", err)
	}
	if dup.ID != 1 {
		t.Errorf("preset key after failed flush = %d; want 1", dup.ID)
	}
}
