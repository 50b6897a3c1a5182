package db

import (
	"context"
	"testing"
	"time"

	"github.com/scottring/family-planner-sub006/pkg/analysis"
	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/family"
	"github.com/scottring/family-planner-sub006/pkg/ocr"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	database, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return NewRepository(database)
}

var base = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func newItem(t *testing.T, repo *Repository, id, owner, content string, offset time.Duration) *capture.Item {
	t.Helper()
	item := &capture.Item{
		ID:             id,
		OwnerID:        owner,
		RawContent:     content,
		InputChannel:   capture.ChannelText,
		SourceType:     capture.SourceManual,
		Status:         capture.StatusPending,
		UrgencyScore:   3,
		Category:       "note",
		SourceMetadata: map[string]string{"k": "v"},
		CreatedAt:      base.Add(offset),
		UpdatedAt:      base.Add(offset),
	}
	if err := repo.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("create item: %v", err)
	}
	return item
}

func TestItemRoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	newItem(t, repo, "c1", "u1", "soccer practice tomorrow", 0)

	got, err := repo.GetItem(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected item, got nil")
	}
	if got.RawContent != "soccer practice tomorrow" || got.Status != capture.StatusPending {
		t.Errorf("unexpected item %+v", got)
	}
	if got.SourceMetadata["k"] != "v" {
		t.Errorf("metadata = %v", got.SourceMetadata)
	}
	if got.Analysis != nil || got.ProcessedAt != nil {
		t.Errorf("fresh item should have no analysis")
	}

	final := analysis.Fallback("test")
	final.Urgency = 4
	final.Category = "event"
	processed := base.Add(time.Minute)
	if err := repo.SaveAnalysis(ctx, "c1", &final, processed); err != nil {
		t.Fatalf("save analysis: %v", err)
	}
	got, _ = repo.GetItem(ctx, "c1")
	if got.UrgencyScore != 4 || got.Category != "event" {
		t.Errorf("urgency/category = %d/%s", got.UrgencyScore, got.Category)
	}
	if got.Analysis == nil || !got.Analysis.Fallback {
		t.Errorf("analysis not stored: %+v", got.Analysis)
	}
	if got.ProcessedAt == nil || !got.ProcessedAt.Equal(processed) {
		t.Errorf("processed at = %v", got.ProcessedAt)
	}

	missing, err := repo.GetItem(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil; got %+v, %v", missing, err)
	}
}

func TestCompareAndSetStatus(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	newItem(t, repo, "c1", "u1", "x", 0)

	ok, err := repo.CompareAndSetStatus(ctx, "c1", []capture.Status{capture.StatusPending}, capture.StatusProcessing)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = repo.CompareAndSetStatus(ctx, "c1", []capture.Status{capture.StatusPending}, capture.StatusProcessing)
	if err != nil || ok {
		t.Fatalf("second claim should fail: ok=%v err=%v", ok, err)
	}
	ok, _ = repo.CompareAndSetStatus(ctx, "missing", []capture.Status{capture.StatusPending}, capture.StatusArchived)
	if ok {
		t.Error("missing item should not change")
	}
}

func TestConvertOnlyOnce(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	newItem(t, repo, "c1", "u1", "dentist thursday 4pm", 0)

	start := time.Date(2026, 10, 15, 16, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	from := []capture.Status{capture.StatusPending, capture.StatusProcessing}
	target := &capture.Target{Type: capture.TargetEvent, OwnerID: "u1", Title: "dentist", Start: &start, End: &end, Priority: 3}

	ref, ok, err := repo.Convert(ctx, "c1", from, target)
	if err != nil || !ok {
		t.Fatalf("convert: ok=%v err=%v", ok, err)
	}
	if ref.Type != capture.TargetEvent || ref.ID == "" || ref.ID != target.ID {
		t.Errorf("ref = %+v", ref)
	}

	_, ok, err = repo.Convert(ctx, "c1", from, &capture.Target{Type: capture.TargetEvent, Start: &start, End: &end})
	if err != nil || ok {
		t.Fatalf("second convert should be refused: ok=%v err=%v", ok, err)
	}

	item, _ := repo.GetItem(ctx, "c1")
	if item.Status != capture.StatusConverted || item.ConvertedTo == nil || item.ConvertedTo.ID != ref.ID {
		t.Errorf("item after convert = %+v", item)
	}

	events, err := repo.Events(ctx, "u1", start.Add(-time.Hour), start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Title != "dentist" || events[0].SourceItem != "c1" || !events[0].Start.Equal(start) {
		t.Errorf("event = %+v", events[0])
	}
}

func TestConvertTaskAndOpenTasks(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	newItem(t, repo, "c1", "u1", "buy milk", 0)
	newItem(t, repo, "c2", "u1", "call plumber", time.Minute)

	from := []capture.Status{capture.StatusPending}
	due := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	if _, ok, err := repo.Convert(ctx, "c1", from, &capture.Target{Type: capture.TargetTask, OwnerID: "u1", Title: "buy milk", Priority: 2}); err != nil || !ok {
		t.Fatalf("convert c1: ok=%v err=%v", ok, err)
	}
	ref, ok, err := repo.Convert(ctx, "c2", from, &capture.Target{Type: capture.TargetTask, OwnerID: "u1", Title: "call plumber", Priority: 5, DueDate: &due})
	if err != nil || !ok {
		t.Fatalf("convert c2: ok=%v err=%v", ok, err)
	}

	tasks, err := repo.OpenTasks(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("open tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "call plumber" {
		t.Fatalf("tasks = %+v", tasks)
	}
	if tasks[0].DueDate == nil || !tasks[0].DueDate.Equal(due) {
		t.Errorf("due = %v", tasks[0].DueDate)
	}

	if err := repo.CompleteTask(ctx, ref.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	tasks, _ = repo.OpenTasks(ctx, "u1", 0)
	if len(tasks) != 1 || tasks[0].Title != "buy milk" {
		t.Errorf("tasks after complete = %+v", tasks)
	}
}

func TestListItemsFilters(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	newItem(t, repo, "c1", "u1", "Pick up Emma", 0)
	newItem(t, repo, "c2", "u1", "pick up dry cleaning", time.Minute)
	newItem(t, repo, "c3", "u1", "gone", 2*time.Minute)
	newItem(t, repo, "c4", "u2", "pick up other", 3*time.Minute)
	repo.CompareAndSetStatus(ctx, "c3", []capture.Status{capture.StatusPending}, capture.StatusDeleted)

	items, err := repo.ListItems(ctx, capture.Filter{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != "c2" || items[1].ID != "c1" {
		t.Errorf("expected c2, c1 newest first; got %d items", len(items))
	}

	items, _ = repo.ListItems(ctx, capture.Filter{OwnerID: "u1", Status: capture.StatusPending, Contains: "PICK UP", Limit: 1})
	if len(items) != 1 || items[0].ID != "c2" {
		t.Errorf("contains filter = %+v", items)
	}

	items, _ = repo.ListItems(ctx, capture.Filter{OwnerID: "u1", Status: capture.StatusDeleted})
	if len(items) != 1 || items[0].ID != "c3" {
		t.Errorf("deleted filter = %+v", items)
	}
}

func TestAttachments(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	newItem(t, repo, "c1", "u1", "Photo: slip.png", 0)

	att := &capture.Attachment{
		ID:               "a1",
		CaptureItemID:    "c1",
		FilePath:         "/tmp/slip.png",
		FileType:         "image/png",
		FileSize:         42,
		ProcessingStatus: capture.AttachmentPending,
		CreatedAt:        base,
	}
	if err := repo.CreateAttachment(ctx, att); err != nil {
		t.Fatalf("create attachment: %v", err)
	}
	if err := repo.SetAttachment(ctx, "c1", "a1"); err != nil {
		t.Fatalf("link: %v", err)
	}

	att.ProcessingStatus = capture.AttachmentCompleted
	att.OCRText = "PERMISSION SLIP"
	att.OCRConfidence = 0.9
	att.ExtractedData = &ocr.Fields{FormType: ocr.FormPermissionSlip, Dates: []string{"10/20/2026"}}
	if err := repo.UpdateAttachment(ctx, att); err != nil {
		t.Fatalf("update attachment: %v", err)
	}

	got, err := repo.GetAttachment(ctx, "a1")
	if err != nil {
		t.Fatalf("get attachment: %v", err)
	}
	if got.ProcessingStatus != capture.AttachmentCompleted || got.OCRText != "PERMISSION SLIP" {
		t.Errorf("attachment = %+v", got)
	}
	if got.ExtractedData == nil || got.ExtractedData.FormType != ocr.FormPermissionSlip {
		t.Errorf("extracted data = %+v", got.ExtractedData)
	}

	item, _ := repo.GetItem(ctx, "c1")
	if item.AttachmentID != "a1" {
		t.Errorf("attachment id = %q", item.AttachmentID)
	}
}

func TestStats(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	newItem(t, repo, "c1", "u1", "a", 0)
	newItem(t, repo, "c2", "u1", "b", time.Minute)
	newItem(t, repo, "c3", "u1", "c", 2*time.Minute)
	urgent := analysis.Fallback("")
	urgent.Urgency = 5
	urgent.Category = "event"
	repo.SaveAnalysis(ctx, "c1", &urgent, base)
	repo.CompareAndSetStatus(ctx, "c3", []capture.Status{capture.StatusPending}, capture.StatusArchived)

	st, err := repo.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 3 || st.Pending != 2 || st.Urgent != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.ByCategory["event"] != 1 || st.ByCategory["note"] != 2 || st.ByChannel["text"] != 3 {
		t.Errorf("breakdown = %+v", st)
	}
}

func TestSettingsAndPhoneLookup(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	got, err := repo.GetSettings(ctx, "u1")
	if err != nil || got != nil {
		t.Fatalf("expected no settings, got %+v, %v", got, err)
	}

	s := capture.DefaultSettings("u1")
	s.SMS = capture.SMSSettings{Enabled: true, PhoneNumber: "(555) 123-4567"}
	s.Email.Enabled = true
	if err := repo.SaveSettings(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ = repo.GetSettings(ctx, "u1")
	if got == nil || !got.SMS.Enabled || got.Email.PollInterval != capture.DefaultPollInterval {
		t.Errorf("settings = %+v", got)
	}

	tests := []struct {
		digits string
		want   string
	}{
		{"5551234567", "u1"},
		{"15551234567", "u1"},
		{"5559999999", ""},
		{"4567", ""},
	}
	for _, tt := range tests {
		owner, err := repo.OwnerByPhone(ctx, tt.digits)
		if err != nil {
			t.Fatalf("lookup %s: %v", tt.digits, err)
		}
		if owner != tt.want {
			t.Errorf("OwnerByPhone(%s) = %q, want %q", tt.digits, owner, tt.want)
		}
	}

	owners, err := repo.EmailOwners(ctx)
	if err != nil || len(owners) != 1 || owners[0].OwnerID != "u1" {
		t.Errorf("email owners = %+v, %v", owners, err)
	}

	s.SMS.PhoneNumber = ""
	repo.SaveSettings(ctx, s)
	if owner, _ := repo.OwnerByPhone(ctx, "5551234567"); owner != "" {
		t.Errorf("cleared number should not match, got %q", owner)
	}
}

func TestRoster(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	roster := family.Roster{{Name: "Emma", Role: "child"}, {Name: "Jake", Role: "child"}, {Name: "Sarah", Role: "parent"}}
	if err := repo.SaveRoster(ctx, "u1", roster); err != nil {
		t.Fatalf("save roster: %v", err)
	}
	got, err := repo.Roster(ctx, "u1")
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(got) != 3 || got[0].Name != "Emma" || got[2].Role != "parent" {
		t.Errorf("roster = %+v", got)
	}

	if err := repo.SaveRoster(ctx, "u1", family.Roster{{Name: "Emma"}}); err != nil {
		t.Fatalf("replace roster: %v", err)
	}
	got, _ = repo.Roster(ctx, "u1")
	if len(got) != 1 {
		t.Errorf("expected replaced roster, got %+v", got)
	}
}

func TestCalendarSync(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	if err := repo.InsertCalendarSync(ctx, "evt-1", "gcal-1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec, err := repo.GetCalendarSync(ctx, "evt-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil || rec.CalendarEventID != "gcal-1" {
		t.Fatalf("record = %+v", rec)
	}

	rec, err = repo.GetCalendarSync(ctx, "nonexistent")
	if err != nil || rec != nil {
		t.Errorf("expected nil, got %+v, %v", rec, err)
	}
}

func TestDriveSync(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	if err := repo.InsertDriveSync(ctx, "drv-1", "events/dentist.md", now, "upload"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec, err := repo.GetDriveSyncByLocalPath(ctx, "events/dentist.md")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record, got nil")
	}
	if rec.DriveFileID != "drv-1" {
		t.Errorf("drive file ID = %q", rec.DriveFileID)
	}
	if rec.Direction != "upload" {
		t.Errorf("direction = %q", rec.Direction)
	}

	later := now.Add(time.Hour)
	if err := repo.UpdateDriveSync(ctx, "drv-1", later); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, _ = repo.GetDriveSyncByLocalPath(ctx, "events/dentist.md")
	if !rec.LastSyncedAt.Equal(later) {
		t.Errorf("last synced = %v, want %v", rec.LastSyncedAt, later)
	}

	rec2, err := repo.GetDriveSyncByLocalPath(ctx, "/nonexistent")
	if err != nil {
		t.Fatalf("get nonexistent: %v", err)
	}
	if rec2 != nil {
		t.Errorf("expected nil, got %+v", rec2)
	}
}

func TestDriveWatch(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	now := time.Now().Truncate(time.Second)
	if err := repo.InsertDriveWatch(ctx, "drv-w-1", "slip.jpg", "c1", now); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec, err := repo.GetDriveWatchByFileID(ctx, "drv-w-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record, got nil")
	}
	if rec.FileName != "slip.jpg" || rec.CaptureItemID != "c1" {
		t.Errorf("record = %+v", rec)
	}

	rec2, err := repo.GetDriveWatchByFileID(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("get nonexistent: %v", err)
	}
	if rec2 != nil {
		t.Errorf("expected nil, got %+v", rec2)
	}
}

func TestEmailSeen(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first, err := repo.MarkEmailSeen(ctx, "u1", "msg-1", "c1")
	if err != nil || !first {
		t.Fatalf("first mark: %v, %v", first, err)
	}
	again, err := repo.MarkEmailSeen(ctx, "u1", "msg-1", "c2")
	if err != nil || again {
		t.Fatalf("second mark should be ignored: %v, %v", again, err)
	}
	seen, _ := repo.EmailSeen(ctx, "u1", "msg-1")
	if !seen {
		t.Error("expected msg-1 to be seen")
	}
	seen, _ = repo.EmailSeen(ctx, "u2", "msg-1")
	if seen {
		t.Error("seen must be per owner")
	}
}

func TestPendingItems(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	newItem(t, repo, "c1", "u1", "never processed", 0)
	newItem(t, repo, "c2", "u2", "processed long ago", time.Minute)
	newItem(t, repo, "c3", "u1", "processed just now", 2*time.Minute)
	newItem(t, repo, "c4", "u1", "archived", 3*time.Minute)

	fb := analysis.Fallback("x")
	if err := repo.SaveAnalysis(ctx, "c2", &fb, base.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveAnalysis(ctx, "c3", &fb, base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CompareAndSetStatus(ctx, "c4", []capture.Status{capture.StatusPending}, capture.StatusArchived); err != nil {
		t.Fatal(err)
	}

	items, err := repo.PendingItems(ctx, base, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(items) != 2 || items[0].ID != "c1" || items[1].ID != "c2" {
		t.Fatalf("pending items = %v", ids(items))
	}

	items, _ = repo.PendingItems(ctx, base, 1)
	if len(items) != 1 {
		t.Errorf("limit ignored: %v", ids(items))
	}
}

func ids(items []*capture.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
