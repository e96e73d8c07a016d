package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func floatPtr(f float64) *float64 {
	return &f
}

func insertActivity(t *testing.T, db *DB, id, day string) *Activity {
	t.Helper()
	start, err := time.Parse(time.RFC3339, day+"T07:30:00Z")
	if err != nil {
		t.Fatal(err)
	}
	a := &Activity{
		ID:             id,
		Source:         SourceStrava,
		Name:           "Morning Ride",
		Type:           "Ride",
		StartDateLocal: start,
		MovingTime:     3600,
		Distance:       30000,
		AvgPower:       floatPtr(200),
	}
	if err := db.UpsertActivity(a); err != nil {
		t.Fatalf("upsert activity: %v", err)
	}
	return a
}

func insertPlanned(t *testing.T, db *DB, day string) *PlannedItem {
	t.Helper()
	p := &PlannedItem{Kind: KindWorkout, Date: day, WorkoutType: "Bike", DurationMin: 60}
	if err := db.SavePlannedItem(p); err != nil {
		t.Fatalf("save planned item: %v", err)
	}
	return p
}

func TestOpenMemorySetsSchemaVersion(t *testing.T) {
	db := newTestDB(t)

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion {
		t.Errorf("user_version = %d, want %d", version, schemaVersion)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := DefaultPath(t.TempDir() + "/nested")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%q): %v", path, err)
	}
	db.Close()

	// Reopening runs migrations again without error
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	db.Close()
}

func TestActivityRoundTrip(t *testing.T) {
	db := newTestDB(t)
	insertActivity(t, db, "a1", "2024-05-01")

	got, err := db.GetActivity("a1")
	if err != nil {
		t.Fatalf("GetActivity: %v", err)
	}
	if got.Name != "Morning Ride" || got.MovingTime != 3600 || got.Distance != 30000 {
		t.Errorf("unexpected activity %+v", got)
	}
	if got.AvgPower == nil || *got.AvgPower != 200 {
		t.Errorf("AvgPower = %v, want 200", got.AvgPower)
	}
	if got.AvgHeartrate != nil {
		t.Errorf("AvgHeartrate = %v, want nil", *got.AvgHeartrate)
	}
	if got.DayKey() != "2024-05-01" {
		t.Errorf("DayKey() = %q, want 2024-05-01", got.DayKey())
	}

	if _, err := db.GetActivity("missing"); !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("GetActivity(missing) error = %v, want ErrActivityNotFound", err)
	}
}

func TestUpsertActivityKeepsAttachedStream(t *testing.T) {
	db := newTestDB(t)
	a := insertActivity(t, db, "a1", "2024-05-01")

	if err := db.AttachStream("a1", "s1"); err != nil {
		t.Fatalf("AttachStream: %v", err)
	}

	// A later sync without stream information must not detach it
	a.StreamID = ""
	a.Name = "Renamed"
	if err := db.UpsertActivity(a); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetActivity("a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.StreamID != "s1" {
		t.Errorf("StreamID = %q, want s1", got.StreamID)
	}
	if got.Name != "Renamed" {
		t.Errorf("Name = %q, want Renamed", got.Name)
	}

	needing, err := db.GetActivitiesNeedingStreams(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(needing) != 0 {
		t.Errorf("GetActivitiesNeedingStreams returned %d activities, want 0", len(needing))
	}
}

func TestUpdateFeedbackClamps(t *testing.T) {
	db := newTestDB(t)
	insertActivity(t, db, "a1", "2024-05-01")

	if err := db.UpdateFeedback("a1", 9, -3, "legs heavy"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.GetActivity("a1")
	if got.Feel != 5 || got.RPE != 0 || got.Description != "legs heavy" {
		t.Errorf("feedback = feel %d rpe %d %q", got.Feel, got.RPE, got.Description)
	}

	if !got.RPETouched {
		t.Error("RPE of 0 set through feedback should count as rated")
	}

	if err := db.UpdateFeedback("missing", 1, 1, ""); !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("UpdateFeedback(missing) error = %v, want ErrActivityNotFound", err)
	}
}

func TestComments(t *testing.T) {
	db := newTestDB(t)
	a := insertActivity(t, db, "a1", "2024-05-01")

	got, _ := db.GetActivity("a1")
	if len(got.Comments) != 0 || got.RPETouched {
		t.Errorf("fresh activity = comments %v touched %v", got.Comments, got.RPETouched)
	}

	for _, c := range []string{"felt strong", "windy on the way back"} {
		if err := db.AddComment(a.ID, c); err != nil {
			t.Fatal(err)
		}
	}
	got, _ = db.GetActivity("a1")
	if len(got.Comments) != 2 || got.Comments[1] != "windy on the way back" {
		t.Errorf("Comments = %q", got.Comments)
	}

	if err := db.AddComment("missing", "x"); !errors.Is(err, ErrActivityNotFound) {
		t.Errorf("AddComment(missing) error = %v, want ErrActivityNotFound", err)
	}

	p := &PlannedItem{Kind: KindNote, Date: "2024-05-02", Comments: []string{"coach: keep it easy"}}
	if err := db.SavePlannedItem(p); err != nil {
		t.Fatal(err)
	}
	gotItem, _ := db.GetPlannedItem(p.ID)
	if len(gotItem.Comments) != 1 || gotItem.Comments[0] != "coach: keep it easy" {
		t.Errorf("planned Comments = %q", gotItem.Comments)
	}
}

func TestPlannedItemNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   PlannedItem
		want PlannedItem
	}{
		{
			name: "defaults for empty workout",
			in:   PlannedItem{},
			want: PlannedItem{Kind: KindWorkout, Title: "Untitled Workout", WorkoutType: "Other"},
		},
		{
			name: "clamps ranges",
			in: PlannedItem{
				Kind: KindWorkout, Title: "Intervals", WorkoutType: "Run",
				DurationMin: -10, Intensity: 14, Feel: 7, RPE: 12, PlannedTSS: -5,
			},
			want: PlannedItem{
				Kind: KindWorkout, Title: "Intervals", WorkoutType: "Run",
				Intensity: 10, Feel: 5, RPE: 10,
			},
		},
		{
			name: "low intensity raised to one",
			in:   PlannedItem{Kind: KindWorkout, Title: "Easy", WorkoutType: "Run", Intensity: 0.5},
			want: PlannedItem{Kind: KindWorkout, Title: "Easy", WorkoutType: "Run", Intensity: 1},
		},
		{
			name: "note keeps empty workout type",
			in:   PlannedItem{Kind: KindNote},
			want: PlannedItem{Kind: KindNote, Title: "Note"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.Normalize()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlannedItemShadow(t *testing.T) {
	p := PlannedItem{Kind: KindWorkout, WorkoutType: ""}
	if _, ok := p.Shadow(); ok {
		t.Error("Shadow() ok = true for item without completed values")
	}

	p.CompletedDurationMin = 45
	p.CompletedTSS = 50
	s, ok := p.Shadow()
	if !ok {
		t.Fatal("Shadow() ok = false, want true")
	}
	if s.Minutes() != 45 || s.ExplicitTSS() != 50 || s.Sport() != "Workout" {
		t.Errorf("Shadow() = %+v", s)
	}
}

func TestPairsAreOneToOne(t *testing.T) {
	db := newTestDB(t)
	insertActivity(t, db, "a1", "2024-05-01")
	insertActivity(t, db, "a2", "2024-05-01")
	p1 := insertPlanned(t, db, "2024-05-01")
	p2 := insertPlanned(t, db, "2024-05-02")

	if _, err := db.CreatePair(p1.ID, "a1", "", "Tempo"); err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	// Re-pairing the same planned item replaces the first pair
	if _, err := db.CreatePair(p1.ID, "a2", "", ""); err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	// Pairing a2 with another item replaces that pair as well
	if _, err := db.CreatePair(p2.ID, "a2", "2024-05-02", ""); err != nil {
		t.Fatalf("CreatePair: %v", err)
	}

	pairs, err := db.ListPairs()
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1", len(pairs))
	}
	if pairs[0].PlannedID != p2.ID || pairs[0].ActivityID != "a2" {
		t.Errorf("pair = %+v", pairs[0])
	}

	a1, _ := db.GetActivity("a1")
	if a1.DisplayTitle != "" {
		t.Errorf("a1 kept override title %q after losing its pair", a1.DisplayTitle)
	}
	a2, _ := db.GetActivity("a2")
	if a2.DayKey() != "2024-05-02" {
		t.Errorf("a2 DayKey() = %q, want override 2024-05-02", a2.DayKey())
	}

	if err := db.DeletePair(pairs[0].ID); err != nil {
		t.Fatalf("DeletePair: %v", err)
	}
	a2, _ = db.GetActivity("a2")
	if a2.DayKey() != "2024-05-01" {
		t.Errorf("a2 DayKey() = %q after unpairing, want 2024-05-01", a2.DayKey())
	}
	if err := db.DeletePair(pairs[0].ID); !errors.Is(err, ErrPairNotFound) {
		t.Errorf("DeletePair twice error = %v, want ErrPairNotFound", err)
	}
}

func TestDeletePlannedItemHidesPairedActivity(t *testing.T) {
	db := newTestDB(t)
	insertActivity(t, db, "a1", "2024-05-01")
	p := insertPlanned(t, db, "2024-05-01")
	if _, err := db.CreatePair(p.ID, "a1", "", ""); err != nil {
		t.Fatal(err)
	}

	if err := db.DeletePlannedItem(p.ID); err != nil {
		t.Fatalf("DeletePlannedItem: %v", err)
	}

	a, _ := db.GetActivity("a1")
	if !a.Hidden {
		t.Error("paired activity should be hidden after its workout is deleted")
	}
	if _, err := db.GetPlannedItem(p.ID); !errors.Is(err, ErrPlannedItemNotFound) {
		t.Errorf("GetPlannedItem error = %v, want ErrPlannedItemNotFound", err)
	}
	pairs, _ := db.ListPairs()
	if len(pairs) != 0 {
		t.Errorf("len(pairs) = %d, want 0", len(pairs))
	}
}

func TestStreamRoundTrip(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)

	s := &Stream{
		Series: []Sample{
			{Timestamp: start, HeartRate: floatPtr(120), Distance: floatPtr(0)},
			{Timestamp: start.Add(time.Second), HeartRate: floatPtr(125), Power: floatPtr(210)},
			{Timestamp: start.Add(2 * time.Second), Distance: floatPtr(8.5)},
		},
		Laps: []Lap{{Index: 0, Name: "Lap 1", Start: start, End: start.Add(2 * time.Second), TSS: floatPtr(1.2)}},
		Summary: Summary{
			Start: start, End: start.Add(2 * time.Second),
			DurationS: 2, DistanceM: 8.5, AvgHR: floatPtr(122.5), Sport: "cycling",
		},
	}

	id, err := db.SaveStream(s)
	if err != nil {
		t.Fatalf("SaveStream: %v", err)
	}

	got, err := db.LoadStream(context.Background(), id)
	if err != nil {
		t.Fatalf("LoadStream: %v", err)
	}
	if len(got.Series) != 3 {
		t.Fatalf("len(Series) = %d, want 3", len(got.Series))
	}
	if !got.Series[1].Timestamp.Equal(start.Add(time.Second)) {
		t.Errorf("Series[1].Timestamp = %v", got.Series[1].Timestamp)
	}
	if got.Series[1].Power == nil || *got.Series[1].Power != 210 {
		t.Errorf("Series[1].Power = %v, want 210", got.Series[1].Power)
	}
	if got.Series[2].HeartRate != nil {
		t.Errorf("Series[2].HeartRate = %v, want nil", *got.Series[2].HeartRate)
	}
	if len(got.Laps) != 1 || got.Laps[0].TSS == nil || *got.Laps[0].TSS != 1.2 {
		t.Errorf("Laps = %+v", got.Laps)
	}
	if got.Summary.AvgHR == nil || *got.Summary.AvgHR != 122.5 || got.Summary.Sport != "cycling" {
		t.Errorf("Summary = %+v", got.Summary)
	}

	if err := db.DeleteStream(id); err != nil {
		t.Fatalf("DeleteStream: %v", err)
	}
	if _, err := db.LoadStream(context.Background(), id); !errors.Is(err, ErrStreamNotFound) {
		t.Errorf("LoadStream after delete error = %v, want ErrStreamNotFound", err)
	}
}

func TestSyncState(t *testing.T) {
	db := newTestDB(t)

	last, err := db.LastSync(SyncKeyLastActivities)
	if err != nil || !last.IsZero() {
		t.Fatalf("LastSync on empty db = %v, %v", last, err)
	}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := db.MarkSynced(SyncKeyLastActivities, now); err != nil {
		t.Fatal(err)
	}
	last, err = db.LastSync(SyncKeyLastActivities)
	if err != nil {
		t.Fatal(err)
	}
	if !last.Equal(now) {
		t.Errorf("LastSync = %v, want %v", last, now)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.LoadToken(); !errors.Is(err, ErrNoAuth) {
		t.Fatalf("LoadToken on empty db error = %v, want ErrNoAuth", err)
	}
	if _, err := db.AthleteID(); !errors.Is(err, ErrNoAuth) {
		t.Errorf("AthleteID on empty db error = %v, want ErrNoAuth", err)
	}

	expires := time.Unix(1714550400, 0)
	if err := db.SaveToken(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expires}, 42); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadToken()
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "a" || got.RefreshToken != "r" || !got.Expiry.Equal(expires) {
		t.Errorf("LoadToken() = %+v", got)
	}

	// A refresh doesn't know the athlete and must not clear it
	if err := db.SaveToken(&oauth2.Token{AccessToken: "b", RefreshToken: "r2", Expiry: expires.Add(time.Hour)}, 0); err != nil {
		t.Fatal(err)
	}
	id, err := db.AthleteID()
	if err != nil || id != 42 {
		t.Errorf("AthleteID() = %d, %v, want 42", id, err)
	}
	got, _ = db.LoadToken()
	if got.AccessToken != "b" {
		t.Errorf("AccessToken = %q, want b", got.AccessToken)
	}
}
