package loader

import (
	"database/sql"
	"testing"
	"time"

	"github.com/talentlink/matchengine/internal/match"
)

func boolPtr(b bool) *bool { return &b }

func TestDeriveApplicationStats(t *testing.T) {
	tests := []struct {
		name           string
		applications   []match.ApplicationRecord
		wantCompletion float64
		wantOnTime     float64
		wantActive     int
	}{
		{"no history", nil, 0, 0, 0},
		{
			"perfect record without delivery tracking",
			[]match.ApplicationRecord{
				{Status: match.ApplicationCompleted},
				{Status: match.ApplicationCompleted},
				{Status: match.ApplicationCompleted},
			},
			1, 1, 0,
		},
		{
			"tracked deliveries",
			[]match.ApplicationRecord{
				{Status: match.ApplicationCompleted, CompletedOnTime: boolPtr(true)},
				{Status: match.ApplicationCompleted, CompletedOnTime: boolPtr(true)},
				{Status: match.ApplicationCompleted, CompletedOnTime: boolPtr(false)},
				{Status: match.ApplicationCompleted},
			},
			1, 2.0 / 3.0, 0,
		},
		{
			"mixed statuses",
			[]match.ApplicationRecord{
				{Status: match.ApplicationCompleted, CompletedOnTime: boolPtr(true)},
				{Status: match.ApplicationWithdrawn},
				{Status: match.ApplicationRejected},
				{Status: match.ApplicationAccepted},
				{Status: match.ApplicationPending},
			},
			1.0 / 3.0, 1, 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			student := &match.StudentData{Applications: tt.applications}
			deriveApplicationStats(student)

			if student.CompletionRate != tt.wantCompletion {
				t.Errorf("CompletionRate = %v, want %v", student.CompletionRate, tt.wantCompletion)
			}
			if student.OnTimeRate != tt.wantOnTime {
				t.Errorf("OnTimeRate = %v, want %v", student.OnTimeRate, tt.wantOnTime)
			}
			if student.ActiveListings != tt.wantActive {
				t.Errorf("ActiveListings = %d, want %d", student.ActiveListings, tt.wantActive)
			}
		})
	}
}

// stubListingRow drives scanListing with hand-picked column values.
type stubListingRow struct {
	values func(dest []any) error
}

func (r stubListingRow) Scan(dest ...any) error { return r.values(dest) }

func TestScanListingNullableColumns(t *testing.T) {
	listing := &match.ListingData{ID: "listing-1"}
	row := stubListingRow{values: func(dest []any) error {
		if len(dest) != 16 {
			t.Fatalf("scan targets = %d, want 16", len(dest))
		}
		*dest[0].(*string) = "Video editor"
		*dest[2].(*string) = "media"
		// author_id and published_at stay NULL, as for a draft whose
		// author account was deleted.
		if _, ok := dest[11].(*sql.NullString); !ok {
			t.Errorf("author_id scan target = %T, want *sql.NullString", dest[11])
		}
		if _, ok := dest[13].(*sql.NullTime); !ok {
			t.Errorf("published_at scan target = %T, want *sql.NullTime", dest[13])
		}
		return nil
	}}

	if err := scanListing(listing, row); err != nil {
		t.Fatalf("scanListing: %v", err)
	}
	if listing.AuthorID != "" {
		t.Errorf("AuthorID = %q, want empty for a NULL author", listing.AuthorID)
	}
	if !listing.PublishedAt.IsZero() {
		t.Errorf("PublishedAt = %v, want zero for an unpublished listing", listing.PublishedAt)
	}
	if listing.StartDate != nil || listing.EndDate != nil {
		t.Errorf("dates = %v/%v, want nil for NULL columns", listing.StartDate, listing.EndDate)
	}
}

func TestScanListingPopulatedRow(t *testing.T) {
	published := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	listing := &match.ListingData{ID: "listing-1"}
	row := stubListingRow{values: func(dest []any) error {
		*dest[0].(*string) = "Video editor"
		*dest[1].(*sql.NullString) = sql.NullString{String: "cut highlight reels", Valid: true}
		*dest[2].(*string) = "media"
		*dest[11].(*sql.NullString) = sql.NullString{String: "user-9", Valid: true}
		*dest[12].(*string) = "Acme Media"
		*dest[13].(*sql.NullTime) = sql.NullTime{Time: published, Valid: true}
		return nil
	}}

	if err := scanListing(listing, row); err != nil {
		t.Fatalf("scanListing: %v", err)
	}
	if listing.Description != "cut highlight reels" {
		t.Errorf("Description = %q", listing.Description)
	}
	if listing.AuthorID != "user-9" || listing.AuthorCompany != "Acme Media" {
		t.Errorf("author = %q/%q, want user-9/Acme Media", listing.AuthorID, listing.AuthorCompany)
	}
	if !listing.PublishedAt.Equal(published) {
		t.Errorf("PublishedAt = %v, want %v", listing.PublishedAt, published)
	}
}
