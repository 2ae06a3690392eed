// Package loader defines the data-loader boundary between the match engine
// and the surrounding application's storage: the engine states the shape of
// the student/listing data it needs, not how it is fetched.
package loader

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/talentlink/matchengine/internal/match"
)

// ErrNotFound is returned when a student or listing does not exist. A
// missing party on a single-pair compute is a normal outcome, not a failure.
var ErrNotFound = errors.New("record not found")

// DescriptionMaxLen truncates listing descriptions before scoring; the text
// is opaque context and never scored in full.
const DescriptionMaxLen = 500

// StudentLoader reads student snapshots from the surrounding storage.
type StudentLoader interface {
	// LoadStudent assembles the full student snapshot: profile, skills,
	// active schedules with season data, application history, and rating
	// aggregates. Returns ErrNotFound when the student does not exist.
	LoadStudent(ctx context.Context, studentID string) (*match.StudentData, error)

	// ListCandidateStudents returns a bounded candidate set for a listing,
	// optionally tenant-scoped.
	ListCandidateStudents(ctx context.Context, tenantID string, limit int) ([]string, error)
}

// ListingLoader reads listing snapshots from the surrounding storage.
type ListingLoader interface {
	// LoadListing returns the listing snapshot with its description already
	// truncated to DescriptionMaxLen. Returns ErrNotFound when the listing
	// does not exist.
	LoadListing(ctx context.Context, listingID string) (*match.ListingData, error)

	// ListPublishedListings returns a bounded candidate set of published
	// listing IDs, optionally tenant-scoped, newest first.
	ListPublishedListings(ctx context.Context, tenantID string, limit int) ([]string, error)
}

// TransferLoader reads the static athletic-skill-transfer reference table.
type TransferLoader interface {
	// LoadTransfers returns the sport-to-skill transfer mappings. The table
	// is reference data independent of any student.
	LoadTransfers(ctx context.Context) ([]match.AthleticTransferSkill, error)
}

// TruncateDescription bounds a listing description at DescriptionMaxLen
// characters, cutting on a rune boundary so multi-byte text stays valid.
func TruncateDescription(text string) string {
	if len(text) <= DescriptionMaxLen {
		return text
	}
	if utf8.RuneCountInString(text) <= DescriptionMaxLen {
		return text
	}
	return string([]rune(text)[:DescriptionMaxLen])
}
