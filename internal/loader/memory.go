package loader

import (
	"context"
	"sort"
	"sync"

	"github.com/talentlink/matchengine/internal/match"
)

// InMemoryLoader is an in-memory implementation of the three loader
// interfaces. Thread-safe via RWMutex. Used by unit tests and single-process
// wiring.
type InMemoryLoader struct {
	mu        sync.RWMutex
	students  map[string]*match.StudentData
	listings  map[string]*match.ListingData
	transfers []match.AthleticTransferSkill
}

// NewInMemoryLoader creates an empty in-memory loader.
func NewInMemoryLoader() *InMemoryLoader {
	return &InMemoryLoader{
		students: make(map[string]*match.StudentData),
		listings: make(map[string]*match.ListingData),
	}
}

// PutStudent stores a student snapshot.
func (l *InMemoryLoader) PutStudent(student *match.StudentData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	studentCopy := *student
	l.students[student.ID] = &studentCopy
}

// PutListing stores a listing snapshot, truncating the description the way a
// real loader would.
func (l *InMemoryLoader) PutListing(listing *match.ListingData) {
	l.mu.Lock()
	defer l.mu.Unlock()
	listingCopy := *listing
	listingCopy.Description = TruncateDescription(listing.Description)
	l.listings[listing.ID] = &listingCopy
}

// PutTransfers replaces the transfer reference data.
func (l *InMemoryLoader) PutTransfers(transfers []match.AthleticTransferSkill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfers = append([]match.AthleticTransferSkill(nil), transfers...)
}

// RemoveStudent deletes a student snapshot.
func (l *InMemoryLoader) RemoveStudent(studentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.students, studentID)
}

// LoadStudent returns a copy of the stored student snapshot.
func (l *InMemoryLoader) LoadStudent(ctx context.Context, studentID string) (*match.StudentData, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	student, ok := l.students[studentID]
	if !ok {
		return nil, ErrNotFound
	}
	studentCopy := *student
	return &studentCopy, nil
}

// ListCandidateStudents returns stored student IDs, optionally tenant-scoped,
// in a stable order.
func (l *InMemoryLoader) ListCandidateStudents(ctx context.Context, tenantID string, limit int) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var ids []string
	for id, student := range l.students {
		if tenantID != "" && student.TenantID != tenantID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// LoadListing returns a copy of the stored listing snapshot.
func (l *InMemoryLoader) LoadListing(ctx context.Context, listingID string) (*match.ListingData, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	listing, ok := l.listings[listingID]
	if !ok {
		return nil, ErrNotFound
	}
	listingCopy := *listing
	return &listingCopy, nil
}

// ListPublishedListings returns stored listing IDs newest first, optionally
// tenant-scoped.
func (l *InMemoryLoader) ListPublishedListings(ctx context.Context, tenantID string, limit int) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var listings []*match.ListingData
	for _, listing := range l.listings {
		if tenantID != "" && listing.TenantID != tenantID {
			continue
		}
		listings = append(listings, listing)
	}
	sort.Slice(listings, func(i, j int) bool {
		if listings[i].PublishedAt.Equal(listings[j].PublishedAt) {
			return listings[i].ID < listings[j].ID
		}
		return listings[i].PublishedAt.After(listings[j].PublishedAt)
	})
	var ids []string
	for _, listing := range listings {
		ids = append(ids, listing.ID)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// LoadTransfers returns a copy of the transfer reference data.
func (l *InMemoryLoader) LoadTransfers(ctx context.Context) ([]match.AthleticTransferSkill, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]match.AthleticTransferSkill(nil), l.transfers...), nil
}
