package models

import (
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/moyoez/kbupload/types"
)

// ReportTTL is how long a finished upload report can be fetched by id.
var ReportTTL = 10 * time.Minute

// ResultStore keeps recent upload reports in memory only.
type ResultStore struct {
	mu      sync.RWMutex
	reports *ttlworker.Cache[string, *types.Report]
	lastID  string
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		reports: ttlworker.NewCache[string, *types.Report](ReportTTL),
	}
}

// Save stores a copy of report. Noop reports carry no id and are not stored.
func (s *ResultStore) Save(report types.Report) {
	if report.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := report
	s.reports.Set(report.ID, &copied)
	s.lastID = report.ID
}

func (s *ResultStore) Lookup(id string) (types.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report := s.reports.Get(id)
	if report == nil {
		return types.Report{}, false
	}
	return *report, true
}

// Latest returns the most recently saved report that has not expired.
func (s *ResultStore) Latest() (types.Report, bool) {
	s.mu.RLock()
	id := s.lastID
	s.mu.RUnlock()
	if id == "" {
		return types.Report{}, false
	}
	return s.Lookup(id)
}
