package ingest

import (
	"sync"

	"github.com/sells-group/tendersync/internal/model"
)

// maxErrorMessages caps the error list carried in job statistics and the
// sync response, to bound payload size. The error counter is not capped.
const maxErrorMessages = 5

// Stats is the batch accumulator threaded through per-record processing.
// It locks internally so the orchestrator's concurrent mode can share one
// value across workers.
type Stats struct {
	mu                   sync.Mutex
	opportunitiesAdded   int
	opportunitiesUpdated int
	contactsFound        int
	emailsExtracted      int
	errorCount           int
	errorMessages        []string
}

func (s *Stats) addInserted() {
	s.mu.Lock()
	s.opportunitiesAdded++
	s.mu.Unlock()
}

func (s *Stats) addUpdated() {
	s.mu.Lock()
	s.opportunitiesUpdated++
	s.mu.Unlock()
}

func (s *Stats) addContact() {
	s.mu.Lock()
	s.contactsFound++
	s.mu.Unlock()
}

func (s *Stats) addEmails(n int) {
	s.mu.Lock()
	s.emailsExtracted += n
	s.mu.Unlock()
}

func (s *Stats) addError(msg string) {
	s.mu.Lock()
	s.errorCount++
	if len(s.errorMessages) < maxErrorMessages {
		s.errorMessages = append(s.errorMessages, msg)
	}
	s.mu.Unlock()
}

func (s *Stats) errors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCount
}

// Snapshot converts the accumulator into the persisted/reported form.
func (s *Stats) Snapshot() *model.SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]string, len(s.errorMessages))
	copy(msgs, s.errorMessages)
	return &model.SyncStats{
		OpportunitiesAdded:   s.opportunitiesAdded,
		OpportunitiesUpdated: s.opportunitiesUpdated,
		ContactsFound:        s.contactsFound,
		EmailsExtracted:      s.emailsExtracted,
		Errors:               s.errorCount,
		ErrorMessages:        msgs,
	}
}
