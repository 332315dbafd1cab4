package ingest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsSnapshot(t *testing.T) {
	s := &Stats{}
	s.addInserted()
	s.addInserted()
	s.addUpdated()
	s.addContact()
	s.addEmails(3)
	s.addError("record A: boom")

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.OpportunitiesAdded)
	assert.Equal(t, 1, snap.OpportunitiesUpdated)
	assert.Equal(t, 1, snap.ContactsFound)
	assert.Equal(t, 3, snap.EmailsExtracted)
	assert.Equal(t, 1, snap.Errors)
	assert.Equal(t, []string{"record A: boom"}, snap.ErrorMessages)
}

func TestStatsErrorMessageCap(t *testing.T) {
	s := &Stats{}
	for i := 0; i < 20; i++ {
		s.addError(fmt.Sprintf("err %d", i))
	}

	snap := s.Snapshot()
	assert.Equal(t, 20, snap.Errors)
	assert.Len(t, snap.ErrorMessages, maxErrorMessages)
	assert.Equal(t, "err 0", snap.ErrorMessages[0])
}

func TestStatsConcurrent(t *testing.T) {
	s := &Stats{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.addInserted()
			s.addEmails(2)
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, 50, snap.OpportunitiesAdded)
	assert.Equal(t, 100, snap.EmailsExtracted)
}
