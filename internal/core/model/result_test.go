package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintIsStablePerSourceAndContent(t *testing.T) {
	a := NewFingerprint("web-search", "same content")
	b := NewFingerprint("web-search", "same content")
	c := NewFingerprint("rss-news", "same content")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestResultSetAddIsIdempotent(t *testing.T) {
	set := NewResultSet()
	r := Result{ID: "r1", Fingerprint: NewFingerprint("web-search", "doc")}

	assert.True(t, set.Add(r))
	assert.False(t, set.Add(r))
	assert.Equal(t, 1, set.Len())

	// Same fingerprint from a different hypothesis's copy is still a dup.
	other := r
	other.ID = "r2"
	assert.False(t, set.Add(other))
	assert.Equal(t, 1, set.Len())
}

func TestResultSetConcurrentAddKeepsUniqueFingerprints(t *testing.T) {
	set := NewResultSet()
	fingerprints := []string{"a", "b", "c", "d"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for _, fp := range fingerprints {
				set.Add(Result{Fingerprint: fp})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, len(fingerprints), set.Len())
}

func TestTaskAttemptLogIsAppendOnly(t *testing.T) {
	task := NewTask("trace ownership", 1)
	task.RecordAttempt(SearchAttempt{TaskID: task.ID, SourceID: "web-search", Phase: 1, Outcome: AttemptEmpty})
	task.RecordAttempt(SearchAttempt{TaskID: task.ID, SourceID: "web-search", Phase: 2, Outcome: AttemptSuccess})

	attempts := task.Attempts()
	assert.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].Phase)
	assert.Equal(t, 2, attempts[1].Phase)

	// Mutating the returned slice must not touch the log.
	attempts[0].Phase = 99
	assert.Equal(t, 1, task.Attempts()[0].Phase)
}

func TestFollowUpTaskLinksParentAndLowersPriority(t *testing.T) {
	parent := NewTask("root angle", 1)
	follow := NewFollowUpTask("chase the offshore entity", parent)

	assert.Equal(t, parent.ID, follow.FollowUpOf)
	assert.Equal(t, 2, follow.Priority)
	assert.Equal(t, TaskPending, follow.State())
}
