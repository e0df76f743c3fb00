package model

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBudgetAdmitsUpToMaxTasks(t *testing.T) {
	b := NewBudget(3, time.Minute, 2, 5, true)

	assert.True(t, b.AdmitTask())
	assert.True(t, b.AdmitTask())
	assert.True(t, b.AdmitTask())
	assert.False(t, b.AdmitTask())
	assert.Equal(t, 3, b.TasksAdmitted())
}

func TestBudgetNeverOverAdmitsUnderContention(t *testing.T) {
	const max = 10
	b := NewBudget(max, time.Minute, 4, 5, true)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.AdmitTask() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, max, admitted)
	assert.Equal(t, max, b.TasksAdmitted())
}

func TestBudgetRejectsAdmissionAfterDeadline(t *testing.T) {
	b := NewBudget(10, time.Millisecond, 2, 5, true)
	time.Sleep(5 * time.Millisecond)

	assert.False(t, b.AdmitTask())
	assert.Equal(t, time.Duration(0), b.TimeRemaining())
}

func TestBudgetTimeRemainingIsFlooredAtZero(t *testing.T) {
	b := NewBudget(1, time.Millisecond, 1, 5, true)
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, time.Duration(0), b.TimeRemaining())
	assert.Greater(t, b.Elapsed(), time.Duration(0))
}
