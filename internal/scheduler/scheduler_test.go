package scheduler

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStart_RegistersJobs(t *testing.T) {
	noop := func() {}
	s, err := Start(Jobs{
		Rollover:    noop,
		Reload:      noop,
		ReloadEvery: 6 * time.Hour,
		Dispatch:    noop,
	}, tz, clockwork.NewFakeClockAt(dawn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	var names []string
	for _, j := range s.Jobs() {
		names = append(names, j.Name())
	}
	assert.ElementsMatch(t, []string{"rollover", "table-reload", "dispatch"}, names)
}

func TestStart_SkipsNilJobs(t *testing.T) {
	s, err := Start(Jobs{Dispatch: func() {}}, tz, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	require.Len(t, s.Jobs(), 1)
	assert.Equal(t, "dispatch", s.Jobs()[0].Name())
}

func TestStart_DispatchOnTheMinute(t *testing.T) {
	started := time.Date(2025, 6, 1, 4, 0, 17, 0, tz)
	s, err := Start(Jobs{Dispatch: func() {}}, tz, clockwork.NewFakeClockAt(started))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown() })

	job := s.Jobs()[0]
	want := time.Date(2025, 6, 1, 4, 1, 0, 0, tz)
	assert.Eventually(t, func() bool {
		next, err := job.NextRun()
		return err == nil && next.Equal(want)
	}, 2*time.Second, 10*time.Millisecond)
}
