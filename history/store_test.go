package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateSessionAndAppend(t *testing.T) {
	s := openStore(t)

	sess, err := s.CreateSession("sales.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)

	require.NoError(t, s.AppendExchange(&Exchange{
		SessionID: sess.ID,
		Question:  "Top suppliers?",
		Answer:    "Stark leads.",
	}))
	require.NoError(t, s.AppendExchange(&Exchange{
		SessionID: sess.ID,
		Question:  "SQL for it?",
		Answer:    "See query.",
		SQLQuery:  "SELECT 1",
		Error:     "chart generation failed",
	}))

	got, err := s.Exchanges(sess.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Top suppliers?", got[0].Question)
	assert.Empty(t, got[0].SQLQuery)
	assert.Equal(t, "SELECT 1", got[1].SQLQuery)
	assert.Equal(t, "chart generation failed", got[1].Error)
}

func TestRecentSessionsOrderAndLimit(t *testing.T) {
	s := openStore(t)

	for _, name := range []string{"a.csv", "b.csv", "c.csv"} {
		_, err := s.CreateSession(name)
		require.NoError(t, err)
	}

	sessions, err := s.RecentSessions(2)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestExchangesEmptySession(t *testing.T) {
	s := openStore(t)

	got, err := s.Exchanges("nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}
