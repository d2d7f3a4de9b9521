package contextlog

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLog_RecordSnapshotsInput(t *testing.T) {
	l := New(nil)
	_, err := l.Create("session_1", "List my documents")
	require.NoError(t, err)

	params := map[string]any{"query": "benefits"}
	_, err = l.Record("session_1", "Retriever", "search", params, map[string]int{"total_results": 2}, nil)
	require.NoError(t, err)
	params["query"] = "mutated"

	conv, ok := l.Get("session_1")
	require.True(t, ok)
	entries := conv.Entries()
	require.Len(t, entries, 1)
	assert.JSONEq(t, `{"query":"benefits"}`, string(entries[0].Input))
	assert.JSONEq(t, `{"total_results":2}`, string(conv.LatestOutput("Retriever")))
	assert.Nil(t, conv.LatestOutput("Executor"))
	assert.Equal(t, 1, conv.CurrentStep())
}

func TestLog_SessionsAreNeverReused(t *testing.T) {
	l := New(nil)
	_, err := l.Create("s", "q")
	require.NoError(t, err)
	_, err = l.Create("s", "q2")
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestLog_TerminalStatusIsFinal(t *testing.T) {
	l := New(nil)
	_, err := l.Create("s", "q")
	require.NoError(t, err)

	require.NoError(t, l.SetStatus("s", StatusCompletedWithErrors))
	assert.ErrorIs(t, l.SetStatus("s", StatusCompleted), ErrSessionClosed)

	_, err = l.Record("s", "Executor", "create_task", nil, nil, nil)
	assert.ErrorIs(t, err, ErrSessionClosed)

	assert.ErrorIs(t, l.SetStatus("missing", StatusError), ErrSessionNotFound)
}

func TestLog_ActiveContext(t *testing.T) {
	l := New(nil)
	_, err := l.LogAction("Planner", "create_plan", nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoActiveContext)

	_, err = l.Create("a", "first")
	require.NoError(t, err)
	_, err = l.Create("b", "second")
	require.NoError(t, err)

	assert.False(t, l.SetActive("zzz"))
	require.True(t, l.SetActive("a"))
	_, err = l.LogAction("Planner", "create_plan", map[string]string{"user_query": "first"}, nil, nil)
	require.NoError(t, err)

	a, _ := l.Get("a")
	b, _ := l.Get("b")
	assert.Len(t, a.Entries(), 1)
	assert.Empty(t, b.Entries())
	assert.Equal(t, []string{"a", "b"}, l.Sessions())
}

func TestLog_Summary(t *testing.T) {
	l := New(nil)
	_, err := l.Create("s", "Summarize onboarding")
	require.NoError(t, err)
	for _, agent := range []string{"Planner", "Retriever", "Executor", "Retriever"} {
		_, err := l.Record("s", agent, "x", nil, nil, nil)
		require.NoError(t, err)
	}
	require.NoError(t, l.SetStatus("s", StatusCompleted))

	sum, err := l.Summary("s")
	require.NoError(t, err)
	assert.Equal(t, 4, sum.TotalSteps)
	assert.Equal(t, StatusCompleted, sum.Status)
	assert.Equal(t, []string{"Executor", "Planner", "Retriever"}, sum.AgentsInvolved)
	assert.False(t, sum.LastUpdated.IsZero())

	conv, _ := l.Get("s")
	assert.Len(t, conv.AgentHistory("Retriever"), 2)
}

func TestLog_Export(t *testing.T) {
	l := New(nil)
	_, err := l.Create("s", "q")
	require.NoError(t, err)
	_, err = l.Record("s", "Planner", "create_plan", map[string]string{"user_query": "q"}, map[string]bool{"success": true}, map[string]any{"attempt": 1})
	require.NoError(t, err)

	raw, err := l.Export("s", FormatJSON)
	require.NoError(t, err)
	var doc struct {
		SessionID string `json:"session_id"`
		Entries   []struct {
			Agent string         `json:"agent"`
			Input map[string]any `json:"input"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "s", doc.SessionID)
	require.Len(t, doc.Entries, 1)
	assert.Equal(t, "q", doc.Entries[0].Input["user_query"])

	raw, err = l.Export("s", FormatYAML)
	require.NoError(t, err)
	var y map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &y))
	assert.Equal(t, "active", y["status"])

	_, err = l.Export("s", "xml")
	assert.Error(t, err)
	_, err = l.Export("nope", FormatJSON)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLog_ConcurrentSessions(t *testing.T) {
	l := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if _, err := l.Create(id, "q"); err != nil {
				t.Error(err)
				return
			}
			for j := 0; j < 5; j++ {
				if _, err := l.Record(id, "Executor", "summarize", j, j, nil); err != nil {
					t.Error(err)
				}
			}
		}(i)
	}
	wg.Wait()

	for _, id := range l.Sessions() {
		c, _ := l.Get(id)
		assert.Len(t, c.Entries(), 5)
	}
}
