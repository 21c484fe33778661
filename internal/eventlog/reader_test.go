package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brood-studio/canvasrt/internal/events"
)

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestPollAppliesEventsInOrder(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, `{"type":"image_description","image_path":"/a.jpg","description":"d1"}`+"\n"+
		`{"type":"generation_failed","error":"boom"}`+"\n")

	r, err := New(p)
	require.NoError(t, err)
	defer r.Close()

	evs, err := r.Poll()
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, events.TypeImageDescription, evs[0].Type)
	assert.Equal(t, events.TypeGenerationFailed, evs[1].Type)
}

func TestPollIsIdempotentAtSameOffset(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, `{"type":"recreate_done"}`+"\n")

	r, err := New(p)
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Poll()
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := r.Poll()
	require.NoError(t, err)
	assert.Empty(t, second, "no new lines since last offset should yield no events")
}

func TestPollBuffersUnterminatedTailAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "events.jsonl")
	require.NoError(t, os.WriteFile(p, []byte(`{"type":"recreate_done"`), 0644))

	r, err := New(p)
	require.NoError(t, err)
	defer r.Close()

	evs, err := r.Poll()
	require.NoError(t, err)
	assert.Empty(t, evs, "partial line must not be decoded early")

	f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("}\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	evs, err = r.Poll()
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeRecreateDone, evs[0].Type)
}

func TestPollUnknownTypeIsIgnoredNotError(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, `{"type":"something_new_from_the_future"}`+"\n")

	r, err := New(p)
	require.NoError(t, err)
	defer r.Close()

	evs, err := r.Poll()
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TypeIgnored, evs[0].Type)
}

func TestPollOnMissingFileReturnsNoEventsNoError(t *testing.T) {
	dir := t.TempDir()
	r, err := New(filepath.Join(dir, "does-not-exist.jsonl"))
	require.NoError(t, err)
	defer r.Close()

	evs, err := r.Poll()
	require.NoError(t, err)
	assert.Empty(t, evs)
}
