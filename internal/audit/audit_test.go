package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sujalbistaa/privacynet/internal/db/dbtest"
	"github.com/sujalbistaa/privacynet/internal/logging"
)

func TestGormSink_RecordAndRead(t *testing.T) {
	gdb := dbtest.New(t)
	s := NewGormSink(gdb)
	ctx := context.Background()
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, Event{Name: PiiSubmitted, ActorID: "ann", PostID: "p1", CommentID: "c1", IP: "10.0.0.1", Metadata: map[string]any{"pii_count": 2}, At: t0}))
	require.NoError(t, s.Record(ctx, Event{Name: PiiAccessed, ActorID: "pat", TargetID: "ann", PostID: "p1", At: t0.Add(time.Minute)}))
	require.NoError(t, s.Record(ctx, Event{Name: DataExported, ActorID: "zed", At: t0.Add(2 * time.Minute)}))

	got, err := s.ForUser(ctx, "ann", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, PiiAccessed, got[0].Event)
	assert.Equal(t, PiiSubmitted, got[1].Event)
	assert.Equal(t, "10.0.0.1", got[1].IPAddress)

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(got[1].Metadata), &meta))
	assert.EqualValues(t, 2, meta["pii_count"])
	assert.Equal(t, "{}", got[0].Metadata)

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, DataExported, recent[0].Event)
}

type memSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (m *memSink) Record(_ context.Context, e Event) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func TestRecorder_DeliversAndDrainsOnClose(t *testing.T) {
	sink := &memSink{}
	r := NewRecorder(sink, logging.Nop(), 16)

	for i := 0; i < 5; i++ {
		r.Log(context.Background(), Event{Name: PiiSubmitted})
	}
	r.Close()

	assert.Len(t, sink.events, 5)
	for _, e := range sink.events {
		assert.False(t, e.At.IsZero())
	}
}

func TestRecorder_SinkFailureIsSwallowed(t *testing.T) {
	sink := &memSink{err: errors.New("disk full")}
	r := NewRecorder(sink, logging.Nop(), 4)

	assert.NotPanics(t, func() {
		r.Log(context.Background(), Event{Name: PiiAccessed})
		r.Close()
	})
}

func TestRecorder_NeverBlocks(t *testing.T) {
	sink := &memSink{block: make(chan struct{})}
	r := NewRecorder(sink, logging.Nop(), 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			r.Log(context.Background(), Event{Name: PiiSubmitted})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Log blocked on a stalled sink")
	}

	close(sink.block)
	r.Close()
	assert.LessOrEqual(t, len(sink.events), 2)
}

func TestRecorder_LogAfterClose(t *testing.T) {
	r := NewRecorder(&memSink{}, logging.Nop(), 1)
	r.Close()
	assert.NotPanics(t, func() { r.Log(context.Background(), Event{Name: PiiAccessed}) })
	r.Close()
}
