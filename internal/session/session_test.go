package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"patient-tile/internal/bridge"
	"patient-tile/internal/models"
	"patient-tile/internal/store"
	"patient-tile/internal/tile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func testDeps(kv store.KV, id string, src bridge.Source, recs ...Recorder) Deps {
	n := 0
	return Deps{
		Store:     store.NewSession(kv, id, time.Hour),
		Source:    src,
		Recorders: recs,
		Logger:    zap.NewNop(),
		Now:       func() time.Time { return fixedNow },
		NewID: func() string {
			n++
			return "event-" + string(rune('0'+n))
		},
	}
}

func TestOpen_FetchesPatientAndSubscribes(t *testing.T) {
	kv := store.NewMemoryKV()
	src := &fakeSource{patient: tile.Patient(`{"id":"123"}`)}
	rec := &fakeRecorder{}

	s := Open(context.Background(), "s1", testDeps(kv, "s1", src, rec))
	defer s.Close()

	v := s.View()
	assert.Equal(t, tile.StatePatient, v.Snapshot.State)
	assert.Equal(t, tile.ColorPatient, v.Snapshot.Color)
	assert.JSONEq(t, `{"id":"123"}`, string(v.Patient))
	assert.NoError(t, v.FetchErr)

	raw, err := kv.Get(context.Background(), "tile:session:s1:patient")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"123"}`, raw)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, models.TransitionEvent{
		EventID: "event-1", SessionID: "s1", From: "default", To: "patient",
		Source: models.SourceFetch, At: fixedNow,
	}, events[0])
}

func TestOpen_NotificationsDriveState(t *testing.T) {
	src := &fakeSource{}
	rec := &fakeRecorder{}
	s := Open(context.Background(), "s1", testDeps(store.NewMemoryKV(), "s1", src, rec))
	defer s.Close()

	assert.Equal(t, tile.StateDefault, s.View().Snapshot.State)

	require.True(t, src.emit(tile.Patient(`{"id":"9"}`)))
	assert.Equal(t, tile.StatePatient, s.View().Snapshot.State)

	require.True(t, src.emit(nil))
	v := s.View()
	assert.Equal(t, tile.StateDefault, v.Snapshot.State)
	assert.Nil(t, v.Patient)

	events := rec.all()
	require.Len(t, events, 3)
	assert.Equal(t, models.SourceNotify, events[1].Source)
	assert.Equal(t, "patient", events[1].To)
	assert.Equal(t, "default", events[2].To)
}

func TestOpen_FetchErrorKeepsHydratedState(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	require.NoError(t, store.NewSession(kv, "s1", 0).Set(ctx, tile.KeyPatient, `{"id":"1"}`))

	src := &fakeSource{fetchErr: errors.New("bridge down")}
	rec := &fakeRecorder{}
	s := Open(ctx, "s1", testDeps(kv, "s1", src, rec))
	defer s.Close()

	v := s.View()
	assert.Equal(t, tile.StatePatient, v.Snapshot.State)
	assert.EqualError(t, v.FetchErr, "bridge down")
	assert.Empty(t, rec.all())

	// 后续通知会清除错误
	src.emit(nil)
	assert.NoError(t, s.View().FetchErr)
}

func TestOpen_ToleratesMissingNotifications(t *testing.T) {
	src := &fakeSource{watchErr: bridge.ErrUnsupported, patient: tile.Patient(`{"id":"1"}`)}
	s := Open(context.Background(), "s1", testDeps(store.NewMemoryKV(), "s1", src))

	assert.Equal(t, tile.StatePatient, s.View().Snapshot.State)
	s.Close()
	assert.Equal(t, 0, src.unregisterCount())
}

func TestClose_ReleasesSubscriptionOnce(t *testing.T) {
	src := &fakeSource{}
	s := Open(context.Background(), "s1", testDeps(store.NewMemoryKV(), "s1", src))

	s.Close()
	s.Close()
	assert.Equal(t, 1, src.unregisterCount())
	assert.False(t, src.emit(tile.Patient(`{"id":"1"}`)))
}

func TestApply_RecorderFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{}
	rec := &fakeRecorder{err: errors.New("stream unavailable")}
	s := Open(context.Background(), "s1", testDeps(store.NewMemoryKV(), "s1", src, rec))
	defer s.Close()

	assert.Equal(t, tile.StatePatient, s.Apply(context.Background(), tile.Patient(`{"id":"1"}`), models.SourcePush))
	assert.Len(t, rec.all(), 2)
}

func TestApply_CopiesPatient(t *testing.T) {
	s := Open(context.Background(), "s1", testDeps(store.NewMemoryKV(), "s1", &fakeSource{}))
	defer s.Close()

	p := tile.Patient(`{"id":"1"}`)
	s.Apply(context.Background(), p, models.SourcePush)
	p[2] = 'X'

	assert.JSONEq(t, `{"id":"1"}`, string(s.View().Patient))
}
