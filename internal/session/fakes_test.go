package session

import (
	"context"
	"sync"

	"patient-tile/internal/bridge"
	"patient-tile/internal/models"
	"patient-tile/internal/tile"
)

// fakeSource 可控的病人来源
type fakeSource struct {
	mu          sync.Mutex
	patient     tile.Patient
	fetchErr    error
	honorCtx    bool
	watchErr    error
	cb          func(tile.Patient)
	unregisters int
}

func (f *fakeSource) GetPatient(ctx context.Context) (tile.Patient, error) {
	if f.honorCtx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return f.patient, f.fetchErr
}

func (f *fakeSource) OnPatientChanged(cb func(tile.Patient)) (func(), error) {
	if f.watchErr != nil {
		return nil, f.watchErr
	}
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unregisters++
		f.cb = nil
	}, nil
}

func (f *fakeSource) emit(p tile.Patient) bool {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb == nil {
		return false
	}
	cb(p)
	return true
}

func (f *fakeSource) unregisterCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unregisters
}

var _ bridge.Source = (*fakeSource)(nil)

type fakeRecorder struct {
	mu     sync.Mutex
	events []models.TransitionEvent
	err    error
}

func (f *fakeRecorder) Record(ctx context.Context, ev models.TransitionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeRecorder) all() []models.TransitionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TransitionEvent(nil), f.events...)
}
