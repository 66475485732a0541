package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"patient-tile/internal/tile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBridgeServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, 2*time.Second, 0, zap.NewNop())
}

func TestFetchPatient_ReturnsBodyAndSendsContext(t *testing.T) {
	var gotContext, gotPath string
	client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotContext = r.Header.Get(ContextHeader)
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"123"}`))
	})

	patient, err := client.FetchPatient(context.Background(), "session-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"123"}`, string(patient))
	assert.Equal(t, "session-1", gotContext)
	assert.Equal(t, "/api/v1/patient", gotPath)
}

func TestFetchPatient_NoPatientResponses(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"null body":  func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("null")) },
		"no content": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
		"not found":  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			client := newBridgeServer(t, h)
			patient, err := client.FetchPatient(context.Background(), "s")
			require.NoError(t, err)
			assert.False(t, patient.Present())
		})
	}
}

func TestFetchPatient_InvalidJSON(t *testing.T) {
	client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":`))
	})

	patient, err := client.FetchPatient(context.Background(), "s")
	assert.ErrorIs(t, err, ErrInvalidPatient)
	assert.Nil(t, patient)
}

func TestFetchPatient_UnexpectedStatus(t *testing.T) {
	client := newBridgeServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchPatient(context.Background(), "s")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestFetchPatient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewHTTPClient(url, time.Second, 0, zap.NewNop())
	_, err := client.FetchPatient(context.Background(), "s")
	require.Error(t, err)
}

func TestSessionSource_WithoutClientReportsNoPatient(t *testing.T) {
	src := NewSessionSource("s", nil, nil)

	patient, err := src.GetPatient(context.Background())
	require.NoError(t, err)
	assert.False(t, patient.Present())

	_, err = src.OnPatientChanged(func(tile.Patient) {})
	assert.ErrorIs(t, err, ErrUnsupported)
}
