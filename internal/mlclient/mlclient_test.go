package mlclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredict_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/predict", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req PredictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "patients/a/one.jpg", req.ImagePath)

		json.NewEncoder(w).Encode(PredictResponse{
			Grade:        2,
			Confidence:   0.91,
			ModelVersion: "efficientnet-b3-v2",
		})
	}))
	defer srv.Close()

	client := New(srv.URL)

	resp, err := client.Predict(context.Background(), PredictRequest{
		ImagePath: "patients/a/one.jpg",
		ImageHash: "hash-one",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Grade)
	assert.InDelta(t, 0.91, resp.Confidence, 0.001)
	assert.Equal(t, "efficientnet-b3-v2", resp.ModelVersion)
}

func TestPredict_OutOfRangeGrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PredictResponse{Grade: 7, Confidence: 0.5})
	}))
	defer srv.Close()

	client := New(srv.URL)

	_, err := client.Predict(context.Background(), PredictRequest{ImagePath: "x", ImageHash: "y"})
	assert.ErrorContains(t, err, "out-of-range grade")
}

func TestPredict_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL)

	_, err := client.Predict(context.Background(), PredictRequest{ImagePath: "x", ImageHash: "y"})
	assert.ErrorContains(t, err, "status 503")
}

func TestHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	assert.NoError(t, New(healthy.URL).Health(context.Background()))

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer unhealthy.Close()

	assert.Error(t, New(unhealthy.URL).Health(context.Background()))

	unreachable := New("http://127.0.0.1:1")
	assert.Error(t, unreachable.Health(context.Background()))
}
