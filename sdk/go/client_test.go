package taskflowsdk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientUnwrapsEnvelope(t *testing.T) {
	var gotKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/time-logs/start":
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"success":true,"message":"Timer started","data":{"time_log":{"id":"l1","card_id":"c1","start_time":"2026-03-02T16:00:00+07:00"},"card_status":"in_progress"}}`)
		case "/api/time-logs/ongoing":
			io.WriteString(w, `{"success":true,"message":"No timer running","data":null}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"success":false,"message":"card x not found"}`)
		}
	}))
	defer srv.Close()

	c := New(srv.URL + "/api/")
	c.APIKey = "k"
	ctx := context.Background()

	res, err := c.StartTimer(ctx, "c1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "l1", res.TimeLog.ID)
	assert.Equal(t, "in_progress", res.CardStatus)
	assert.Equal(t, "k", gotKey)
	var sent map[string]string
	require.NoError(t, json.Unmarshal([]byte(gotBody), &sent))
	assert.Equal(t, map[string]string{"card_id": "c1"}, sent)
	started, err := res.TimeLog.Started()
	require.NoError(t, err)
	assert.Equal(t, 9, started.UTC().Hour())

	ongoing, err := c.Ongoing(ctx)
	require.NoError(t, err)
	assert.Nil(t, ongoing)

	_, err = c.CardTotal(ctx, "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "card x not found", apiErr.Message)
}

func TestStopWithoutDescriptionSendsNoBody(t *testing.T) {
	var length int64 = -1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		length = int64(len(b))
		io.WriteString(w, `{"success":true,"message":"Timer stopped","data":{"time_log":{"id":"l1"},"formatted_duration":"1 jam","card_actual_hours":1}}`)
	}))
	defer srv.Close()

	res, err := New(srv.URL).StopTimer(context.Background(), "l1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)
	assert.Equal(t, "1 jam", res.FormattedDuration)
}

func TestZeroClientSharedAcrossGoroutines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success":true,"message":"No timer running","data":null}`)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Ongoing(context.Background())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Nil(t, c.HTTPClient)
	assert.NotNil(t, New(srv.URL).HTTPClient)
}
