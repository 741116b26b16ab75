package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const solrBody = `{
	"response": {
		"docs": [
			{"id": "a1", "airport_name": ["King Khalid Intl"], "city": ["Riyadh"], "city_ar": ["الرياض"], "country": ["Saudi Arabia"], "code": ["RUH"], "airport_code": ["OERK"], "region": ["Middle East"]},
			{"airport_name": ["Unknown Field"], "code": ["XXX"]}
		]
	}
}`

func airportClient(url string) *AirportClient {
	return NewAirportClient(AirportConfig{URL: url, Username: "solr", Password: "pw"}, zap.NewNop())
}

func TestAirportClient_FetchAirports(t *testing.T) {
	var authed bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		authed = ok && user == "solr" && pass == "pw"
		w.Write([]byte(solrBody))
	}))
	defer server.Close()

	airports, err := airportClient(server.URL).FetchAirports(context.Background())
	require.NoError(t, err)
	assert.True(t, authed)
	require.Len(t, airports, 2)

	assert.Equal(t, "a1", airports[0].ID)
	assert.Equal(t, "King Khalid Intl", airports[0].Name)
	assert.Equal(t, "RUH", airports[0].IATA)
	assert.Equal(t, "OERK", airports[0].ICAO)

	// Missing fields fall back to placeholders, and a missing id is derived
	// from the code and position.
	assert.Equal(t, "XXX-1", airports[1].ID)
	assert.Equal(t, "N/A", airports[1].Country)
	assert.Equal(t, "N/A", airports[1].ICAO)
}

func TestAirportClient_RetriesOnGatewayTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		w.Write([]byte(solrBody))
	}))
	defer server.Close()

	airports, err := airportClient(server.URL).FetchAirports(context.Background())
	require.NoError(t, err)
	assert.Len(t, airports, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAirportClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer server.Close()

	_, err := airportClient(server.URL).FetchAirports(context.Background())
	assert.ErrorIs(t, err, ErrLookupUnavailable)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAirportClient_OtherErrorsFailImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := airportClient(server.URL).FetchAirports(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLookupUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}
