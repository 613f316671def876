package torn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("secret", 100, WithBaseURL(srv.URL), WithRequestsPerMinute(6000)), srv
}

func TestFactionMembers(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ApiKey secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/faction/200/members", r.URL.Path)
		fmt.Fprint(w, `{"members":[
			{"id":7,"name":"zed","level":40,"status":{"description":"In hospital","state":"Hospital","until":1700000300},"life":{"current":10,"maximum":100}},
			{"id":3,"name":"amy","level":12,"status":{"description":"Okay","state":"Okay","until":0},"life":{"current":100,"maximum":100}}
		]}`)
	})

	members, err := c.FactionMembers(context.Background(), 200)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, int64(3), members[0].ID)
	assert.Equal(t, "zed", members[1].Name)
	assert.Equal(t, StateHospital, members[1].Status.State)
	assert.Equal(t, int64(1700000300), members[1].Status.Until)
	assert.InDelta(t, 0.1, members[1].Life.Ratio(), 1e-9)
}

func TestErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
		code     int
	}{
		{"incorrect id", http.StatusOK, `{"error":{"code":6,"error":"Incorrect ID"}}`, true, 0},
		{"bad key", http.StatusOK, `{"error":{"code":2,"error":"Incorrect key"}}`, false, 2},
		{"http 404", http.StatusNotFound, `nope`, true, 0},
		{"4xx with envelope", http.StatusForbidden, `{"error":{"code":16,"error":"Access level too low"}}`, false, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			_, err := c.FactionMembers(context.Background(), 1)
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))

			var apiErr *APIError
			if tt.code != 0 {
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.code, apiErr.Code)
			}
		})
	}
}

func TestAttacksFollowsCursor(t *testing.T) {
	var srvURL string
	var calls atomic.Int32

	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Empty(t, r.URL.Query().Get("key"), "key must not travel in the query")

		switch r.URL.Query().Get("cursor") {
		case "":
			assert.Equal(t, "ASC", r.URL.Query().Get("sort"))
			fmt.Fprintf(w, `{"attacks":[{"id":1,"result":"Attacked"},{"id":2,"result":"Lost"}],
				"_metadata":{"links":{"next":"%s/faction/attacks?cursor=2&key=secret"}}}`, srvURL)
		case "2":
			// Overlapping page boundary
			fmt.Fprintf(w, `{"attacks":[{"id":2,"result":"Lost"},{"id":3,"result":"Assist"}],
				"_metadata":{"links":{"next":"%s/faction/attacks?cursor=3"}}}`, srvURL)
		default:
			fmt.Fprint(w, `{"attacks":[],"_metadata":{"links":{"next":""}}}`)
		}
	})
	srvURL = srv.URL

	from := time.Unix(1_700_000_000, 0)
	attacks, err := c.Attacks(context.Background(), from, from.Add(time.Hour))
	require.NoError(t, err)

	ids := make([]int64, len(attacks))
	for i, a := range attacks {
		ids[i] = a.ID
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, attacks[0].Successful())
	assert.True(t, attacks[2].IsAssist())
}

func TestPaginateStopsOnRepeatedCursor(t *testing.T) {
	var srvURL string
	var calls atomic.Int32

	c, srv := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprintf(w, `{"news":[{"id":"a","text":"x","timestamp":1}],"_metadata":{"links":{"next":"%s/faction/news?cat=giveFunds&cursor=1"}}}`, srvURL)
	})
	srvURL = srv.URL

	news, err := c.News(context.Background(), NewsGiveFunds, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, news, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetryAfterTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"balance":{"faction":{"money":5000,"points":20,"scope":0},"members":[{"id":1,"username":"a","money":100,"points":0}]}}`)
	})

	bal, err := c.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5000), bal.Faction.Money)
	require.Len(t, bal.Members, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRankedWar(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/faction/100/rankedwars", r.URL.Path)
		fmt.Fprint(w, `{"rankedwars":[{"id":9,"start":1700000000,"end":0,"factions":[{"id":100,"name":"Us"},{"id":200,"name":"Them"}]}]}`)
	})

	war, err := c.RankedWar(context.Background(), c.FactionID(), 9)
	require.NoError(t, err)
	assert.True(t, war.EndTime().IsZero())

	opp, ok := war.Opponent(100)
	require.True(t, ok)
	assert.Equal(t, "Them", opp.Name)

	_, err = c.RankedWar(context.Background(), c.FactionID(), 10)
	assert.ErrorIs(t, err, ErrNotFound)
}
