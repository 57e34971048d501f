package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/nikkolasg/hexjson"
	"github.com/stretchr/testify/require"

	"github.com/drand/ceremony/store"
	"github.com/drand/ceremony/store/memdb"
	"github.com/drand/ceremony/store/storetest"
	"github.com/drand/ceremony/test"
)

func newServer(t *testing.T) *httptest.Server {
	ctx := context.Background()
	s := memdb.NewStore()
	require.NoError(t, s.PutAssignment(ctx, storetest.NewAssignment(3, "zurich")))
	require.NoError(t, s.PutAssignment(ctx, storetest.NewAssignment(3, "bern")))
	require.NoError(t, s.PutJudgement(ctx, storetest.NewJudgement(3, "zurich", 1)))

	server := httptest.NewServer(New(s, "v0.1.0", test.Logger(t)))
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string) (int, []byte) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	server := newServer(t)
	code, body := get(t, server.URL+"/health")
	require.Equal(t, http.StatusOK, code)

	var h healthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	require.Equal(t, "ok", h.Status)
	require.Equal(t, "v0.1.0", h.Version)
}

func TestAssignments(t *testing.T) {
	server := newServer(t)

	code, body := get(t, server.URL+"/ceremonies/3/communities")
	require.Equal(t, http.StatusOK, code)
	var all []assignmentResponse
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 2)
	require.Equal(t, "bern", all[0].Community)
	require.Equal(t, "zurich", all[1].Community)

	code, body = get(t, server.URL+"/ceremonies/3/communities/zurich/assignment")
	require.Equal(t, http.StatusOK, code)
	var a assignmentResponse
	require.NoError(t, json.Unmarshal(body, &a))
	expected := storetest.NewAssignment(3, "zurich")
	require.Equal(t, expected, a.CommunityAssignment)
	require.Equal(t, expected.Digest(), a.Digest)

	code, _ = get(t, server.URL+"/ceremonies/4/communities/zurich/assignment")
	require.Equal(t, http.StatusNotFound, code)

	code, body = get(t, server.URL+"/ceremonies/9/communities")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, "[]", string(body))
}

func TestJudgements(t *testing.T) {
	server := newServer(t)

	code, body := get(t, server.URL+"/ceremonies/3/communities/zurich/meetups/1/judgement")
	require.Equal(t, http.StatusOK, code)
	j := new(store.MeetupJudgement)
	require.NoError(t, json.Unmarshal(body, j))
	require.Equal(t, storetest.NewJudgement(3, "zurich", 1), j)

	code, body = get(t, server.URL+"/ceremonies/3/communities/zurich/judgements")
	require.Equal(t, http.StatusOK, code)
	var all []*store.MeetupJudgement
	require.NoError(t, json.Unmarshal(body, &all))
	require.Len(t, all, 1)

	code, body = get(t, server.URL+"/ceremonies/3/communities/bern/judgements")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, "[]", string(body))

	code, _ = get(t, server.URL+"/ceremonies/3/communities/zurich/meetups/2/judgement")
	require.Equal(t, http.StatusNotFound, code)
}

func TestBadRequests(t *testing.T) {
	server := newServer(t)
	for _, path := range []string{
		"/ceremonies/abc/communities",
		"/ceremonies/-1/communities/zurich/assignment",
		"/ceremonies/4294967296/communities",
		"/ceremonies/3/communities/zurich/meetups/0/judgement",
		"/ceremonies/3/communities/zurich/meetups/x/judgement",
	} {
		code, _ := get(t, server.URL+path)
		require.Equal(t, http.StatusBadRequest, code, path)
	}
	code, _ := get(t, server.URL+"/ceremonies/3")
	require.Equal(t, http.StatusNotFound, code)
}
