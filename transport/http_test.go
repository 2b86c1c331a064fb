package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/signaling"
)

func TestHTTPExecutorPostsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write(append([]byte("echo:"), body...))
	}))
	defer server.Close()

	sink := newRecordingSink()
	x := NewHTTPExecutor(context.Background(), nil, sink)
	x.OnSendHTTPRequest(9, signaling.HTTPRequest{
		Method:  signaling.HTTPMethodPut,
		URL:     server.URL + "/v2/conference",
		Headers: []signaling.HTTPHeader{{Name: "Authorization", Value: "Bearer token"}},
		Body:    []byte("hello"),
	})
	x.Wait()
	sink.next(t)

	resp, ok := sink.responses[9]
	require.True(t, ok)
	assert.Equal(t, signaling.HTTPResponse{Status: http.StatusAccepted, Body: []byte("echo:hello")}, resp)
	assert.Empty(t, sink.httpFails)
}

func TestHTTPExecutorReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	sink := newRecordingSink()
	x := NewHTTPExecutor(context.Background(), nil, sink)
	x.OnSendHTTPRequest(3, signaling.HTTPRequest{Method: signaling.HTTPMethodGet, URL: url})
	x.Wait()
	sink.next(t)

	assert.Equal(t, []request.ID{3}, sink.httpFails)
	assert.Empty(t, sink.responses)
}

func TestHTTPExecutorPassesStatusThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	sink := newRecordingSink()
	x := NewHTTPExecutor(context.Background(), server.Client(), sink)
	x.OnSendHTTPRequest(4, signaling.HTTPRequest{Method: signaling.HTTPMethodGet, URL: server.URL})
	x.Wait()
	sink.next(t)

	assert.Equal(t, http.StatusForbidden, sink.responses[4].Status)
	assert.False(t, sink.responses[4].Failed)
}
