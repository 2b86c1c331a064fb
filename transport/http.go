package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/limits"
	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/signaling"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPSink is the part of callcore.Coordinator that consumes HTTP results.
type HTTPSink interface {
	Post(fn func())
	ReceivedHTTPResponse(requestID request.ID, resp signaling.HTTPResponse) bool
	HTTPRequestFailed(requestID request.ID) bool
}

// HTTPExecutor performs the coordinator's outbound HTTP requests, each on
// its own goroutine, and posts the outcome back to the sink.
type HTTPExecutor struct {
	ctx    context.Context
	client *http.Client
	sink   HTTPSink
	wg     sync.WaitGroup
}

// NewHTTPExecutor creates an executor whose requests are bound to ctx. A
// nil client gets a default with a 30 second timeout.
func NewHTTPExecutor(ctx context.Context, client *http.Client, sink HTTPSink) *HTTPExecutor {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPExecutor{ctx: ctx, client: client, sink: sink}
}

// OnSendHTTPRequest starts req.
func (x *HTTPExecutor) OnSendHTTPRequest(requestID request.ID, req signaling.HTTPRequest) {
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		x.do(requestID, req)
	}()
}

// Wait blocks until every started request has posted its outcome.
func (x *HTTPExecutor) Wait() {
	x.wg.Wait()
}

func (x *HTTPExecutor) do(requestID request.ID, req signaling.HTTPRequest) {
	logger := logrus.WithFields(logrus.Fields{
		"function":   "do",
		"request_id": requestID,
		"method":     req.Method,
		"url":        req.URL,
	})

	resp, err := x.roundTrip(req)
	if err != nil {
		logger.WithField("error", err.Error()).Warn("HTTP request failed")
		x.sink.Post(func() { x.sink.HTTPRequestFailed(requestID) })
		return
	}

	logger.WithField("status", resp.Status).Debug("HTTP response received")
	x.sink.Post(func() { x.sink.ReceivedHTTPResponse(requestID, resp) })
}

func (x *HTTPExecutor) roundTrip(req signaling.HTTPRequest) (signaling.HTTPResponse, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(x.ctx, req.Method.String(), req.URL, body)
	if err != nil {
		return signaling.HTTPResponse{}, err
	}
	for _, h := range req.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}

	resp, err := x.client.Do(httpReq)
	if err != nil {
		return signaling.HTTPResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limits.MaxHTTPResponse))
	if err != nil {
		return signaling.HTTPResponse{}, err
	}
	return signaling.HTTPResponse{Status: resp.StatusCode, Body: data}, nil
}
