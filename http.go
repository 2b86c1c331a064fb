package callcore

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

// sendHTTPRequest hands req to the host and registers handler for its
// outcome.
func (c *Coordinator) sendHTTPRequest(req signaling.HTTPRequest, handler request.Handler[signaling.HTTPResponse]) request.ID {
	id := c.httpRequests.Add(handler)

	logrus.WithFields(logrus.Fields{
		"function":   "sendHTTPRequest",
		"request_id": id,
		"method":     req.Method,
		"url":        req.URL,
	}).Debug("Sending HTTP request")

	c.observer.OnSendHTTPRequest(id, req)
	return id
}

// ReceivedHTTPResponse delivers the host's response to a request issued
// through OnSendHTTPRequest. It returns false for unknown or already
// resolved ids.
func (c *Coordinator) ReceivedHTTPResponse(requestID request.ID, resp signaling.HTTPResponse) bool {
	return c.httpRequests.Resolve(requestID, resp)
}

// HTTPRequestFailed reports that the host got no response at all.
func (c *Coordinator) HTTPRequestFailed(requestID request.ID) bool {
	return c.httpRequests.Resolve(requestID, signaling.HTTPResponse{Failed: true})
}

// fetchPeek issues the SFU participants request and hands the parsed
// snapshot, or nil on failure, to deliver.
func (c *Coordinator) fetchPeek(sfuURL string, proof []byte, members []sfu.GroupMember, deliver func(*sfu.PeekInfo)) error {
	req, err := sfu.NewPeekRequest(sfuURL, proof)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "fetchPeek",
			"sfu_url":  sfuURL,
			"error":    err.Error(),
		}).Error("Cannot build peek request")
		return err
	}

	c.sendHTTPRequest(req, func(resp signaling.HTTPResponse) {
		info, err := sfu.ParsePeekResponse(resp, members)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "fetchPeek",
				"sfu_url":  sfuURL,
				"error":    err.Error(),
			}).Warn("Peek failed")
			deliver(nil)
			return
		}
		deliver(info)
	})
	return nil
}

// PeekGroupCall fetches the membership of a group call without joining
// it. handler receives the snapshot, or nil when the peek failed. The
// returned id can also be resolved directly with HandlePeekResponse.
func (c *Coordinator) PeekGroupCall(sfuURL string, proof []byte, members []sfu.GroupMember, handler request.Handler[*sfu.PeekInfo]) (request.ID, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}

	id := c.peeks.Add(handler)
	err := c.fetchPeek(sfuURL, proof, members, func(info *sfu.PeekInfo) {
		c.peeks.Resolve(id, info)
	})
	if err != nil {
		c.peeks.Abandon(id)
		return 0, err
	}
	return id, nil
}

// HandlePeekResponse resolves a peek issued by PeekGroupCall. It returns
// false for unknown or already resolved ids.
func (c *Coordinator) HandlePeekResponse(requestID request.ID, info *sfu.PeekInfo) bool {
	return c.peeks.Resolve(requestID, info)
}
