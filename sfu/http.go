package sfu

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/signaling"
)

// ParticipantsPath is appended to the SFU url to peek a conference.
const ParticipantsPath = "/v1/conference/participants"

var (
	// ErrPeekFailed indicates the host could not complete the HTTP request
	// or the SFU answered with an unexpected status.
	ErrPeekFailed = errors.New("peek request failed")
	// ErrMalformedPeekResponse indicates a response body that is not a
	// participants document.
	ErrMalformedPeekResponse = errors.New("malformed peek response")
	// ErrMissingProof indicates a peek without a membership proof.
	ErrMissingProof = errors.New("missing membership proof")
)

type participantsResponse struct {
	ConferenceID string        `json:"conferenceId"`
	Creator      string        `json:"creator,omitempty"`
	MaxDevices   *uint32       `json:"maxDevices,omitempty"`
	Participants []participant `json:"participants"`
}

type participant struct {
	OpaqueUserID string `json:"opaqueUserId"`
	DemuxID      uint32 `json:"demuxId"`
}

// NewPeekRequest builds the participants request for the conference served
// at sfuURL, authorized by the membership proof.
func NewPeekRequest(sfuURL string, proof []byte) (signaling.HTTPRequest, error) {
	if len(proof) == 0 {
		return signaling.HTTPRequest{}, ErrMissingProof
	}
	return signaling.HTTPRequest{
		Method: signaling.HTTPMethodGet,
		URL:    strings.TrimRight(sfuURL, "/") + ParticipantsPath,
		Headers: []signaling.HTTPHeader{
			{Name: "Authorization", Value: "Basic " + base64.StdEncoding.EncodeToString(proof)},
		},
	}, nil
}

// ParsePeekResponse converts the host's HTTP response into a PeekInfo.
// Participants are matched to members by opaque member id; unknown
// participants still count as devices but are not reported as members.
// A 404 means no call is in progress and yields an empty PeekInfo.
func ParsePeekResponse(resp signaling.HTTPResponse, members []GroupMember) (*PeekInfo, error) {
	if resp.Failed {
		return nil, fmt.Errorf("%w: no response", ErrPeekFailed)
	}
	switch {
	case resp.Status == http.StatusNotFound:
		return EmptyPeekInfo(), nil
	case resp.Status < 200 || resp.Status > 299:
		return nil, fmt.Errorf("%w: status %d", ErrPeekFailed, resp.Status)
	}

	var doc participantsResponse
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPeekResponse, err)
	}

	byMemberID := make(map[string]uuid.UUID, len(members))
	for _, m := range members {
		byMemberID[hex.EncodeToString(m.MemberID)] = m.UserID
	}
	lookup := func(opaque string) (uuid.UUID, bool) {
		user, ok := byMemberID[strings.ToLower(opaque)]
		return user, ok
	}

	seen := make(map[uuid.UUID]bool)
	joined := make([]uuid.UUID, 0, len(doc.Participants))
	unknown := 0
	for _, p := range doc.Participants {
		user, ok := lookup(p.OpaqueUserID)
		if !ok {
			unknown++
			continue
		}
		if !seen[user] {
			seen[user] = true
			joined = append(joined, user)
		}
	}

	var creator *uuid.UUID
	if user, ok := lookup(doc.Creator); ok {
		creator = &user
	}

	logrus.WithFields(logrus.Fields{
		"function":        "ParsePeekResponse",
		"era_id":          doc.ConferenceID,
		"device_count":    len(doc.Participants),
		"unknown_members": unknown,
	}).Debug("Parsed peek response")

	return NewPeekInfo(joined, creator, doc.ConferenceID, doc.MaxDevices, uint32(len(doc.Participants))), nil
}
