package callcore

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/callcore/engine"
	"github.com/opd-ai/callcore/group"
	"github.com/opd-ai/callcore/limits"
	"github.com/opd-ai/callcore/request"
	"github.com/opd-ai/callcore/sfu"
	"github.com/opd-ai/callcore/signaling"
)

// mediaFactory returns the shared group media factory, creating it on
// first use.
func (c *Coordinator) mediaFactory() (engine.MediaFactory, error) {
	if c.factory != nil {
		return c.factory, nil
	}
	factory, err := c.eng.CreateMediaFactory()
	if err != nil {
		return nil, err
	}
	c.factory = factory
	return factory, nil
}

// CreateGroupCall opens a group call on the SFU at sfuURL. It returns
// engine.InvalidClientID when the engine cannot allocate the call; the
// host must not proceed in that case.
func (c *Coordinator) CreateGroupCall(groupID []byte, sfuURL string) engine.ClientID {
	if c.isClosed() {
		return engine.InvalidClientID
	}

	factory, err := c.mediaFactory()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "CreateGroupCall",
			"error":    err.Error(),
		}).Error("Failed to create media factory")
		return engine.InvalidClientID
	}

	id, err := c.groups.InsertWith(func(raw uint32) (*group.Session, error) {
		id := engine.ClientID(raw)
		client, err := c.eng.CreateGroupClient(id, groupID, sfuURL, factory)
		if err != nil {
			return nil, err
		}
		return group.New(id, groupID, sfuURL, client, groupEvents{c}, sessionPeeker{c}, c.opts.groupOptions()), nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "CreateGroupCall",
			"sfu_url":  sfuURL,
			"error":    err.Error(),
		}).Error("Failed to create group client")
		return engine.InvalidClientID
	}
	return engine.ClientID(id)
}

// GroupCall returns the open group call with the given id. Commands such
// as Connect, Join and SetVideoRenderer are issued on the session.
func (c *Coordinator) GroupCall(id engine.ClientID) (*group.Session, bool) {
	return c.groups.Get(uint32(id))
}

// SetMembershipProof answers RequestMembershipProof for the group call id.
func (c *Coordinator) SetMembershipProof(id engine.ClientID, proof []byte) error {
	s, err := c.groupCall("SetMembershipProof", id)
	if err != nil {
		return err
	}
	return s.SetMembershipProof(proof)
}

// SetGroupMembers answers RequestGroupMembers for the group call id.
func (c *Coordinator) SetGroupMembers(id engine.ClientID, members []sfu.GroupMember) error {
	s, err := c.groupCall("SetGroupMembers", id)
	if err != nil {
		return err
	}
	return s.SetGroupMembers(members)
}

func (c *Coordinator) groupCall(function string, id engine.ClientID) (*group.Session, error) {
	s, ok := c.GroupCall(id)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function":  function,
			"client_id": id,
		}).Warn("No open group call")
		return nil, ErrUnknownGroupCall
	}
	return s, nil
}

// GroupCalls returns the ids of every open group call in ascending order.
func (c *Coordinator) GroupCalls() []engine.ClientID {
	raw := c.groups.IDs()
	ids := make([]engine.ClientID, len(raw))
	for i, id := range raw {
		ids[i] = engine.ClientID(id)
	}
	return ids
}

// ReceivedCallMessage delivers an opaque group call message to every open
// group call. Messages older than MaxOfferAge are dropped.
func (c *Coordinator) ReceivedCallMessage(sender uuid.UUID, senderDevice signaling.DeviceID, message []byte, age time.Duration) error {
	entry := logrus.WithFields(logrus.Fields{
		"function":  "ReceivedCallMessage",
		"sender":    sender,
		"device_id": senderDevice,
		"age":       age,
	})
	if err := senderDevice.Validate(); err != nil {
		entry.Error("Call message with invalid sender device")
		return err
	}
	if len(message) == 0 {
		entry.Error("Empty call message")
		return signaling.ErrEmptyPayload
	}
	if err := limits.ValidateCallMessage(message); err != nil {
		entry.WithField("error", err.Error()).Error("Oversized call message")
		return err
	}
	if age > c.opts.MaxOfferAge {
		entry.Warn("Dropping stale call message")
		return ErrStaleMessage
	}

	c.groups.Each(func(_ uint32, s *group.Session) {
		if err := s.HandleCallMessage(sender, senderDevice, message); err != nil {
			entry.WithFields(logrus.Fields{
				"client_id": s.ID(),
				"error":     err.Error(),
			}).Warn("Group call rejected call message")
		}
	})
	return nil
}

// groupEvents forwards group session notifications to the host.
type groupEvents struct {
	c *Coordinator
}

func (g groupEvents) RequestMembershipProof(s *group.Session) {
	g.c.observer.RequestMembershipProof(s.ID())
}

func (g groupEvents) RequestGroupMembers(s *group.Session) {
	g.c.observer.RequestGroupMembers(s.ID())
}

func (g groupEvents) OnConnectionStateChanged(s *group.Session) {
	g.c.observer.OnGroupConnectionStateChanged(s.ID(), s.ConnectionState())
}

func (g groupEvents) OnJoinStateChanged(s *group.Session) {
	g.c.observer.OnGroupJoinStateChanged(s.ID(), s.JoinState())
}

func (g groupEvents) OnRemoteDevicesChanged(s *group.Session) {
	g.c.observer.OnRemoteDevicesChanged(s.ID(), s.RemoteDevices())
}

func (g groupEvents) OnIncomingVideoTrack(s *group.Session, device *group.RemoteDeviceState) {
	g.c.observer.OnIncomingVideoTrack(s.ID(), device)
}

func (g groupEvents) OnPeekChanged(s *group.Session) {
	g.c.observer.OnPeekChanged(s.ID(), s.PeekInfo())
}

func (g groupEvents) OnEnded(s *group.Session, reason engine.GroupEndReason) {
	g.c.observer.OnGroupEnded(s.ID(), reason)
}

// sessionPeeker runs a group session's peeks over the host's HTTP leg.
type sessionPeeker struct {
	c *Coordinator
}

func (p sessionPeeker) RequestGroupPeek(id engine.ClientID, requestID request.ID, sfuURL string, proof []byte, members []sfu.GroupMember) {
	deliver := func(info *sfu.PeekInfo) {
		s, ok := p.c.GroupCall(id)
		if !ok {
			logrus.WithFields(logrus.Fields{
				"function":   "RequestGroupPeek",
				"client_id":  id,
				"request_id": requestID,
			}).Debug("Peek response for a closed group call")
			return
		}
		s.HandlePeekResponse(requestID, info)
	}
	if err := p.c.fetchPeek(sfuURL, proof, members, deliver); err != nil {
		deliver(nil)
	}
}
