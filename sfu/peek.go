// Package sfu holds the group-call membership snapshot (PeekInfo) and the
// HTTP leg used to obtain it from a Selective Forwarding Unit.
//
// The call core never talks to the SFU itself. NewPeekRequest builds the
// request the host performs, and ParsePeekResponse turns the host's answer
// into a PeekInfo.
package sfu

import (
	"slices"

	"github.com/google/uuid"
)

// GroupMember maps a user identity to the opaque member id the SFU reports
// for that user.
type GroupMember struct {
	UserID   uuid.UUID
	MemberID []byte
}

// PeekInfo is a snapshot of group-call membership. It is immutable: every
// peek response or push notification produces a new value, and accessors
// return copies.
type PeekInfo struct {
	joinedMembers []uuid.UUID
	creator       *uuid.UUID
	eraID         string
	maxDevices    *uint32
	deviceCount   uint32
}

// NewPeekInfo builds a snapshot. A nil creator or maxDevices and an empty
// eraID mean the value is unknown.
func NewPeekInfo(joined []uuid.UUID, creator *uuid.UUID, eraID string, maxDevices *uint32, deviceCount uint32) *PeekInfo {
	info := &PeekInfo{
		joinedMembers: slices.Clone(joined),
		eraID:         eraID,
		deviceCount:   deviceCount,
	}
	if creator != nil {
		c := *creator
		info.creator = &c
	}
	if maxDevices != nil {
		m := *maxDevices
		info.maxDevices = &m
	}
	return info
}

// EmptyPeekInfo is the snapshot of a group with no call in progress.
func EmptyPeekInfo() *PeekInfo {
	return &PeekInfo{}
}

// JoinedMembers returns the users currently in the call.
func (p *PeekInfo) JoinedMembers() []uuid.UUID {
	if p == nil {
		return nil
	}
	return slices.Clone(p.joinedMembers)
}

// Creator returns the user who started the call, if known.
func (p *PeekInfo) Creator() (uuid.UUID, bool) {
	if p == nil || p.creator == nil {
		return uuid.Nil, false
	}
	return *p.creator, true
}

// EraID identifies the SFU session. It is empty when no call is running.
func (p *PeekInfo) EraID() string {
	if p == nil {
		return ""
	}
	return p.eraID
}

// MaxDevices returns the device cap of the call, if known.
func (p *PeekInfo) MaxDevices() (uint32, bool) {
	if p == nil || p.maxDevices == nil {
		return 0, false
	}
	return *p.maxDevices, true
}

// DeviceCount is the number of devices in the call.
func (p *PeekInfo) DeviceCount() uint32 {
	if p == nil {
		return 0
	}
	return p.deviceCount
}

// Active reports whether a call is in progress.
func (p *PeekInfo) Active() bool {
	return p.EraID() != ""
}

// Full reports whether the call has reached its device cap.
func (p *PeekInfo) Full() bool {
	limit, ok := p.MaxDevices()
	return ok && p.DeviceCount() >= limit
}

// Contains reports whether user is among the joined members.
func (p *PeekInfo) Contains(user uuid.UUID) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.joinedMembers, user)
}
