package signaling

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
)

// CallID identifies one one-to-one call attempt. It is generated by the
// caller and carried on every signaling message for that call.
type CallID uint64

// NewCallID returns a random non-zero CallID.
func NewCallID() (CallID, error) {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("failed to generate call id: %w", err)
		}
		if id := CallID(binary.BigEndian.Uint64(buf[:])); id != 0 {
			return id, nil
		}
	}
}

// String formats the id the way it appears in logs.
func (id CallID) String() string {
	return fmt.Sprintf("0x%016x", uint64(id))
}

// Format renders the id together with a remote device id.
func (id CallID) Format(deviceID DeviceID) string {
	return fmt.Sprintf("%s-%d", id, deviceID)
}

// DeviceID identifies one device of a user. Valid remote device ids start at 1.
type DeviceID uint32

// Validate reports ErrInvalidDeviceID for ids below 1.
func (d DeviceID) Validate() error {
	if d < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidDeviceID, d)
	}
	return nil
}

// CallMediaType is how a call is proposed to originate.
type CallMediaType int32

const (
	// CallMediaTypeAudio starts the call audio only.
	CallMediaTypeAudio CallMediaType = iota
	// CallMediaTypeVideo starts the call with audio and video.
	CallMediaTypeVideo
)

// String returns the string representation of the media type.
func (t CallMediaType) String() string {
	switch t {
	case CallMediaTypeAudio:
		return "Audio"
	case CallMediaTypeVideo:
		return "Video"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// ParseCallMediaType decodes a raw media type tag.
func ParseCallMediaType(tag int32) (CallMediaType, error) {
	switch CallMediaType(tag) {
	case CallMediaTypeAudio, CallMediaTypeVideo:
		return CallMediaType(tag), nil
	default:
		return 0, fmt.Errorf("%w: call media type %d", ErrUnrecognizedTag, tag)
	}
}

// BandwidthMode is a coarse hint constraining media bitrate targets.
type BandwidthMode int32

const (
	// BandwidthModeVeryLow is intended for audio only over severely
	// constrained networks.
	BandwidthModeVeryLow BandwidthMode = iota
	// BandwidthModeLow is intended for low bitrate video calls.
	BandwidthModeLow
	// BandwidthModeNormal applies no specific constraint.
	BandwidthModeNormal
)

// String returns the string representation of the bandwidth mode.
func (m BandwidthMode) String() string {
	switch m {
	case BandwidthModeVeryLow:
		return "VeryLow"
	case BandwidthModeLow:
		return "Low"
	case BandwidthModeNormal:
		return "Normal"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(m))
	}
}

// MaxBitrateBps returns the send bitrate ceiling for the mode.
func (m BandwidthMode) MaxBitrateBps() uint32 {
	switch m {
	case BandwidthModeVeryLow:
		return 50_000
	case BandwidthModeLow:
		return 300_000
	default:
		return 2_000_000
	}
}

// ParseBandwidthMode decodes a raw bandwidth mode tag.
func ParseBandwidthMode(tag int32) (BandwidthMode, error) {
	switch BandwidthMode(tag) {
	case BandwidthModeVeryLow, BandwidthModeLow, BandwidthModeNormal:
		return BandwidthMode(tag), nil
	default:
		return 0, fmt.Errorf("%w: bandwidth mode %d", ErrUnrecognizedTag, tag)
	}
}

// ParseBandwidthModeName decodes the textual form used in configuration
// files: "very_low", "low" or "normal".
func ParseBandwidthModeName(name string) (BandwidthMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "very_low", "verylow", "very-low":
		return BandwidthModeVeryLow, nil
	case "low":
		return BandwidthModeLow, nil
	case "normal", "":
		return BandwidthModeNormal, nil
	default:
		return 0, fmt.Errorf("%w: bandwidth mode %q", ErrUnrecognizedTag, name)
	}
}

// HangupType is the kind of hangup message. The values match the wire tags.
type HangupType int32

const (
	// HangupTypeNormal is a hangup on the sending device.
	HangupTypeNormal HangupType = iota
	// HangupTypeAccepted means the call was accepted on another device.
	HangupTypeAccepted
	// HangupTypeDeclined means the call was declined on another device.
	HangupTypeDeclined
	// HangupTypeBusy means another device was busy.
	HangupTypeBusy
	// HangupTypeNeedPermission means the receiver must grant permission first.
	HangupTypeNeedPermission
)

// String returns the string representation of the hangup type.
func (t HangupType) String() string {
	switch t {
	case HangupTypeNormal:
		return "Normal"
	case HangupTypeAccepted:
		return "Accepted"
	case HangupTypeDeclined:
		return "Declined"
	case HangupTypeBusy:
		return "Busy"
	case HangupTypeNeedPermission:
		return "NeedPermission"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// ParseHangupType decodes a raw hangup type tag.
func ParseHangupType(tag int32) (HangupType, error) {
	switch HangupType(tag) {
	case HangupTypeNormal, HangupTypeAccepted, HangupTypeDeclined, HangupTypeBusy, HangupTypeNeedPermission:
		return HangupType(tag), nil
	default:
		return 0, fmt.Errorf("%w: hangup type %d", ErrUnrecognizedTag, tag)
	}
}

// Hangup is a hangup message. DeviceID names the other device the hangup
// refers to; it is ignored for HangupTypeNormal.
type Hangup struct {
	Type     HangupType
	DeviceID DeviceID
}

// String returns the string representation of the hangup.
func (h Hangup) String() string {
	if h.Type == HangupTypeNormal {
		return "Normal/None"
	}
	return fmt.Sprintf("%s/%d", h.Type, h.DeviceID)
}

// HTTPMethod is the method of an outbound HTTP request.
type HTTPMethod int32

const (
	// HTTPMethodGet is GET.
	HTTPMethodGet HTTPMethod = iota
	// HTTPMethodPut is PUT.
	HTTPMethodPut
	// HTTPMethodPost is POST.
	HTTPMethodPost
	// HTTPMethodDelete is DELETE.
	HTTPMethodDelete
)

// String returns the HTTP verb.
func (m HTTPMethod) String() string {
	switch m {
	case HTTPMethodGet:
		return "GET"
	case HTTPMethodPut:
		return "PUT"
	case HTTPMethodPost:
		return "POST"
	case HTTPMethodDelete:
		return "DELETE"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(m))
	}
}

// ParseHTTPMethod decodes a raw HTTP method tag.
func ParseHTTPMethod(tag int32) (HTTPMethod, error) {
	switch HTTPMethod(tag) {
	case HTTPMethodGet, HTTPMethodPut, HTTPMethodPost, HTTPMethodDelete:
		return HTTPMethod(tag), nil
	default:
		return 0, fmt.Errorf("%w: http method %d", ErrUnrecognizedTag, tag)
	}
}

// HTTPHeader is one request header.
type HTTPHeader struct {
	Name  string
	Value string
}

// HTTPRequest is an HTTP request the host must perform on behalf of the core.
type HTTPRequest struct {
	Method  HTTPMethod
	URL     string
	Headers []HTTPHeader
	Body    []byte
}

// HTTPResponse is the outcome of an HTTPRequest. Failed is set when the host
// could not obtain any response at all.
type HTTPResponse struct {
	Status int
	Body   []byte
	Failed bool
}
