package group

import (
	"fmt"

	"github.com/opd-ai/callcore/engine"
)

// EndCategory groups end reasons by what the application should tell the
// user.
type EndCategory int

const (
	// CategoryNormal is a requested or server-side disconnect.
	CategoryNormal EndCategory = iota
	// CategoryMembership means the user may not be in the call.
	CategoryMembership
	// CategoryNetwork means connectivity to the SFU failed.
	CategoryNetwork
	// CategoryClient means the local media stack failed.
	CategoryClient
	// CategoryCapacity means the call is full.
	CategoryCapacity
)

// String returns the string representation of the category.
func (c EndCategory) String() string {
	switch c {
	case CategoryNormal:
		return "Normal"
	case CategoryMembership:
		return "Membership"
	case CategoryNetwork:
		return "Network"
	case CategoryClient:
		return "Client"
	case CategoryCapacity:
		return "Capacity"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Category classifies an end reason. Unknown reasons count as client
// failures.
func Category(reason engine.GroupEndReason) EndCategory {
	switch reason {
	case engine.DeviceExplicitlyDisconnected, engine.ServerExplicitlyDisconnected:
		return CategoryNormal
	case engine.DeviceListError, engine.MembershipProofDenied, engine.MembershipProofExpired:
		return CategoryMembership
	case engine.SfuClientFailedToJoin, engine.IceFailedWhileConnecting,
		engine.IceFailedAfterConnected, engine.ServerChangedDemuxID:
		return CategoryNetwork
	case engine.HasMaxDevices, engine.CallManagerIsBusy:
		return CategoryCapacity
	default:
		return CategoryClient
	}
}

// Failed reports whether the call ended for any reason other than a
// requested disconnect.
func Failed(reason engine.GroupEndReason) bool {
	return Category(reason) != CategoryNormal
}
