package gateway

import (
	"strings"
)

// Policy decides what happens to a second request of a kind already pending.
type Policy int

const (
	PolicyReject = Policy(0) // Fail the second request with ErrProtocolViolation.
	PolicyQueue  = Policy(1) // Serialize the second request behind the first.
)

func (p Policy) String() string {
	switch p {
	case PolicyReject:
		return "reject"
	case PolicyQueue:
		return "queue"
	}
	return f("Policy(%d)", int(p))
}

// ParsePolicy parses "reject" or "queue".
func ParsePolicy(name string) (p Policy, err error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "reject":
		p = PolicyReject
	case "queue":
		p = PolicyQueue
	default:
		err = ErrPolicyInvalid
	}
	return
}
