// Package common contains shared constants and sentinel errors used across
// GophNotes components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the access
// token on outbound requests.
const AccessTokenHeaderName = "access_token"

// UserAgentHeaderName is the gRPC metadata key the client uses to label its
// session (shown in session listings).
const UserAgentHeaderName = "x-gophnotes-agent"
