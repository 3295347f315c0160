// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package protocol

// Peer-facing rejection codes.
const (
	RejectUserRejected     = 4001
	RejectUnauthorized     = 4100
	RejectUnsupported      = 4200
	RejectInvalidInput     = 4300
	RejectAlreadyDisplayed = 4301
	RejectSessionClosed    = 4302
)

// ErrorResponse is a structured rejection sent to the peer.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Reject builds an ErrorResponse with the default message for code.
func Reject(code int) ErrorResponse {
	return ErrorResponse{Code: code, Message: rejectMessages[code]}
}

var rejectMessages = map[int]string{
	RejectUserRejected:     "User rejected the request",
	RejectUnauthorized:     "Unauthorized",
	RejectUnsupported:      "Unsupported method",
	RejectInvalidInput:     "Invalid input",
	RejectAlreadyDisplayed: "Another request is already being displayed",
	RejectSessionClosed:    "Session closed",
}
