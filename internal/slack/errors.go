package slack

import (
	"errors"
	"fmt"
)

var (
	// ErrTeamNotFound is returned when a team has not completed authorization.
	ErrTeamNotFound = errors.New("team not found")

	// ErrVerificationMismatch is returned when an inbound event carries the wrong verification token.
	ErrVerificationMismatch = errors.New("invalid slack verification token")
)

// APIError reports a failed Web API call: a non-2xx status, an undecodable
// body, or a response with ok=false.
type APIError struct {
	Method     string
	StatusCode int
	Code       string // "error" field of the response, if any
	Err        error  // transport or decode failure
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("slack %s: %v", e.Method, e.Err)
	case e.Code != "":
		return fmt.Sprintf("slack %s: status %d: %s", e.Method, e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("slack %s: status %d", e.Method, e.StatusCode)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// OAuthExchangeError reports a failed OAuth code exchange. No team record is
// written when it occurs.
type OAuthExchangeError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *OAuthExchangeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("oauth exchange failed (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("oauth exchange failed: %s", e.Reason)
}

func (e *OAuthExchangeError) Unwrap() error {
	return e.Err
}

// DeliveryError reports a reply that could not be posted.
type DeliveryError struct {
	TeamID  string
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to team %s channel %s: %v", e.TeamID, e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
