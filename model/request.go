// file: model/request.go

package model

import "encoding/json"

// LoginRequest defines the payload for user authentication.
// It includes validation tags to ensure data integrity at the entry point.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse carries the short-lived access token and the public user
// fields. The refresh token travels separately as an HTTP-only cookie.
type LoginResponse struct {
	AccessToken string     `json:"accessToken"`
	User        PublicUser `json:"user"`
}

// RefreshResponse carries the new access token after a rotation.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// DispatchRequest is the payload of the single logical dispatch endpoint.
// Args stays raw until the registry validates it against the operation's
// registered schema.
type DispatchRequest struct {
	FunctionName string          `json:"functionName"`
	Args         json.RawMessage `json:"args"`
}
