package service

import "net/http"

// OAuthError is an RFC 6749 protocol error. Code and Description go on the
// wire; Status selects the HTTP response code.
type OAuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *OAuthError) Error() string {
	return e.Code + ": " + e.Description
}

func newOAuthError(code, description string, status int) *OAuthError {
	return &OAuthError{Code: code, Description: description, Status: status}
}

func invalidRequest(description string) *OAuthError {
	return newOAuthError("invalid_request", description, http.StatusBadRequest)
}

func invalidGrant(description string) *OAuthError {
	return newOAuthError("invalid_grant", description, http.StatusBadRequest)
}

func invalidClient(description string) *OAuthError {
	return newOAuthError("invalid_client", description, http.StatusBadRequest)
}

func serverError(description string) *OAuthError {
	return newOAuthError("server_error", description, http.StatusInternalServerError)
}
