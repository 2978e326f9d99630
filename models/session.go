package models

// SessionContext carries the authenticated user's identity and credential.
//
// It is built once after login by the authentication collaborator and
// injected into every component at construction. Nothing in this module
// reads identity or credentials from ambient storage.
type SessionContext struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}
