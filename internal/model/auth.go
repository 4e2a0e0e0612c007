package model

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// RegisterRequest represents the request body for POST /api/register
type RegisterRequest struct {
	UID      string `json:"uid" validate:"required,max=128"`
	Email    string `json:"email" validate:"omitempty,email"`
	Name     string `json:"name" validate:"omitempty,max=128"`
	PhotoURL string `json:"photoUrl" validate:"omitempty,url"`
	IDToken  string `json:"idToken"`
}

// RegisteredUser is the user view returned by auth endpoints
type RegisteredUser struct {
	UID        string `json:"uid"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	PhotoURL   string `json:"photoUrl"`
	TokenCount int    `json:"tokenCount"`
	Role       string `json:"role,omitempty"`
}

// AuthResponse is returned by register
type AuthResponse struct {
	Message      string         `json:"message"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         RegisteredUser `json:"user"`
}

// RefreshRequest represents the request body for POST /api/refresh
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshResponse carries a fresh access token
type RefreshResponse struct {
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
}

// VerifyRequest is the optional body of POST /api/verify
type VerifyRequest struct {
	AccessToken string `json:"access_token"`
}

// VerifyResponse is returned by /api/verify
type VerifyResponse struct {
	Message string         `json:"message"`
	User    RegisteredUser `json:"user"`
}
