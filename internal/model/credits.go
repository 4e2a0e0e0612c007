package model

// TokensResponse reports a user's credit balance
type TokensResponse struct {
	TokenCount int    `json:"tokenCount"`
	UserID     string `json:"userId"`
	Source     string `json:"source"`
}

// AddTokensRequest represents the request body for POST /api/user/tokens/add
type AddTokensRequest struct {
	Tokens *int `json:"tokens" validate:"omitempty,min=1,max=100"`
}

// AddTokensResponse reports the balance after adding credits
type AddTokensResponse struct {
	Message    string `json:"message"`
	TokenCount int    `json:"tokenCount"`
	UserID     string `json:"userId"`
	Source     string `json:"source"`
}

// ProfileResponse represents the user's profile
type ProfileResponse struct {
	UserID     string `json:"userId"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
	TokenCount int    `json:"tokenCount"`
	Source     string `json:"source"`
}
