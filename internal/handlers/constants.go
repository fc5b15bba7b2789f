package handlers

// Common error message constants shared across handlers
const (
	ErrMsgUserNotFound       = "User not found"
	ErrMsgInvalidRequestBody = "Invalid request body"
	ErrMsgInvalidPolicyID    = "Invalid policy ID"
	ErrMsgInvalidUserID      = "Invalid user ID"
	ErrMsgInvalidAgencyID    = "Invalid agency ID"
	ErrMsgUnauthorized       = "Unauthorized"
	ErrMsgUserIDNotFound     = "User ID not found"
)

// API path constants
const (
	AuthAPIBasePath = "/api/v1/auth"
)
