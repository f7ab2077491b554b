package user

// CredentialsRequest is the body of POST /api/v1/users/credentials.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
