package entity

// Session is a server-side login session. RefreshToken holds the only
// refresh token currently accepted for it; rotated tokens are rejected.
type Session struct {
	ID           string   `json:"id"`
	UserID       int64    `json:"user_id"`
	Roles        []string `json:"roles"`
	RefreshToken string   `json:"refresh_token"`
}
