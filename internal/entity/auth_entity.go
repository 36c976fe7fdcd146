package entity

type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	User         User   `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenClaims is what the auth gate extracts from a verified token.
type TokenClaims struct {
	UserId       int64  `json:"userId,string"`
	SubjectLabel string `json:"subjectLabel"`
	TokenType    string `json:"tokenType"`
}
