package usecase

import (
	"golang.org/x/crypto/bcrypt"

	"telechat/internal/entity"
)

// Principal is the narrow sign-in view of a user: exactly what the
// token layer needs and nothing else. The User record itself stays a
// plain data row.
type Principal struct {
	Identity       int64
	CredentialHash string
	SubjectLabel   string
	Enabled        bool
}

func PrincipalOf(u entity.User) Principal {
	return Principal{
		Identity:       u.Id,
		CredentialHash: u.Password,
		SubjectLabel:   u.Name,
		Enabled:        u.Enabled,
	}
}

func (p Principal) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.CredentialHash), []byte(password)) == nil
}
