package auth

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 12

	// MinPasswordLength is counted in characters, not bytes.
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

var (
	ErrPasswordTooShort = errors.New("a palavra-passe deve ter pelo menos 6 caracteres")
	ErrPasswordTooLong  = errors.New("a palavra-passe é demasiado longa")
	ErrPasswordMismatch = errors.New("password does not match")
)

// dummyHash is compared against when the email is unknown so a failed login
// costs the same whether or not the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("treinoia-no-such-user"), bcryptCost)

// CheckPasswordPolicy reports why password cannot be used, or nil.
func CheckPasswordPolicy(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

func HashPassword(password string) (string, error) {
	if err := CheckPasswordPolicy(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword returns ErrPasswordMismatch for a wrong password and any
// other error for a corrupt hash.
func ComparePassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// BurnPasswordCheck spends one bcrypt comparison and discards the result.
func BurnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
