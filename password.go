package accounts

import (
	"errors"
	"fmt"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordSpecialChars is the set a password must draw at least one
// character from
const PasswordSpecialChars = `!@#$%^&*(),.?":{}|<>`

// bcrypt truncates nothing, it rejects inputs over 72 bytes outright, so
// the strength policy has to cap length at the same boundary
const maxPasswordBytes = 72

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash is an unguessable placeholder credential, used when
// auto-provisioning externally authenticated accounts
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}

// ValidatePasswordStrength enforces the registration and reset policy:
// 8 to 72 bytes with one uppercase, one lowercase, one digit, and one
// special character.
func ValidatePasswordStrength(password string) error {
	err := validation.Validate(password,
		validation.Required,
		validation.Length(8, 0),
		validation.By(maxByteLength(maxPasswordBytes)),
		validation.By(containsClass(unicode.IsUpper, "must contain at least one uppercase letter")),
		validation.By(containsClass(unicode.IsLower, "must contain at least one lowercase letter")),
		validation.By(containsClass(unicode.IsDigit, "must contain at least one digit")),
		validation.By(containsAnyOf(PasswordSpecialChars, "must contain at least one special character")),
	)

	if err != nil {
		return NewWeakPasswordError(err.Error())
	}

	return nil
}

// maxByteLength bounds the raw byte length, not the rune count; multi
// byte characters count against the limit the same way bcrypt sees them
func maxByteLength(max int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > max {
			return fmt.Errorf("the length must be no more than %d bytes", max)
		}
		return nil
	}
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func containsClass(class func(rune) bool, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		for _, r := range s {
			if class(r) {
				return nil
			}
		}
		return errors.New(message)
	}
}

func containsAnyOf(set, message string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		for _, r := range s {
			for _, c := range set {
				if r == c {
					return nil
				}
			}
		}
		return errors.New(message)
	}
}

// ValidateEmailAddress checks an email is syntactically plausible and
// returns a validation-category error otherwise.
func ValidateEmailAddress(email string) error {
	if err := validation.Validate(email, validation.Required, validation.Length(3, 254), is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email address").
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}
