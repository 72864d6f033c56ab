package accounts_test

import (
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	accounts "github.com/selfserve/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "meets every requirement",
			password: "LongEnough1!",
			wantErr:  false,
		},
		{
			name:     "too short",
			password: "short1!",
			wantErr:  true,
		},
		{
			name:     "long but no uppercase or special",
			password: "longenough1",
			wantErr:  true,
		},
		{
			name:     "missing digit",
			password: "LongEnough!!",
			wantErr:  true,
		},
		{
			name:     "missing special character",
			password: "LongEnough11",
			wantErr:  true,
		},
		{
			name:     "missing lowercase",
			password: "LONGENOUGH1!",
			wantErr:  true,
		},
		{
			name:     "empty",
			password: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := accounts.ValidatePasswordStrength(tt.password)

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			assert.Error(t, err)

			var richErr *goerrors.Error
			assert.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, accounts.TextCodeWeakPassword, richErr.TextCode)
		})
	}
}

func TestValidatePasswordStrengthCapsAtBcryptLimit(t *testing.T) {
	// bcrypt rejects inputs over 72 bytes, so the policy has to reject
	// them first with a validation error instead of a hashing failure
	longest := "Aa1!" + strings.Repeat("x", 68)
	assert.Len(t, longest, 72)
	assert.NoError(t, accounts.ValidatePasswordStrength(longest))

	tooLong := longest + "x"
	err := accounts.ValidatePasswordStrength(tooLong)
	assert.Error(t, err)

	var richErr *goerrors.Error
	assert.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeWeakPassword, richErr.TextCode)

	// the limit counts bytes, not runes
	multibyte := "Aa1!" + strings.Repeat("é", 35)
	err = accounts.ValidatePasswordStrength(multibyte)
	assert.Error(t, err)
	assert.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeWeakPassword, richErr.TextCode)
}

func TestValidatePasswordStrengthErrorsAreIndependent(t *testing.T) {
	first := accounts.ValidatePasswordStrength("short1!")
	second := accounts.ValidatePasswordStrength("longenough1")

	var firstRich, secondRich *goerrors.Error
	assert.True(t, goerrors.As(first, &firstRich))
	assert.True(t, goerrors.As(second, &secondRich))

	// each failure carries its own metadata; a later validation must not
	// rewrite the reason attached to an error already in flight
	assert.NotSame(t, firstRich, secondRich)
	assert.NotEqual(t, firstRich.Metadata["reason"], secondRich.Metadata["reason"])
	assert.Contains(t, firstRich.Metadata["reason"], "length")
}

func TestValidatePasswordStrengthAcceptsEverySpecialChar(t *testing.T) {
	for _, c := range accounts.PasswordSpecialChars {
		password := "LongEnough1" + string(c)
		assert.NoError(t, accounts.ValidatePasswordStrength(password), "special char %q should satisfy the policy", c)
	}
}

func TestValidateStringEquals(t *testing.T) {
	rule := accounts.ValidateStringEquals("secret")

	assert.NoError(t, rule("secret"))
	assert.Error(t, rule("different"))
	assert.Error(t, rule(""))
}

func TestValidateEmailAddress(t *testing.T) {
	assert.NoError(t, accounts.ValidateEmailAddress("pepe.rone@example.com"))
	assert.Error(t, accounts.ValidateEmailAddress(""))
	assert.Error(t, accounts.ValidateEmailAddress("not-an-email"))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := accounts.HashPassword("")
	assert.Error(t, err)
	assert.Equal(t, accounts.ErrNoEmptyString, err)
}
