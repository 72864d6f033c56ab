package accounts

import (
	"fmt"
	"strings"
)

const (
	verificationEmailSubject  = "Verify your email address"
	passwordResetEmailSubject = "Reset your password"
)

// VerificationLink builds the clickable verification URL embedded in the
// signup email. The uid/token pair is the only state the link carries.
func VerificationLink(baseURL, uid, token string) string {
	return fmt.Sprintf("%s/auth/verify-email/%s/%s", strings.TrimRight(baseURL, "/"), uid, token)
}

// PasswordResetLink builds the clickable reset URL for the reset email.
func PasswordResetLink(baseURL, uid, token string) string {
	return fmt.Sprintf("%s/auth/password-reset/%s/%s", strings.TrimRight(baseURL, "/"), uid, token)
}

func verificationEmailBody(link string) string {
	return fmt.Sprintf(`Hello,

Thanks for signing up. Please confirm your email address by visiting the
link below. The link is valid for 24 hours.

%s

If you did not create this account you can ignore this message.
`, link)
}

func passwordResetEmailBody(link string) string {
	return fmt.Sprintf(`Hello,

We received a request to reset the password for your account. Visit the
link below to choose a new password. The link is valid for 24 hours and
can only be used once.

%s

If you did not request a password reset you can ignore this message; your
password has not changed.
`, link)
}
