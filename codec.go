package accounts

import (
	"encoding/base64"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const textCodeMalformedUID = "MALFORMED_UID"

// EncodeUID encodes an account id into a URL-safe string suitable for use
// as a path segment in emailed links. The encoding is reversible and
// carries no cryptographic guarantees by itself.
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID reverses EncodeUID. It returns a typed failure for any
// malformed input, never panics on untrusted data.
func DecodeUID(raw string) (uuid.UUID, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed account identifier").
			WithTextCode(textCodeMalformedUID).
			WithCode(goerrors.CodeBadRequest)
	}

	id, err := uuid.Parse(string(decoded))
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed account identifier").
			WithTextCode(textCodeMalformedUID).
			WithCode(goerrors.CodeBadRequest)
	}

	return id, nil
}
