package firebase

import (
	"context"
	"fmt"
	"strings"
)

const DevTokenPrefix = "dev-"

// DevTokenVerifier accepts "dev-<uid>" bearer tokens. It is only wired with the in-memory
// store in development, where there is no Firebase project to verify against.
type DevTokenVerifier struct{}

func (DevTokenVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	uid := strings.TrimPrefix(token, DevTokenPrefix)
	if uid == token || uid == "" {
		return "", fmt.Errorf("not a development token")
	}
	return uid, nil
}
