package firebase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevTokenVerifier(t *testing.T) {
	var v DevTokenVerifier
	ctx := context.Background()

	uid, err := v.VerifyToken(ctx, "dev-seller-1")
	require.NoError(t, err)
	assert.Equal(t, "seller-1", uid)

	for _, token := range []string{"", "dev-", "seller-1", "Bearer dev-x"} {
		_, err := v.VerifyToken(ctx, token)
		assert.Error(t, err, token)
	}
}
