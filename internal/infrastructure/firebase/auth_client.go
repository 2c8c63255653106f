package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

// FirebaseAuthClient verifies Firebase ID tokens and looks up display names.
type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}

func (f *FirebaseAuthClient) DisplayName(ctx context.Context, uid string) (string, error) {
	record, err := f.client.GetUser(ctx, uid)
	if err != nil {
		return "", err
	}
	if record.DisplayName != "" {
		return record.DisplayName, nil
	}
	return record.Email, nil
}
