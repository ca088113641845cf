package auth

import (
	"context"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// FirebaseVerifier checks Firebase ID tokens with the Admin SDK.
type FirebaseVerifier struct {
	client *firebaseauth.Client
}

func NewFirebaseVerifier(client *firebaseauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Principal, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	email, _ := token.Claims["email"].(string)
	return &Principal{
		SubjectID:   token.UID,
		Email:       email,
		TokenExpiry: time.Unix(token.Expires, 0),
	}, nil
}
