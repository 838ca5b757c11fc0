package providers

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"google.golang.org/api/option"
)

var _ AuthProvider = &FirebaseAuthProvider{}

// FirebaseAuthProvider accepts Firebase ID tokens as JOIN tokens.
type FirebaseAuthProvider struct {
	auth *auth.Client
}

type FirebaseOptions struct {
	ProjectID string
	// APIKey or CredentialsFile authenticate the verifier; ID token
	// verification works with neither as long as ProjectID is set.
	APIKey          string
	CredentialsFile string
}

func NewFirebaseAuthProvider(ctx context.Context, opts FirebaseOptions) (*FirebaseAuthProvider, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %v", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Auth client: %v", err)
	}

	return &FirebaseAuthProvider{
		auth: client,
	}, nil
}

func (p *FirebaseAuthProvider) VerifyToken(ctx context.Context, token string) (*TokenClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	verified, err := p.auth.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &TokenClaims{
		UID:     verified.UID,
		Expires: time.Unix(verified.Expires, 0),
	}, nil
}
