package grpcclient

import (
	"context"
	"errors"

	"google.golang.org/grpc"
)

// AuthClient wraps the external session service. It is the only component
// that sees the opaque identity token.
type AuthClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthClient constructs the wrapper around an established connection.
func NewAuthClient(cc grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{cc: cc}
}

type validateTokenRequest struct {
	Token string `json:"token"`
}

type validateTokenResponse struct {
	Valid  bool  `json:"valid"`
	UserID int64 `json:"user_id"`
}

// ValidateToken verifies the identity token and returns the authenticated
// user id.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (int64, error) {
	var resp validateTokenResponse
	if err := a.cc.Invoke(ctx, "/auth.SessionService/ValidateToken", &validateTokenRequest{Token: token}, &resp); err != nil {
		return 0, err
	}
	if !resp.Valid || resp.UserID == 0 {
		return 0, errors.New("invalid token")
	}
	return resp.UserID, nil
}
