package grpcclient

import (
	"context"

	"google.golang.org/grpc"
)

// User is the directory view of an employee: identity, display name and the
// avatar reference served by the external static store.
type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// DirectoryClient wraps the external user-directory service.
type DirectoryClient struct {
	cc grpc.ClientConnInterface
}

// NewDirectoryClient constructs the wrapper.
func NewDirectoryClient(cc grpc.ClientConnInterface) *DirectoryClient {
	return &DirectoryClient{cc: cc}
}

type listUsersRequest struct{}

type listUsersResponse struct {
	Users []User `json:"users"`
}

// ListUsers returns every chat-eligible user in the directory.
func (d *DirectoryClient) ListUsers(ctx context.Context) ([]User, error) {
	var resp listUsersResponse
	if err := d.cc.Invoke(ctx, "/directory.UserDirectory/ListUsers", &listUsersRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

type bulkUsersRequest struct {
	IDs []int64 `json:"ids"`
}

// BulkUsers fetches multiple users in one call.
func (d *DirectoryClient) BulkUsers(ctx context.Context, ids []int64) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}
	var resp listUsersResponse
	if err := d.cc.Invoke(ctx, "/directory.UserDirectory/BulkUsers", &bulkUsersRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}
