package api

import (
	"context"
	"io"
	"net/http"

	"github.com/liftme/liftme-go/internal/entities"
)

type RegisterRequest struct {
	Phone     string        `json:"phone" validate:"required"`
	Email     string        `json:"email,omitempty" validate:"omitempty,email"`
	Password  string        `json:"password" validate:"required,min=6"`
	Role      entities.Role `json:"role" validate:"required,oneof=CUSTOMER DRIVER"`
	FirstName string        `json:"firstName" validate:"required"`
	LastName  string        `json:"lastName" validate:"required"`
}

type LoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Register creates an account and returns the issued bearer token. Storing it
// is the session manager's job, not the client's.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) Login(ctx context.Context, phone, password string) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", LoginRequest{Phone: phone, Password: password}, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Me returns the current user. Avatar paths come back server-relative and are
// resolved against the gateway host here.
func (c *Client) Me(ctx context.Context) (entities.User, error) {
	var user entities.User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return entities.User{}, err
	}
	user.AvatarURL = c.FileURL(user.AvatarURL)
	return user, nil
}

type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty" validate:"omitempty,email"`
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (entities.User, error) {
	var user entities.User
	if err := c.do(ctx, http.MethodPut, "/auth/me", update, &user); err != nil {
		return entities.User{}, err
	}
	user.AvatarURL = c.FileURL(user.AvatarURL)
	return user, nil
}

type uploadResponse struct {
	URL string `json:"url"`
}

// UploadAvatar posts the avatar image and returns its absolute URL.
func (c *Client) UploadAvatar(ctx context.Context, fileName string, file io.Reader) (string, error) {
	var resp uploadResponse
	if err := c.doMultipart(ctx, "/files/avatar", nil, "file", fileName, file, &resp); err != nil {
		return "", err
	}
	return c.FileURL(resp.URL), nil
}
