package backend

import (
	"context"
	"net/http"
	"time"
)

// User is an account as returned by the service.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Company   string    `json:"company"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SignUpParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
	Company  string `json:"company,omitempty"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Session is an access token. The handle does not keep it; pass
// AccessToken to WithToken.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// SignUp registers a pending account.
func (c *Client) SignUp(ctx context.Context, p SignUpParams) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, p, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// RequestCode asks for a new verification code to be sent to email.
func (c *Client) RequestCode(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/otp", nil, map[string]string{"email": email}, nil)
}

// VerifyCode redeems a verification code.
func (c *Client) VerifyCode(ctx context.Context, email, code string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/verify", nil, map[string]string{"email": email, "code": code}, nil)
}

// SignIn exchanges the credentials of an approved account for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", nil, body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
