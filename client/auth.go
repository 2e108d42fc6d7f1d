package client

import "context"

// AuthService handles login and session introspection.
type AuthService struct {
	c *Client
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session token. The client keeps using
// the returned token for later calls.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var res LoginResult
	if err := s.c.post(ctx, "/api/auth/login", loginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	s.c.SetToken(res.Token)
	return &res, nil
}

// Session returns the current session.
func (s *AuthService) Session(ctx context.Context) (*SessionInfo, error) {
	var info SessionInfo
	if err := s.c.get(ctx, "/api/auth/session", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
