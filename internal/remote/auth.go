package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	loginPath    = "/api/auth/login/"
	registerPath = "/api/auth/register/"

	// DefaultRole is the role a self-registered user starts with.
	DefaultRole = "solo"
)

// ErrRegistrationRejected is wrapped by FieldErrors when the API refuses a sign-up.
var ErrRegistrationRejected = errors.New("remote: registration rejected")

// LoginResult is the API's answer to a successful sign-in.
type LoginResult struct {
	Token       string    `json:"token"`
	User        LoginUser `json:"user"`
	RedirectURL string    `json:"redirect_url"`
}

// LoginUser is the user block of LoginResult.
type LoginUser struct {
	ID       FlexString `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
}

// Login exchanges email and password for an API token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return LoginResult{}, fmt.Errorf("remote: encoding login: %w", err)
	}

	data, err := c.send(ctx, http.MethodPost, c.resolve(loginPath, nil), body, nil)
	if err != nil {
		var ne *NetworkError
		if errors.Is(err, ErrUnauthorized) ||
			(errors.As(err, &ne) && ne.StatusCode == http.StatusBadRequest) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	var res LoginResult
	if err := json.Unmarshal(data, &res); err != nil {
		return LoginResult{}, fmt.Errorf("remote: parsing login: %w", err)
	}
	if strings.TrimSpace(res.Token) == "" {
		return LoginResult{}, errors.New("remote: login response has no token")
	}
	return res, nil
}

// Registration is the sign-up form.
type Registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Age       int    `json:"age,omitempty"`
	RoleName  string `json:"role_name,omitempty"`
}

// FieldErrors maps a form field to the API's messages for it. Errors not tied
// to a field are under "non_field_errors".
type FieldErrors map[string][]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e[f], " "))
	}
	return "registration rejected: " + strings.Join(parts, "; ")
}

func (e FieldErrors) Unwrap() error { return ErrRegistrationRejected }

// Register creates an account and returns its token, like Login.
// A 400 answer comes back as FieldErrors.
func (c *Client) Register(ctx context.Context, reg Registration) (LoginResult, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.RoleName == "" {
		reg.RoleName = DefaultRole
	}
	body, err := json.Marshal(reg)
	if err != nil {
		return LoginResult{}, fmt.Errorf("remote: encoding registration: %w", err)
	}

	data, err := c.send(ctx, http.MethodPost, c.resolve(registerPath, nil), body, nil)
	if err != nil {
		var ne *NetworkError
		if errors.As(err, &ne) && ne.StatusCode == http.StatusBadRequest {
			return LoginResult{}, parseFieldErrors(data)
		}
		return LoginResult{}, err
	}

	var res LoginResult
	if err := json.Unmarshal(data, &res); err != nil {
		return LoginResult{}, fmt.Errorf("remote: parsing registration: %w", err)
	}
	if strings.TrimSpace(res.Token) == "" {
		return LoginResult{}, errors.New("remote: registration response has no token")
	}
	return res, nil
}

// parseFieldErrors reads a validation body where each field holds a message
// or a list of messages.
func parseFieldErrors(data []byte) FieldErrors {
	fe := FieldErrors{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err == nil {
		for field, v := range raw {
			var list []string
			if err := json.Unmarshal(v, &list); err == nil {
				if len(list) > 0 {
					fe[field] = list
				}
				continue
			}
			var msg string
			if err := json.Unmarshal(v, &msg); err == nil && msg != "" {
				fe[field] = []string{msg}
			}
		}
	}
	if len(fe) == 0 {
		fe["non_field_errors"] = []string{"Registration failed."}
	}
	return fe
}
