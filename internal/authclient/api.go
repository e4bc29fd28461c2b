package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/avinash-394/website/internal/domain/user"
)

// Client is the thin HTTP front onto the auth API. All methods take a
// context and return either the decoded payload, an *APIError the server
// reported, or a *NetworkError.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// BaseURL is the origin used for avatar reference normalization.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type Session struct {
	User  user.User
	Token string
}

type dataEnvelope struct {
	Data struct {
		User  user.User `json:"user"`
		Token string    `json:"token"`
	} `json:"data"`
}

type errEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (c *Client) Register(ctx context.Context, name, email, password string) (Session, error) {
	env, err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})

	if err != nil {
		return Session{}, err
	}

	return Session{User: env.Data.User, Token: env.Data.Token}, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	env, err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})

	if err != nil {
		return Session{}, err
	}

	return Session{User: env.Data.User, Token: env.Data.Token}, nil
}

func (c *Client) Me(ctx context.Context, token string) (user.User, error) {
	env, err := c.doJSON(ctx, http.MethodGet, "/auth/me", token, nil)

	if err != nil {
		return user.User{}, err
	}

	return env.Data.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, token, name, email string) (user.User, error) {
	env, err := c.doJSON(ctx, http.MethodPut, "/auth/profile", token, map[string]string{
		"name":  name,
		"email": email,
	})

	if err != nil {
		return user.User{}, err
	}

	return env.Data.User, nil
}

func (c *Client) UploadAvatar(ctx context.Context, token, filename string, r io.Reader) (user.User, error) {
	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("avatar", filepath.Base(filename))

	if err != nil {
		return user.User{}, err
	}

	_, err = io.Copy(part, r)

	if err != nil {
		return user.User{}, err
	}

	err = mw.Close()

	if err != nil {
		return user.User{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/avatar", &buf)

	if err != nil {
		return user.User{}, err
	}

	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	env, err := c.send(req)

	if err != nil {
		return user.User{}, err
	}

	return env.Data.User, nil
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	_, err := c.doJSON(ctx, http.MethodPost, "/auth/forgot-password", "", map[string]string{
		"email": email,
	})

	return err
}

func (c *Client) ResetPassword(ctx context.Context, ticket, password string) (Session, error) {
	env, err := c.doJSON(ctx, http.MethodPost, "/auth/reset-password/"+ticket, "", map[string]string{
		"password": password,
	})

	if err != nil {
		return Session{}, err
	}

	return Session{User: env.Data.User, Token: env.Data.Token}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body interface{}) (*dataEnvelope, error) {
	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)

		if err != nil {
			return nil, err
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)

	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.send(req)
}

func (c *Client) send(req *http.Request) (*dataEnvelope, error) {
	resp, err := c.httpc.Do(req)

	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errEnvelope

		_ = json.Unmarshal(raw, &e)

		return nil, &APIError{
			Status:  resp.StatusCode,
			Code:    e.Code,
			Message: e.Message,
		}
	}

	var env dataEnvelope

	err = json.Unmarshal(raw, &env)

	if err != nil {
		return nil, &APIError{
			Status:  resp.StatusCode,
			Message: "malformed server response",
		}
	}

	return &env, nil
}
