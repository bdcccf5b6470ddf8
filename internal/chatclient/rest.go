// Package chatclient is a Go client for the chat relay: REST calls against the
// durable store and the live event channel, kept in sync with a session.State.
package chatclient

import (
	"chatrelay/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// Account is a user together with the token issued at register or login.
type Account struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// User returns the account as a user record.
func (a Account) User() models.User {
	return models.User{ID: a.ID, Name: a.Name, Email: a.Email}
}

// APIError is an error-shaped response of the REST API.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// RESTClient calls the /api routes.
type RESTClient struct {
	http *resty.Client
}

func NewRESTClient(baseURL string) *RESTClient {
	return &RESTClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(defaultTimeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// do sends the request and decodes the body into result, or the error body into an APIError.
func (c *RESTClient) do(ctx context.Context, method, path string, body, result any) error {
	apiErr := &APIError{}
	req := c.http.R().SetContext(ctx).SetError(apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}
	return nil
}

func (c *RESTClient) Register(ctx context.Context, name, email, password string) (*Account, error) {
	var acc Account
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, resty.MethodPost, "/api/users/register", body, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *RESTClient) Login(ctx context.Context, email, password string) (*Account, error) {
	var acc Account
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, resty.MethodPost, "/api/users/login", body, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *RESTClient) FindUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, resty.MethodGet, "/api/users/find/"+userID, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *RESTClient) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, resty.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *RESTClient) CreateChat(ctx context.Context, firstID, secondID string) (*models.Chat, error) {
	var chat models.Chat
	body := map[string]string{"firstId": firstID, "secondId": secondID}
	if err := c.do(ctx, resty.MethodPost, "/api/chats", body, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *RESTClient) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	if err := c.do(ctx, resty.MethodGet, "/api/chats/"+userID, nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (c *RESTClient) FindChat(ctx context.Context, firstID, secondID string) (*models.Chat, error) {
	var chat models.Chat
	if err := c.do(ctx, resty.MethodGet, "/api/chats/find/"+firstID+"/"+secondID, nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *RESTClient) CreateMessage(ctx context.Context, chatID, senderID, text string) (*models.Message, error) {
	var msg models.Message
	body := map[string]string{"chatId": chatID, "senderId": senderID, "text": text}
	if err := c.do(ctx, resty.MethodPost, "/api/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *RESTClient) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var msgs []models.Message
	if err := c.do(ctx, resty.MethodGet, "/api/messages/"+chatID, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *RESTClient) OnlineUsers(ctx context.Context) ([]models.OnlineUser, error) {
	var users []models.OnlineUser
	if err := c.do(ctx, resty.MethodGet, "/api/online", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
