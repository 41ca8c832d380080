package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/xtreamer/internal/app"
)

// SessionHandler handles login and logout.
type SessionHandler struct {
	app *app.App
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(a *app.App) *SessionHandler {
	return &SessionHandler{app: a}
}

// EmptyInput is an input without parameters.
type EmptyInput struct{}

// Register registers the session routes with the API.
func (h *SessionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      "POST",
		Path:        "/api/v1/login",
		Summary:     "Log in to the panel",
		Description: "Fills the login form and submits it. Attempts closer together than the login interval are refused.",
		Tags:        []string{"Session"},
	}, h.Login)

	huma.Register(api, huma.Operation{
		OperationID: "getSession",
		Method:      "GET",
		Path:        "/api/v1/session",
		Summary:     "Get the login form state",
		Tags:        []string{"Session"},
	}, h.GetSession)

	huma.Register(api, huma.Operation{
		OperationID:   "logout",
		Method:        "DELETE",
		Path:          "/api/v1/session",
		Summary:       "Log out",
		Tags:          []string{"Session"},
		DefaultStatus: 204,
	}, h.Logout)
}

// Login applies the submitted form and waits for the attempt to finish.
func (h *SessionHandler) Login(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
	login := h.app.Login
	login.UpdateScheme(input.Body.Scheme)
	login.UpdateHost(input.Body.Host)
	login.UpdatePort(input.Body.Port)
	login.UpdateUsername(input.Body.Username)
	login.UpdatePassword(input.Body.Password)

	if err := wait(ctx, login.Submit()); err != nil {
		return nil, err
	}

	st := login.State()
	if !st.Authenticated {
		return nil, huma.Error401Unauthorized(st.ErrorMessage)
	}
	return &LoginOutput{Body: st}, nil
}

// GetSession returns the login form state. The password is never included.
func (h *SessionHandler) GetSession(_ context.Context, _ *EmptyInput) (*LoginOutput, error) {
	return &LoginOutput{Body: h.app.Login.State()}, nil
}

// Logout ends the session.
func (h *SessionHandler) Logout(_ context.Context, _ *EmptyInput) (*struct{}, error) {
	h.app.Logout()
	return nil, nil
}
