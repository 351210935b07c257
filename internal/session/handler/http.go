// Package handler exposes the session services over HTTP: create-session, the gateway's
// authentication endpoint and its session resolver endpoint.
package handler

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dcv-session-gateway/internal/session/service"
)

// SessionIssuer is implemented by *service.Issuer.
type SessionIssuer interface {
	Issue(ctx context.Context, backendID string) (*service.IssueResult, error)
}

// CredentialAuthenticator is implemented by *service.Authenticator.
type CredentialAuthenticator interface {
	Authenticate(ctx context.Context, token, originIP string) (string, error)
}

// SessionResolver is implemented by *service.Resolver.
type SessionResolver interface {
	Resolve(ctx context.Context, sessionID, transport string) (*service.Resolution, error)
}

// Handler serves the session routes.
type Handler struct {
	issuer   SessionIssuer
	auth     CredentialAuthenticator
	resolver SessionResolver
}

// NewHandler returns a Handler over the three session services.
func NewHandler(issuer SessionIssuer, auth CredentialAuthenticator, resolver SessionResolver) *Handler {
	return &Handler{issuer: issuer, auth: auth, resolver: resolver}
}

// Register mounts the session routes on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/sessions", h.CreateSession)
	r.POST("/sessions", h.CreateSession)
	r.POST("/authenticate", h.Authenticate)
	r.GET("/resolve", h.Resolve)
	r.POST("/resolve", h.Resolve)
}

type createSessionResponse struct {
	AuthToken string `json:"authToken"`
	SessionID string `json:"sessionId"`
}

type authResponse struct {
	XMLName  xml.Name `xml:"auth"`
	Result   string   `xml:"result,attr"`
	Username string   `xml:"username,omitempty"`
	Message  string   `xml:"message,omitempty"`
}

type resolveResponse struct {
	SessionID         string `json:"SessionId"`
	DcvServerEndpoint string `json:"DcvServerEndpoint"`
	Port              int    `json:"Port"`
	WebURLPath        string `json:"WebUrlPath"`
	TransportProtocol string `json:"TransportProtocol"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateSession issues a session for the backend named by backendId (or its alias instanceId).
func (h *Handler) CreateSession(c *gin.Context) {
	backendID := param(c, "backendId", "instanceId")
	res, err := h.issuer.Issue(c.Request.Context(), backendID)
	if err != nil {
		c.JSON(jsonStatus(err), errorResponse{Error: service.Message(err)})
		return
	}
	c.JSON(http.StatusOK, createSessionResponse{AuthToken: res.Token, SessionID: res.SessionID})
}

// Authenticate validates the form field authenticationToken against the caller's address and
// answers with the XML document the gateway expects.
func (h *Handler) Authenticate(c *gin.Context) {
	token := c.PostForm("authenticationToken")
	username, err := h.auth.Authenticate(c.Request.Context(), token, c.ClientIP())
	if err != nil {
		writeXML(c, authStatus(err), authResponse{Result: "no", Message: service.Message(err)})
		return
	}
	writeXML(c, http.StatusOK, authResponse{Result: "yes", Username: username})
}

// Resolve returns the backend endpoint for sessionId and transport, read from the query or a form body.
func (h *Handler) Resolve(c *gin.Context) {
	res, err := h.resolver.Resolve(c.Request.Context(), param(c, "sessionId"), param(c, "transport"))
	if err != nil {
		c.JSON(jsonStatus(err), errorResponse{Error: service.Message(err)})
		return
	}
	c.JSON(http.StatusOK, resolveResponse{
		SessionID:         res.SessionID,
		DcvServerEndpoint: res.ServerEndpoint,
		Port:              res.Port,
		WebURLPath:        res.WebURLPath,
		TransportProtocol: res.TransportProtocol,
	})
}

// param returns the first non-empty value among names, looking at the query string before the form body.
func param(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.Query(name)); v != "" {
			return v
		}
		if v := strings.TrimSpace(c.PostForm(name)); v != "" {
			return v
		}
	}
	return ""
}

func writeXML(c *gin.Context, status int, body authResponse) {
	out, err := xml.Marshal(body)
	if err != nil {
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "text/xml; charset=utf-8", append([]byte(xml.Header), out...))
}

// authStatus maps an authentication failure to a status. Decisions the service evaluated against a
// known session travel in the body with 200; malformed input and unknown sessions do not.
func authStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrCrypto):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrExpired),
		errors.Is(err, service.ErrAlreadyActivated),
		errors.Is(err, service.ErrOriginMismatch),
		errors.Is(err, service.ErrSecretMismatch):
		return http.StatusOK
	default:
		return http.StatusBadGateway
	}
}

// jsonStatus maps a create-session or resolve failure to a status.
func jsonStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrExpired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
