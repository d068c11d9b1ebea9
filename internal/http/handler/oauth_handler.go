package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/crypto"
	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/html"
	"github.com/retailcore/user-management/internal/service"
)

// OAuthHandler exposes the authorization server endpoints.
type OAuthHandler struct {
	OAuth     *service.OAuthService
	Clients   *service.ClientService
	Discovery *service.DiscoveryService
	Logger    *zap.Logger
}

func NewOAuthHandler(oauth *service.OAuthService, clients *service.ClientService, discovery *service.DiscoveryService, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{OAuth: oauth, Clients: clients, Discovery: discovery, Logger: logger}
}

// RegisterClient handles POST /oauth/register.
func (h *OAuthHandler) RegisterClient(c *gin.Context) {
	var cmd service.RegisterClientCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}

	created, err := h.Clients.RegisterClient(c.Request.Context(), cmd)
	if err != nil {
		h.respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetClient handles GET /oauth/clients/:clientId.
func (h *OAuthHandler) GetClient(c *gin.Context) {
	client, err := h.Clients.GetClient(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		h.respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// UpdateClient handles PUT /oauth/clients/:clientId.
func (h *OAuthHandler) UpdateClient(c *gin.Context) {
	var cmd service.UpdateClientCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}
	cmd.ClientID = c.Param("clientId")

	client, err := h.Clients.UpdateClient(c.Request.Context(), cmd)
	if err != nil {
		h.respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClient handles DELETE /oauth/clients/:clientId.
func (h *OAuthHandler) DeleteClient(c *gin.Context) {
	if err := h.Clients.DeleteClient(c.Request.Context(), c.Param("clientId")); err != nil {
		h.respondOAuthError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListClients handles GET /oauth/clients.
func (h *OAuthHandler) ListClients(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	clients, err := h.Clients.ListClients(c.Request.Context(), page, limit)
	if err != nil {
		h.respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients, "page": page, "limit": limit})
}

// Authorize handles GET /oauth/authorize: validates the request and renders
// the hosted login page.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	var req service.AuthorizeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}

	if _, err := h.OAuth.ValidateAuthorizeRequest(c.Request.Context(), req); err != nil {
		h.respondOAuthError(c, err)
		return
	}

	h.renderLogin(c, req, "")
}

// SubmitLogin handles POST /oauth/authorize: authenticates the resource
// owner and redirects back to the client with an authorization code. A failed
// login re-renders the form with a generic error so the page cannot be used
// to enumerate accounts.
func (h *OAuthHandler) SubmitLogin(c *gin.Context) {
	var req service.AuthorizeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}
	if c.PostForm("action") != "login" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Unsupported form action."})
		return
	}
	email := c.PostForm("email")
	password := c.PostForm("password")

	redirect, err := h.OAuth.CompleteLogin(c.Request.Context(), req, email, password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPassword) {
			h.renderLogin(c, req, "Invalid email or password")
			return
		}
		h.respondOAuthError(c, err)
		return
	}

	c.Redirect(http.StatusFound, redirect)
}

func (h *OAuthHandler) renderLogin(c *gin.Context, req service.AuthorizeRequest, errorMessage string) {
	page, err := html.RenderLogin(html.LoginPage{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CSRFToken:           crypto.NewCSRFToken(),
		ErrorMessage:        errorMessage,
	})
	if err != nil {
		h.Logger.Error("render login page failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Failed to render login page."})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// bindFormOrJSON binds the request body by content type; the token,
// introspection, and revocation endpoints all accept either encoding.
func bindFormOrJSON(c *gin.Context, req any) error {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return c.ShouldBindJSON(req)
	}
	return c.ShouldBind(req)
}

// Token handles POST /oauth/token, accepting form or JSON bodies.
func (h *OAuthHandler) Token(c *gin.Context) {
	var req service.TokenRequest
	if err := bindFormOrJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}

	resp, err := h.OAuth.Token(c.Request.Context(), req)
	if err != nil {
		h.respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type introspectRequest struct {
	Token string `form:"token" json:"token"`
}

// Introspect handles POST /oauth/introspect, accepting form or JSON bodies.
// It always answers 200; unknown tokens are reported as inactive.
func (h *OAuthHandler) Introspect(c *gin.Context) {
	var req introspectRequest
	if err := bindFormOrJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.OAuth.Introspect(c.Request.Context(), req.Token))
}

type revokeRequest struct {
	Token        string `form:"token" json:"token"`
	ClientID     string `form:"client_id" json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
}

// Revoke handles POST /oauth/revoke, accepting form or JSON bodies.
func (h *OAuthHandler) Revoke(c *gin.Context) {
	var req revokeRequest
	if err := bindFormOrJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}
	if err := h.OAuth.Revoke(c.Request.Context(), req.Token, req.ClientID, req.ClientSecret); err != nil {
		h.respondOAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// Metadata handles GET /.well-known/oauth-authorization-server.
func (h *OAuthHandler) Metadata(c *gin.Context) {
	c.JSON(http.StatusOK, h.Discovery.Metadata(schemeOnly(c.Request), c.Request.Host))
}

func (h *OAuthHandler) respondOAuthError(c *gin.Context, err error) {
	var oauthErr *service.OAuthError
	if errors.As(err, &oauthErr) {
		c.JSON(oauthErr.Status, gin.H{"error": oauthErr.Code, "error_description": oauthErr.Description})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Resource not found."})
	case domain.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
	default:
		h.Logger.Error("oauth request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	}
}
