//nolint:varnamelen,tagliatelle
package sssogin

import (
	"net/http"
	"strings"

	"github.com/CoachCoe/polkadot-sso/api"
	"github.com/CoachCoe/polkadot-sso/domain"
	serrors "github.com/CoachCoe/polkadot-sso/errors"
	"github.com/CoachCoe/polkadot-sso/internal/telegram"
	"github.com/CoachCoe/polkadot-sso/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AuthAPIOptions holds the dependencies of AuthAPI.
type AuthAPIOptions struct {
	Challenges *services.ChallengeService
	Login      *services.LoginService
	Tokens     *services.TokenService
	// RateLimiter gates challenge, verify and token routes when set.
	RateLimiter *RateLimiter
}

// AuthAPI serves the login and token endpoints.
type AuthAPI struct {
	challenges *services.ChallengeService
	login      *services.LoginService
	tokens     *services.TokenService
	limiter    *RateLimiter
}

// NewAuthAPI initializes the API.
func NewAuthAPI(opts *AuthAPIOptions) *AuthAPI {
	return &AuthAPI{
		challenges: opts.Challenges,
		login:      opts.Login,
		tokens:     opts.Tokens,
		limiter:    opts.RateLimiter,
	}
}

// RegisterRoutes registers the /api/auth routes.
func (a *AuthAPI) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/api/auth")

	g.POST("/challenge", a.gated(a.ChallengeHandler)...)
	g.POST("/verify", a.gated(a.VerifyHandler)...)
	g.POST("/telegram/verify", a.gated(a.TelegramVerifyHandler)...)
	g.GET("/oauth/:provider/callback", a.gated(a.OAuthCallbackHandler)...)
	g.POST("/token", a.gated(a.TokenHandler)...)

	g.GET("/session", RequireAccessToken(a.tokens), a.SessionHandler)
	g.POST("/logout", a.LogoutHandler)
}

func (a *AuthAPI) gated(h gin.HandlerFunc) []gin.HandlerFunc {
	if a.limiter == nil {
		return []gin.HandlerFunc{h}
	}

	return []gin.HandlerFunc{a.limiter.Middleware(), h}
}

// writeError renders err as an OAuth2 error body with its mapped status.
func writeError(c *gin.Context, err error) {
	status := serrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}

	if status == http.StatusUnauthorized && serrors.IsKind(err, serrors.KindTokenInvalid) {
		c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
	}

	c.AbortWithStatusJSON(status, serrors.ToOAuth2(err))
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, serrors.NewInvalidRequest(err.Error()))
}

// providerOf maps the request's provider field onto a provider kind and OAuth provider name.
func providerOf(req *api.ChallengeRequest) (domain.ProviderKind, string) {
	switch p := strings.ToLower(req.Provider); p {
	case "", string(domain.ProviderWallet):
		return domain.ProviderWallet, ""
	case string(domain.ProviderTelegram):
		return domain.ProviderTelegram, ""
	case string(domain.ProviderOAuth2):
		return domain.ProviderOAuth2, req.ProviderName
	default:
		return domain.ProviderOAuth2, p
	}
}

// ChallengeHandler issues a new login challenge.
func (a *AuthAPI) ChallengeHandler(c *gin.Context) {
	var req api.ChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	kind, name := providerOf(&req)

	ch, err := a.challenges.Create(c.Request.Context(), services.CreateChallengeRequest{
		ClientID:     req.ClientID,
		SubjectHint:  req.SubjectHint,
		Provider:     kind,
		ProviderName: name,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.ChallengeResponse{
		ChallengeID:  ch.ID,
		Provider:     string(ch.Provider),
		Message:      ch.Message,
		RedirectURL:  ch.RedirectURL,
		CodeVerifier: ch.CodeVerifier,
		State:        ch.State,
		Nonce:        ch.Nonce,
		ExpiresAt:    ch.ExpiresAt,
	})
}

// redirect sends the browser to the client, or returns the URL to JSON callers.
func redirect(c *gin.Context, res *services.LoginResult) {
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.JSON(http.StatusOK, api.RedirectResponse{RedirectURL: res.RedirectURL})
		return
	}

	c.Redirect(http.StatusFound, res.RedirectURL)
}

// VerifyHandler completes a wallet login.
func (a *AuthAPI) VerifyHandler(c *gin.Context) {
	var req api.WalletVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := a.login.Complete(c.Request.Context(), req.ChallengeID, services.WalletProof{
		Address:      req.Address,
		Signature:    req.Signature,
		CodeVerifier: req.CodeVerifier,
		State:        req.State,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	redirect(c, res)
}

// TelegramVerifyHandler completes a Telegram login.
func (a *AuthAPI) TelegramVerifyHandler(c *gin.Context) {
	var req api.TelegramVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := a.login.Complete(c.Request.Context(), req.ChallengeID, services.TelegramProof{
		Assertion: telegram.Assertion{
			ID:        req.ID,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Username:  req.Username,
			PhotoURL:  req.PhotoURL,
			AuthDate:  req.AuthDate,
			Hash:      req.Hash,
		},
		CodeVerifier: req.CodeVerifier,
		State:        req.State,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	redirect(c, res)
}

// OAuthCallbackHandler completes an OpenID Connect login. The challenge is found by state.
func (a *AuthAPI) OAuthCallbackHandler(c *gin.Context) {
	state := c.Query("state")

	if idpErr := c.Query("error"); idpErr != "" {
		log.Warn().
			Str("provider", c.Param("provider")).
			Str("idp_error", idpErr).
			Str("idp_error_description", c.Query("error_description")).
			Msg("Identity provider returned an error")

		writeError(c, serrors.NewAuthentication(nil))

		return
	}

	code := c.Query("code")
	if code == "" || state == "" {
		writeError(c, serrors.NewValidation("code and state are required"))
		return
	}

	res, err := a.login.Complete(c.Request.Context(), state, services.OAuthProof{Code: code, State: state})
	if err != nil {
		writeError(c, err)
		return
	}

	redirect(c, res)
}

// clientCredentials prefers HTTP Basic authentication over body parameters.
func clientCredentials(c *gin.Context, req *api.TokenRequest) (string, string) {
	if id, secret, ok := c.Request.BasicAuth(); ok {
		return id, secret
	}

	return req.ClientID, req.ClientSecret
}

// TokenHandler handles the authorization_code and refresh_token grants.
func (a *AuthAPI) TokenHandler(c *gin.Context) {
	var req api.TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	clientID, clientSecret := clientCredentials(c, &req)
	ctx := c.Request.Context()

	var (
		pair *services.TokenPair
		err  error
	)

	switch req.GrantType {
	case api.GrantTypeAuthorizationCode:
		pair, err = a.tokens.Exchange(ctx, services.ExchangeRequest{
			Code:         req.Code,
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURI:  req.RedirectURI,
		})
	case api.GrantTypeRefreshToken:
		if req.RefreshToken == "" {
			writeError(c, serrors.NewValidation("refresh_token is required"))
			return
		}

		pair, err = a.tokens.Refresh(ctx, req.RefreshToken, clientID, clientSecret)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, serrors.NewUnsupportedGrantType())
		return
	}

	if err != nil {
		writeError(c, err)
		return
	}

	log.Info().
		Str("client_id", clientID).
		Str("grant_type", req.GrantType).
		Int64("expires_in", pair.ExpiresIn).
		Msg("Token issued")

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, api.TokenResponse{
		AccessToken:  pair.AccessToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
		RefreshToken: pair.RefreshToken,
	})
}

// SessionHandler describes the session of the bearer token. It runs behind RequireAccessToken.
func (a *AuthAPI) SessionHandler(c *gin.Context) {
	info, ok := IntrospectionFrom(c)
	if !ok {
		writeError(c, serrors.NewTokenInvalid(ErrInvalidAuthorizationHeader))
		return
	}

	c.JSON(http.StatusOK, api.SessionResponse{
		Subject:   info.Subject,
		ClientID:  info.ClientID,
		SessionID: info.SessionID,
		ExpiresAt: info.ExpiresAt,
		Claims:    info.Claims,
	})
}

// LogoutHandler ends a session named by body access token, session id or bearer token.
func (a *AuthAPI) LogoutHandler(c *gin.Context) {
	var req api.LogoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	ref := req.AccessToken
	if ref == "" {
		ref = req.SessionID
	}

	if ref == "" {
		token, err := extractJWTFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			writeError(c, serrors.NewValidation("access_token, session_id or bearer token required"))
			return
		}

		ref = token
	}

	if err := a.tokens.Invalidate(c.Request.Context(), ref); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
