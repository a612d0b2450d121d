package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wadjakorntonsri/go-shortlinks/pkg/config"
)

const (
	authCookie        = "auth_token"
	stateCookie       = "oauthstate"
	sessionLifetime   = 24 * time.Hour
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// AuthHandler runs the Google login for the admin API and issues a
// signed session cookie.
type AuthHandler struct {
	oauthConfig   *oauth2.Config
	jwtSecret     []byte
	frontendURL   string
	allowedEmails []string
	isProduction  bool
	log           zerolog.Logger
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func NewAuthHandler(cfg *config.Config, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		},
		jwtSecret:     []byte(cfg.JWTSecret),
		frontendURL:   cfg.FrontendURL,
		allowedEmails: cfg.AllowedEmails,
		isProduction:  cfg.IsProduction(),
		log:           log.With().Str("component", "auth").Logger(),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := h.setStateCookie(w)
	if err != nil {
		h.log.Error().Err(err).Msg("generate oauth state")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state, err := r.Cookie(stateCookie)
	if err != nil || r.FormValue("state") != state.Value {
		h.log.Warn().Msg("oauth callback with missing or mismatched state")
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		h.log.Error().Err(err).Msg("oauth code exchange failed")
		http.Error(w, "code exchange failed", http.StatusBadGateway)
		return
	}

	user, err := h.fetchUser(r, token)
	if err != nil {
		h.log.Error().Err(err).Msg("fetch google user")
		http.Error(w, "failed getting user info", http.StatusBadGateway)
		return
	}

	if !h.allowed(user.Email) {
		h.log.Warn().Str("email", user.Email).Msg("login rejected, email not in allowlist")
		http.Error(w, "access denied: your email is not in the allowlist", http.StatusForbidden)
		return
	}

	expiresAt := time.Now().Add(sessionLifetime)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{
		Subject:   user.Email,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString(h.jwtSecret)
	if err != nil {
		h.log.Error().Err(err).Msg("sign session token")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, h.cookie(authCookie, signed, expiresAt))
	h.log.Info().Str("email", user.Email).Msg("login successful")
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookie(authCookie, "", time.Now().Add(-time.Hour)))
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
}

// allowed reports whether email may sign in. An empty allowlist admits
// every verified Google account.
func (h *AuthHandler) allowed(email string) bool {
	return len(h.allowedEmails) == 0 || slices.Contains(h.allowedEmails, email)
}

func (h *AuthHandler) fetchUser(r *http.Request, token *oauth2.Token) (*GoogleUser, error) {
	resp, err := h.oauthConfig.Client(r.Context(), token).Get(googleUserInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %s", resp.Status)
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	if !user.VerifiedEmail {
		return nil, fmt.Errorf("email %s is not verified", user.Email)
	}
	return &user, nil
}

func (h *AuthHandler) setStateCookie(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, h.cookie(stateCookie, state, time.Now().Add(20*time.Minute)))
	return state, nil
}

func (h *AuthHandler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	}
}
