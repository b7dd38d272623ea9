package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/verdantshop/verdant/internal/auth"
	"github.com/verdantshop/verdant/internal/db"
	"github.com/verdantshop/verdant/internal/logging"
	"github.com/verdantshop/verdant/internal/observability"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var (
	ErrAuthUnavailable    = errors.New("sign-in provider unavailable")
	ErrAuthInvalidCode    = errors.New("invalid authorization code")
	ErrAuthCodeExchange   = errors.New("failed to exchange authorization code")
	ErrAuthGetGoogleUser  = errors.New("failed to fetch google user")
	ErrAuthGenerateState  = errors.New("failed to generate oauth state")
	ErrAuthUnverifiedMail = errors.New("google account email is not verified")
)

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by every sign-in path. Token is a bearer JWT for API
// clients; browser callers also get a session cookie from the handler.
type AuthResult struct {
	User      *db.User  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type StartGoogleLoginResult struct {
	AuthorizationURL string
	State            string
}

type GoogleUser struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

type AccountServiceConfig struct {
	BaseURL            string
	AdminEmail         string
	GoogleClientID     string
	GoogleClientSecret string
}

type AccountService struct {
	users       UserRepository
	orders      OrderRepository
	tokens      *auth.TokenIssuer
	oauthConfig *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	adminEmail  string
	validate    *validator.Validate
	logger      *slog.Logger
}

func NewAccountService(users UserRepository, orders OrderRepository, tokens *auth.TokenIssuer, cfg AccountServiceConfig, logger *slog.Logger) (*AccountService, error) {
	if users == nil {
		return nil, fmt.Errorf("account service user store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("account service token issuer is required")
	}

	service := &AccountService{
		users:       users,
		orders:      orders,
		tokens:      tokens,
		userInfoURL: googleUserInfoURL,
		httpClient:  observability.NewHTTPClient(10 * time.Second),
		adminEmail:  strings.ToLower(strings.TrimSpace(cfg.AdminEmail)),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}

	if strings.TrimSpace(cfg.GoogleClientID) != "" {
		service.oauthConfig = &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
			RedirectURL:  googleOAuthRedirectURL(cfg.BaseURL),
		}
	}

	return service, nil
}

func googleOAuthRedirectURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return ""
	}

	return strings.TrimRight(baseURL, "/") + "/auth/google/callback"
}

func (s *AccountService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, accountValidationError(err)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &db.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hash,
		Role:         string(s.roleFor(input.Email)),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicateEmail) {
			return nil, UserError{Message: "An account with this email already exists"}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.loggerFromContext(ctx).Info("user registered", "user_id", user.ID, "role", user.Role)
	return s.issue(user)
}

func (s *AccountService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, input.Email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := auth.ComparePassword(user.PasswordHash, input.Password); err != nil {
		s.loggerFromContext(ctx).Info("failed login attempt", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *AccountService) GoogleLoginEnabled() bool {
	return s != nil && s.oauthConfig != nil
}

func (s *AccountService) StartGoogleLogin() (StartGoogleLoginResult, error) {
	result := StartGoogleLoginResult{}
	if s == nil || s.oauthConfig == nil {
		return result, ErrAuthUnavailable
	}

	state, err := generateOAuthState()
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrAuthGenerateState, err)
	}

	result.State = state
	result.AuthorizationURL = s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
	return result, nil
}

// CompleteGoogleLogin exchanges the code, then finds or creates the user by
// verified email. Existing users keep their role and password.
func (s *AccountService) CompleteGoogleLogin(ctx context.Context, code string) (*AuthResult, error) {
	if s == nil || s.oauthConfig == nil || s.httpClient == nil {
		return nil, ErrAuthUnavailable
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrAuthInvalidCode
	}

	span := sentry.StartSpan(
		ctx,
		"service.account.google_callback",
		sentry.WithOpName("service.account"),
		sentry.WithDescription("CompleteGoogleLogin"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	token, err := s.oauthConfig.Exchange(context.WithValue(ctx, oauth2.HTTPClient, s.httpClient), code)
	if err != nil {
		span.Status = sentry.SpanStatusUnauthenticated
		return nil, fmt.Errorf("%w: %v", ErrAuthCodeExchange, err)
	}

	googleUser, err := s.getGoogleUser(ctx, token.AccessToken)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("%w: %v", ErrAuthGetGoogleUser, err)
	}
	if !googleUser.EmailVerified || strings.TrimSpace(googleUser.Email) == "" {
		span.Status = sentry.SpanStatusPermissionDenied
		return nil, ErrAuthUnverifiedMail
	}

	user := &db.User{
		Name:  strings.TrimSpace(googleUser.Name),
		Email: strings.ToLower(strings.TrimSpace(googleUser.Email)),
		Role:  string(s.roleFor(googleUser.Email)),
	}
	if err := s.users.UpsertByEmail(ctx, user); err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("failed to store google user: %w", err)
	}

	span.Status = sentry.SpanStatusOK
	s.loggerFromContext(ctx).Info("google sign-in completed", "user_id", user.ID)
	return s.issue(user)
}

func (s *AccountService) getGoogleUser(ctx context.Context, accessToken string) (*GoogleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.loggerFromContext(ctx).Warn("failed to close google userinfo response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return nil, fmt.Errorf("google userinfo returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("google userinfo returned status %d: %s", resp.StatusCode, string(body))
	}

	var user GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AccountService) Me(ctx context.Context, userID uuid.UUID) (*db.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (s *AccountService) MyOrders(ctx context.Context, userID uuid.UUID) ([]db.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *AccountService) issue(user *db.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(PrincipalForUser(user))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AccountService) roleFor(email string) auth.Role {
	if s.adminEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.adminEmail) {
		return auth.RoleAdmin
	}
	return auth.RoleUser
}

func PrincipalForUser(user *db.User) auth.Principal {
	return auth.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   auth.ParseRole(user.Role),
	}
}

func accountValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return UserError{Message: "Invalid registration details"}
	}

	switch first := validationErrs[0]; first.Field() {
	case "Email":
		return UserError{Message: "Please enter a valid email address"}
	case "Password":
		if first.Tag() == "max" {
			return UserError{Message: "Password must be at most 72 characters"}
		}
		return UserError{Message: "Password must be at least 8 characters"}
	default:
		return UserError{Message: "Please enter your name"}
	}
}

func generateOAuthState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
