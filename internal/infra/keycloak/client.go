package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/slamint/account-management/internal/core/domain"
	"github.com/slamint/account-management/internal/core/port"
	"github.com/slamint/account-management/internal/infra/config"
)

const (
	tokenCacheKey = "admin_token"
	rolesCacheKey = "realm_roles"

	// The service token is considered expired this long before Keycloak says
	// so, to absorb clock skew and in-flight latency.
	tokenExpirySlack = 15 * time.Second
	tokenMinTTL      = 30 * time.Second

	defaultHTTPTimeout   = 8 * time.Second
	defaultRolesCacheTTL = 120 * time.Second
)

// Client talks to the Keycloak admin REST API. A shared Redis-backed cache
// holds the service token and the realm-role catalog so concurrent requests
// and sibling instances collapse onto one upstream fetch.
type Client struct {
	base     *http.Client
	noKeep   *http.Client
	cfg      config.KeycloakSettings
	cache    port.Cache
	logger   *zap.Logger
	group    singleflight.Group
	rolesTTL time.Duration
}

// NewClient wires the admin API client. cache may be shared with other
// instances of the service.
func NewClient(cfg config.KeycloakSettings, cache port.Cache, logger *zap.Logger) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	rolesTTL := cfg.RolesCacheTTL
	if rolesTTL <= 0 {
		rolesTTL = defaultRolesCacheTTL
	}

	return &Client{
		base: &http.Client{Timeout: timeout},
		// Retry transport: fresh connections only, so a retry never lands on
		// the half-closed socket that broke the first attempt.
		noKeep: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		cfg:      cfg,
		cache:    cache,
		logger:   logger,
		rolesTTL: rolesTTL,
	}
}

// isConnError reports whether the failure looks like a stale pooled
// connection that died mid-request. Timeouts and refusals are excluded: a
// timed-out request may already have landed, and retrying a non-idempotent
// create could duplicate it.
func isConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// do runs the request, retrying exactly once over a keep-alive-free transport
// when the failure looks like a stale pooled connection.
func (c *Client) do(req *http.Request, body []byte) (*http.Response, error) {
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	resp, err := c.base.Do(req)
	if err == nil || !isConnError(err) {
		return resp, err
	}

	c.logger.Warn("keycloak request failed on pooled connection, retrying once",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Error(err),
	)

	retry := req.Clone(req.Context())
	if body != nil {
		retry.Body = io.NopCloser(bytes.NewReader(body))
	}
	return c.noKeep.Do(retry)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// serviceToken returns a valid admin access token, fetching and caching one
// when the cached copy is absent. The singleflight group collapses concurrent
// refreshes within this instance; the shared cache collapses them across
// instances.
func (c *Client) serviceToken(ctx context.Context) (string, error) {
	if token, err := c.cache.Get(ctx, tokenCacheKey); err == nil && token != "" {
		return token, nil
	} else if err != nil && !errors.Is(err, port.ErrCacheMiss) {
		c.logger.Warn("provider cache read failed, fetching token directly", zap.Error(err))
	}

	value, err, _ := c.group.Do(tokenCacheKey, func() (any, error) {
		return c.fetchServiceToken(ctx)
	})
	if err != nil {
		return "", err
	}

	return value.(string), nil
}

func (c *Client) fetchServiceToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	payload := []byte(form.Encode())

	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.ContentLength = int64(len(payload))

	resp, err := c.do(req, payload)
	if err != nil {
		return "", fmt.Errorf("request service token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("service token request returned status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	ttl := time.Duration(token.ExpiresIn)*time.Second - tokenExpirySlack
	if ttl < tokenMinTTL {
		ttl = tokenMinTTL
	}
	if err := c.cache.Set(ctx, tokenCacheKey, token.AccessToken, ttl); err != nil {
		c.logger.Warn("failed to cache service token", zap.Error(err))
	}

	return token.AccessToken, nil
}

// adminRequest builds an authenticated admin API request for the realm.
func (c *Client) adminRequest(ctx context.Context, method, path string) (*http.Request, error) {
	token, err := c.serviceToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/admin/realms/%s%s", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Realm, path)
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build admin request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}

type roleRepresentation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// reservedRole reports whether a realm role must never be stripped from a
// user: Keycloak's own composite defaults plus the offline/uma builtins.
func (c *Client) reservedRole(name string) bool {
	switch name {
	case "default-roles-" + c.cfg.Realm, "offline_access", "uma_authorization":
		return true
	}
	return false
}

// ListRealmRoles returns the realm roles matching the local role enumeration.
// The catalog changes rarely, so it is cached for a short TTL.
func (c *Client) ListRealmRoles(ctx context.Context) ([]domain.RealmRole, error) {
	if cached, err := c.cache.Get(ctx, rolesCacheKey); err == nil && cached != "" {
		var roles []domain.RealmRole
		if err := json.Unmarshal([]byte(cached), &roles); err == nil {
			return roles, nil
		}
	}

	value, err, _ := c.group.Do(rolesCacheKey, func() (any, error) {
		return c.fetchRealmRoles(ctx)
	})
	if err != nil {
		return nil, err
	}

	return value.([]domain.RealmRole), nil
}

func (c *Client) fetchRealmRoles(ctx context.Context) ([]domain.RealmRole, error) {
	req, err := c.adminRequest(ctx, http.MethodGet, "/roles")
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, nil)
	if err != nil {
		return nil, fmt.Errorf("list realm roles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list realm roles returned status %d", resp.StatusCode)
	}

	var reps []roleRepresentation
	if err := json.NewDecoder(resp.Body).Decode(&reps); err != nil {
		return nil, fmt.Errorf("decode realm roles: %w", err)
	}

	roles := make([]domain.RealmRole, 0, len(reps))
	for _, rep := range reps {
		if _, err := domain.ParseRole(rep.Name); err != nil {
			continue
		}
		roles = append(roles, domain.RealmRole{ID: rep.ID, Name: rep.Name, Description: rep.Description})
	}

	if data, err := json.Marshal(roles); err == nil {
		if err := c.cache.Set(ctx, rolesCacheKey, string(data), c.rolesTTL); err != nil {
			c.logger.Warn("failed to cache realm roles", zap.Error(err))
		}
	}

	return roles, nil
}

// ReplaceUserRoles strips the user's non-reserved realm roles, assigns the
// requested one and returns the resulting assignable set.
func (c *Client) ReplaceUserRoles(ctx context.Context, remoteID string, role domain.RoleName) ([]domain.RoleName, error) {
	catalog, err := c.ListRealmRoles(ctx)
	if err != nil {
		return nil, err
	}

	var target *domain.RealmRole
	for i := range catalog {
		if catalog[i].Name == string(role) {
			target = &catalog[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("realm role %q not found in catalog", role)
	}

	current, err := c.userRealmRoles(ctx, remoteID)
	if err != nil {
		return nil, err
	}

	removable := make([]roleRepresentation, 0, len(current))
	for _, rep := range current {
		if c.reservedRole(rep.Name) || rep.Name == string(role) {
			continue
		}
		removable = append(removable, rep)
	}

	if len(removable) > 0 {
		if err := c.mutateUserRoles(ctx, http.MethodDelete, remoteID, removable); err != nil {
			return nil, fmt.Errorf("remove current roles: %w", err)
		}
	}

	assign := []roleRepresentation{{ID: target.ID, Name: target.Name, Description: target.Description}}
	if err := c.mutateUserRoles(ctx, http.MethodPost, remoteID, assign); err != nil {
		return nil, fmt.Errorf("assign role %s: %w", role, err)
	}

	after, err := c.userRealmRoles(ctx, remoteID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.RoleName, 0, len(after))
	for _, rep := range after {
		if parsed, err := domain.ParseRole(rep.Name); err == nil {
			result = append(result, parsed)
		}
	}

	return result, nil
}

func (c *Client) userRealmRoles(ctx context.Context, remoteID string) ([]roleRepresentation, error) {
	req, err := c.adminRequest(ctx, http.MethodGet, "/users/"+url.PathEscape(remoteID)+"/role-mappings/realm")
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, nil)
	if err != nil {
		return nil, fmt.Errorf("get user role mappings: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, port.ErrRemoteUserNotFound
	default:
		return nil, fmt.Errorf("get user role mappings returned status %d", resp.StatusCode)
	}

	var reps []roleRepresentation
	if err := json.NewDecoder(resp.Body).Decode(&reps); err != nil {
		return nil, fmt.Errorf("decode user role mappings: %w", err)
	}

	return reps, nil
}

func (c *Client) mutateUserRoles(ctx context.Context, method, remoteID string, roles []roleRepresentation) error {
	payload, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("encode role representations: %w", err)
	}

	req, err := c.adminRequest(ctx, method, "/users/"+url.PathEscape(remoteID)+"/role-mappings/realm")
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(payload))

	resp, err := c.do(req, payload)
	if err != nil {
		return fmt.Errorf("%s user role mappings: %w", method, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return port.ErrRemoteUserNotFound
	default:
		return fmt.Errorf("%s user role mappings returned status %d", method, resp.StatusCode)
	}
}

type userRepresentation struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Enabled   bool   `json:"enabled"`
}

// CreateUser creates the remote identity and returns the id Keycloak assigned
// to it, parsed from the Location header.
func (c *Client) CreateUser(ctx context.Context, input port.RemoteUserInput) (string, error) {
	payload, err := json.Marshal(userRepresentation{
		Username:  input.Username,
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Enabled:   true,
	})
	if err != nil {
		return "", fmt.Errorf("encode user representation: %w", err)
	}

	req, err := c.adminRequest(ctx, http.MethodPost, "/users")
	if err != nil {
		return "", err
	}
	req.ContentLength = int64(len(payload))

	resp, err := c.do(req, payload)
	if err != nil {
		return "", fmt.Errorf("create remote user: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusNoContent:
		location := resp.Header.Get("Location")
		id := location[strings.LastIndex(location, "/")+1:]
		if id == "" {
			return "", fmt.Errorf("create user response missing Location id")
		}
		return id, nil
	case http.StatusConflict:
		return "", port.ErrRemoteUserExists
	default:
		return "", fmt.Errorf("create remote user returned status %d", resp.StatusCode)
	}
}

// TriggerOnboardingEmail asks Keycloak to send its verify-email and set-
// password flow for the identity.
func (c *Client) TriggerOnboardingEmail(ctx context.Context, remoteID string) error {
	payload, err := json.Marshal([]string{"VERIFY_EMAIL", "UPDATE_PASSWORD"})
	if err != nil {
		return fmt.Errorf("encode required actions: %w", err)
	}

	req, err := c.adminRequest(ctx, http.MethodPut, "/users/"+url.PathEscape(remoteID)+"/execute-actions-email")
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(payload))

	resp, err := c.do(req, payload)
	if err != nil {
		return fmt.Errorf("trigger onboarding email: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return port.ErrRemoteUserNotFound
	default:
		return fmt.Errorf("trigger onboarding email returned status %d", resp.StatusCode)
	}
}

// DeleteUser removes the remote identity. Callers delete remotely before
// touching the local row so a failure here leaves both sides intact.
func (c *Client) DeleteUser(ctx context.Context, remoteID string) error {
	req, err := c.adminRequest(ctx, http.MethodDelete, "/users/"+url.PathEscape(remoteID))
	if err != nil {
		return err
	}

	resp, err := c.do(req, nil)
	if err != nil {
		return fmt.Errorf("delete remote user: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return port.ErrRemoteUserNotFound
	default:
		return fmt.Errorf("delete remote user returned status %d", resp.StatusCode)
	}
}

var _ port.IdentityProvider = (*Client)(nil)
