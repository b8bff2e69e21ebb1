package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mwhitfield/aegis/internal/models"
)

// UserDirectory is the contract to the external identity directory. This
// service does not own user records; it resolves them per request and
// treats directory outages as ErrServiceUnavailable so callers can fail
// fast instead of minting tokens for unverified users.
type UserDirectory interface {
	// FindOrCreate resolves a user by login identifier, provisioning one
	// on first login. The bool reports whether the user was just created.
	FindOrCreate(ctx context.Context, identifier string) (*models.DirectoryUser, bool, error)
	// FindOrCreateByEmail resolves a user for a verified OAuth email.
	FindOrCreateByEmail(ctx context.Context, email, name string) (*models.DirectoryUser, bool, error)
	// GetByID fetches a user by directory id.
	GetByID(ctx context.Context, userID string) (*models.DirectoryUser, error)
}

// HTTPUserDirectory talks to the directory over its internal REST API.
type HTTPUserDirectory struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPUserDirectory creates a directory client with a hard timeout.
func NewHTTPUserDirectory(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPUserDirectory {
	return &HTTPUserDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (d *HTTPUserDirectory) FindOrCreate(ctx context.Context, identifier string) (*models.DirectoryUser, bool, error) {
	return d.resolve(ctx, map[string]string{"identifier": identifier})
}

func (d *HTTPUserDirectory) FindOrCreateByEmail(ctx context.Context, email, name string) (*models.DirectoryUser, bool, error) {
	return d.resolve(ctx, map[string]string{"email": email, "name": name})
}

type directoryResolveResponse struct {
	User    models.DirectoryUser `json:"user"`
	Created bool                 `json:"created"`
}

func (d *HTTPUserDirectory) resolve(ctx context.Context, payload map[string]string) (*models.DirectoryUser, bool, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal directory request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/internal/users/resolve", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build directory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("user directory unreachable", slog.String("error", err.Error()))
		return nil, false, models.ErrServiceUnavailable
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return nil, false, models.ErrValidation
	default:
		d.logger.Error("user directory error", slog.Int("status", resp.StatusCode))
		return nil, false, models.ErrServiceUnavailable
	}

	var out directoryResolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, models.ErrServiceUnavailable
	}

	return &out.User, out.Created || resp.StatusCode == http.StatusCreated, nil
}

func (d *HTTPUserDirectory) GetByID(ctx context.Context, userID string) (*models.DirectoryUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		d.baseURL+"/internal/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("user directory unreachable", slog.String("error", err.Error()))
		return nil, models.ErrServiceUnavailable
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, models.ErrNotFound
	default:
		d.logger.Error("user directory error", slog.Int("status", resp.StatusCode))
		return nil, models.ErrServiceUnavailable
	}

	var user models.DirectoryUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, models.ErrServiceUnavailable
	}

	return &user, nil
}
