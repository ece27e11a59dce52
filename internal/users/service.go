package users

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"farewatch/internal/config"
	"farewatch/internal/logger"
	"farewatch/pkg/circuitbreaker"
	apperrors "farewatch/pkg/errors"
	"farewatch/pkg/logging"
	"farewatch/pkg/models"
)

// Service manages users and their alert preferences. It also serves the full
// user set to the matcher.
type Service struct {
	repo      Repository
	directory *circuitbreaker.Wrapper
	logger    logger.Logger
}

// NewService guards GetAllUsers with a breaker when cb is enabled. CRUD calls
// always go straight to the repository.
func NewService(repo Repository, cb config.CircuitBreakerConfig, log logger.Logger) *Service {
	s := &Service{repo: repo, logger: log}
	if cb.Enabled {
		s.directory = circuitbreaker.NewWrapper(circuitbreaker.FromSettings("user-directory", cb))
	}
	return s
}

// AddUser stores a new user. Preferences cannot be set at creation.
func (s *Service) AddUser(ctx context.Context, user models.User) (*models.User, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}

	user.ID = ""
	user.AlertPreferences = []models.AlertPreference{}

	if err := s.repo.Create(ctx, &user); err != nil {
		return nil, err
	}

	s.logger.InfowCtx(logging.WithUserID(ctx, user.ID), "User created")
	return &user, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repo.Get(ctx, id)
}

// ListUsers returns every user, or those whose name contains name
// case-insensitively.
func (s *Service) ListUsers(ctx context.Context, name string) ([]models.User, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return all, nil
	}

	needle := strings.ToLower(name)
	filtered := make([]models.User, 0, len(all))
	for _, u := range all {
		if strings.Contains(strings.ToLower(u.Name), needle) {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

// UpdateUser replaces the user's profile and keeps the stored preferences.
func (s *Service) UpdateUser(ctx context.Context, id string, user models.User) (*models.User, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	user.ID = existing.ID
	user.AlertPreferences = existing.AlertPreferences

	if err := s.repo.Replace(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.InfowCtx(logging.WithUserID(ctx, id), "User deleted")
	return deleted, nil
}

// AddAlertPreference appends pref to the user's preferences, assigning an id
// when pref has none.
func (s *Service) AddAlertPreference(ctx context.Context, userID string, pref models.AlertPreference) (*models.User, error) {
	if err := validatePreference(pref); err != nil {
		return nil, err
	}

	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if pref.PreferenceID == "" {
		pref.PreferenceID = primitive.NewObjectID().Hex()
	} else if indexOf(user.AlertPreferences, pref.PreferenceID) >= 0 {
		return nil, apperrors.ErrConflict.WithMessage("preference %s already exists for user %s", pref.PreferenceID, userID)
	}

	user.AlertPreferences = append(user.AlertPreferences, pref)
	if err := s.repo.Replace(ctx, *user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) UpdateAlertPreference(ctx context.Context, userID, preferenceID string, pref models.AlertPreference) (*models.User, error) {
	if err := validatePreference(pref); err != nil {
		return nil, err
	}

	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := indexOf(user.AlertPreferences, preferenceID)
	if i < 0 {
		return nil, preferenceNotFound(userID, preferenceID)
	}

	user.AlertPreferences[i].Destination = pref.Destination
	user.AlertPreferences[i].MaxPrice = pref.MaxPrice
	user.AlertPreferences[i].Currency = pref.Currency

	if err := s.repo.Replace(ctx, *user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) DeleteAlertPreference(ctx context.Context, userID, preferenceID string) (*models.User, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := indexOf(user.AlertPreferences, preferenceID)
	if i < 0 {
		return nil, preferenceNotFound(userID, preferenceID)
	}

	user.AlertPreferences = append(user.AlertPreferences[:i], user.AlertPreferences[i+1:]...)
	if err := s.repo.Replace(ctx, *user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetAllUsers returns the complete user set with no caching.
func (s *Service) GetAllUsers(ctx context.Context) ([]models.User, error) {
	if s.directory == nil {
		return s.repo.List(ctx)
	}

	result, err := s.directory.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.repo.List(ctx)
	})
	if err != nil {
		if s.directory.IsOpen() {
			return nil, fmt.Errorf("circuit breaker is open for user-directory: %w", err)
		}
		return nil, err
	}

	all, ok := result.([]models.User)
	if !ok {
		return nil, fmt.Errorf("repository returned invalid result type %T", result)
	}
	return all, nil
}

func indexOf(prefs []models.AlertPreference, id string) int {
	for i, p := range prefs {
		if p.PreferenceID == id {
			return i
		}
	}
	return -1
}

func preferenceNotFound(userID, preferenceID string) error {
	return apperrors.ErrNotFound.WithMessage("user with ID %s or preference with ID %s not found", userID, preferenceID)
}

func validateUser(u models.User) error {
	if strings.TrimSpace(u.Name) == "" {
		return apperrors.ErrValidation.WithMessage("name is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return apperrors.ErrValidation.WithMessage("email is required")
	}
	return nil
}

func validatePreference(p models.AlertPreference) error {
	switch {
	case strings.TrimSpace(p.Destination) == "":
		return apperrors.ErrValidation.WithMessage("destination is required")
	case strings.TrimSpace(p.Currency) == "":
		return apperrors.ErrValidation.WithMessage("currency is required")
	case p.MaxPrice.IsNegative():
		return apperrors.ErrValidation.WithMessage("maxPrice must be non-negative")
	}
	return nil
}
