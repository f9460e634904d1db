package user

import (
	"context"
	"math"
	"time"

	"quizhub-subscription-svc/src/internal/config"
	"quizhub-subscription-svc/src/internal/models"

	"github.com/sirupsen/logrus"
)

type Service interface {
	GetAllUsers(ctx context.Context, req *GetAllUsersRequest) (*GetAllUsersResponse, error)
	GetUserStats(ctx context.Context) (*models.Stats, error)
}

type userService struct {
	userRepository Repository
	cfg            *config.Configuration
}

func NewUserService(userRepository Repository, cfg *config.Configuration) Service {
	return &userService{
		userRepository: userRepository,
		cfg:            cfg,
	}
}

func (s *userService) GetAllUsers(ctx context.Context, req *GetAllUsersRequest) (*GetAllUsersResponse, error) {
	// Validate and set defaults
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}
	if req.Page <= 0 {
		req.Page = 1
	}

	if req.Premium != "" && req.Premium != "true" && req.Premium != "false" {
		return nil, models.ErrInvalidParams
	}

	logrus.WithFields(logrus.Fields{
		"page":    req.Page,
		"limit":   req.Limit,
		"premium": req.Premium,
		"search":  req.Search,
	}).Debug("Getting all users")

	users, totalCount, err := s.userRepository.GetAllUsers(ctx, req)
	if err != nil {
		logrus.WithError(err).Error("Failed to get users from repository")
		return nil, err
	}

	profiles := make([]*Profile, len(users))
	for i, u := range users {
		profiles[i] = u.ToProfile()
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(req.Limit)))

	response := &GetAllUsersResponse{
		Users:      profiles,
		TotalCount: totalCount,
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: totalPages,
	}

	logrus.WithFields(logrus.Fields{
		"users_count": len(profiles),
		"total_count": totalCount,
		"total_pages": totalPages,
	}).Info("Successfully retrieved users")

	return response, nil
}

func (s *userService) GetUserStats(ctx context.Context) (*models.Stats, error) {
	logrus.Debug("Getting user statistics")

	warningWindow := time.Duration(s.cfg.Subscription.WarningDays) * 24 * time.Hour

	stats, err := s.userRepository.GetUserStats(ctx, warningWindow)
	if err != nil {
		logrus.WithError(err).Error("Failed to get user stats from repository")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"total":        stats.Total,
		"premium":      stats.Premium,
		"free":         stats.Free,
		"expiringSoon": stats.ExpiringSoon,
		"newThisMonth": stats.NewThisMonth,
	}).Info("Successfully retrieved user statistics")

	return stats, nil
}
