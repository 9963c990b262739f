package service

import (
	"context"
	"fmt"

	"templora_comments/internal/model"
	"templora_comments/internal/repository"
)

type NotificationService struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(notificationRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

// List returns recent notifications for a user with the unread count.
func (s *NotificationService) List(ctx context.Context, userID int64, limit int) (*model.NotificationListResponse, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	notifications, unread, err := s.notificationRepo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}

	return &model.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
	}, nil
}

// MarkRead marks the given notifications read; with no ids, everything.
func (s *NotificationService) MarkRead(ctx context.Context, userID int64, ids []int64) error {
	if len(ids) == 0 {
		return s.notificationRepo.MarkAllRead(ctx, userID)
	}
	return s.notificationRepo.MarkRead(ctx, userID, ids)
}
