package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/internal/model"
	"github.com/Freeeeeet/timetutor/internal/repository"
)

func TestEnsureUser(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewUserRepository(docstore.NewMemoryStore())
	svc := NewUserService(repo, zap.NewNop())

	user, err := svc.EnsureUser(ctx, "u1", "Anna", model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.Name)

	// пустое имя не затирает сохранённое
	user, err = svc.EnsureUser(ctx, "u1", "", model.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.Name)

	_, err = svc.EnsureUser(ctx, "u1", "Anna K.", model.RoleTeacher)
	require.NoError(t, err)
	stored, err := svc.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Anna K.", stored.Name)

	_, err = svc.EnsureUser(ctx, "u2", "X", "admin")
	assert.Equal(t, KindAuth, Classify(err))

	_, err = svc.EnsureUser(ctx, " ", "X", model.RoleStudent)
	assert.Equal(t, KindAuth, Classify(err))

	_, err = svc.GetByID(ctx, "missing")
	assert.Equal(t, KindValidation, Classify(err))
}

func TestNotificationService_MarkRead(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewNotificationRepository(docstore.NewMemoryStore())
	svc := NewNotificationService(repo, zap.NewNop())

	n := &model.Notification{TargetUserID: "s1", Title: "t", Message: "m", Timestamp: 1, ExpiresAt: 2}
	require.NoError(t, repo.Create(ctx, n))

	assert.Equal(t, KindAuth, Classify(svc.MarkRead(ctx, "s2", n.ID)))
	assert.Equal(t, KindValidation, Classify(svc.MarkRead(ctx, "s1", "missing")))
	require.NoError(t, svc.MarkRead(ctx, "s1", n.ID))

	list, err := svc.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}
