package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/timetutor/internal/docstore"
	"github.com/Freeeeeet/timetutor/internal/model"
)

func newLesson(date string, status model.LessonStatus) *model.Lesson {
	return &model.Lesson{
		LessonTemplate: model.LessonTemplate{
			StartTime: "10:00", EndTime: "11:00",
			TeacherID: "t1", StudentID: "s1", CategoryID: "c1",
		},
		Date:   date,
		Status: status,
	}
}

func TestLessonRepository_CreateGetList(t *testing.T) {
	ctx := context.Background()
	repo := NewLessonRepository(docstore.NewMemoryStore())

	for _, d := range []string{"2025-03-17", "2025-03-03", "2025-03-10"} {
		require.NoError(t, repo.Create(ctx, newLesson(d, model.LessonStatusScheduled)))
	}
	other := newLesson("2025-03-05", model.LessonStatusScheduled)
	other.StudentID = "s2"
	require.NoError(t, repo.Create(ctx, other))
	require.NotEmpty(t, other.ID)

	got, err := repo.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "s2", got.StudentID)
	assert.False(t, got.CreatedAt.IsZero())

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	lessons, err := repo.List(ctx, LessonFilter{TeacherID: "t1", StudentID: "s1", From: "2025-03-04"})
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, "2025-03-10", lessons[0].Date)
	assert.Equal(t, "2025-03-17", lessons[1].Date)

	dates, err := repo.ExistingDates(ctx, "t1", "s1", "10:00")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"2025-03-03": true, "2025-03-10": true, "2025-03-17": true}, dates)
}

func TestLessonRepository_GetUnbilled(t *testing.T) {
	ctx := context.Background()
	repo := NewLessonRepository(docstore.NewMemoryStore())

	delivered := newLesson("2025-03-03", model.LessonStatusDelivered)
	absent := newLesson("2025-03-04", model.LessonStatusAbsent)
	scheduled := newLesson("2025-03-05", model.LessonStatusScheduled)
	billed := newLesson("2025-03-06", model.LessonStatusDelivered)
	billed.IsBilled = true
	for _, l := range []*model.Lesson{delivered, absent, scheduled, billed} {
		require.NoError(t, repo.Create(ctx, l))
	}

	lessons, err := repo.GetUnbilled(ctx, "t1", "s1")
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	assert.Equal(t, delivered.ID, lessons[0].ID)
	assert.Equal(t, absent.ID, lessons[1].ID)
}

func TestInvoiceRepository_CreateWithLessons(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	lessons := NewLessonRepository(store)
	invoices := NewInvoiceRepository(store)

	a := newLesson("2025-03-03", model.LessonStatusDelivered)
	b := newLesson("2025-03-10", model.LessonStatusDelivered)
	require.NoError(t, lessons.Create(ctx, a))
	require.NoError(t, lessons.Create(ctx, b))

	inv := &model.Invoice{
		ID: "inv-1", TeacherID: "t1", StudentID: "s1", Date: "2025-03-11",
		TotalAmount: decimal.NewFromInt(40), LessonIDs: []string{a.ID, b.ID},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, invoices.CreateWithLessons(ctx, inv))

	for _, id := range inv.LessonIDs {
		l, err := lessons.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, l.IsBilled)
		require.NotNil(t, l.InvoiceID)
		assert.Equal(t, "inv-1", *l.InvoiceID)
	}

	saved, err := invoices.GetByID(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, saved.TotalAmount.Equal(decimal.NewFromInt(40)))
	assert.ElementsMatch(t, inv.LessonIDs, saved.LessonIDs)

	again := *inv
	again.ID = "inv-2"
	err = invoices.CreateWithLessons(ctx, &again)
	assert.ErrorIs(t, err, docstore.ErrConflict)
	none, err := invoices.GetByID(ctx, "inv-2")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, invoices.MarkPaid(ctx, "inv-1", time.Now()))
	saved, err = invoices.GetByID(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, saved.Paid)
	assert.NotNil(t, saved.PaidAt)
}

func TestNotificationRepository_ExpiredIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository(docstore.NewMemoryStore())
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{-3 * time.Hour, time.Hour, -time.Hour, 0} {
		n := &model.Notification{
			TargetUserID: "u1",
			Title:        "t",
			Message:      "m",
			Timestamp:    int64(i),
			ExpiresAt:    now.Add(offset).UnixMilli(),
		}
		require.NoError(t, repo.Create(ctx, n))
	}

	ids, err := repo.ExpiredIDs(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	ids, err = repo.ExpiredIDs(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	require.NoError(t, repo.DeleteBatch(ctx, ids))
	ids, err = repo.ExpiredIDs(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	list, err := repo.GetByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCategoryRepository_Rates(t *testing.T) {
	ctx := context.Background()
	repo := NewCategoryRepository(docstore.NewMemoryStore())

	c := &model.Category{TeacherID: "t1", Name: "Math", HourlyRate: decimal.RequireFromString("20.50")}
	require.NoError(t, repo.Create(ctx, c))

	rates, err := repo.Rates(ctx, []string{c.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, rates, 1)
	assert.True(t, rates[c.ID].Equal(decimal.RequireFromString("20.5")))

	require.NoError(t, repo.UpdateRate(ctx, c.ID, decimal.NewFromInt(25)))
	rates, err = repo.Rates(ctx, []string{c.ID})
	require.NoError(t, err)
	assert.True(t, rates[c.ID].Equal(decimal.NewFromInt(25)))
}

func TestLessonRepository_UpdateClearsDroppedFields(t *testing.T) {
	ctx := context.Background()
	repo := NewLessonRepository(docstore.NewMemoryStore())

	end := "2025-03-24"
	lesson := newLesson("2025-03-03", model.LessonStatusScheduled)
	lesson.RecurrenceType = "weekly"
	lesson.RecurrenceEndDate = &end
	lesson.RecurrenceDays = []int{1}
	require.NoError(t, repo.Create(ctx, lesson))

	lesson.RecurrenceType = "none"
	lesson.RecurrenceEndDate = nil
	lesson.RecurrenceDays = nil
	require.NoError(t, repo.Update(ctx, lesson))

	got, err := repo.GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.Equal(t, "none", got.RecurrenceType)
	assert.Nil(t, got.RecurrenceEndDate)
	assert.Empty(t, got.RecurrenceDays)

	missing := newLesson("2025-03-04", model.LessonStatusScheduled)
	missing.ID = "nope"
	assert.ErrorIs(t, repo.Update(ctx, missing), docstore.ErrNotFound)
}

func TestLessonRepository_BilledLessonIsFrozen(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	lessons := NewLessonRepository(store)
	invoices := NewInvoiceRepository(store)

	lesson := newLesson("2025-03-03", model.LessonStatusDelivered)
	require.NoError(t, lessons.Create(ctx, lesson))
	stale := *lesson

	require.NoError(t, invoices.CreateWithLessons(ctx, &model.Invoice{
		ID: "inv-1", TeacherID: "t1", StudentID: "s1", Date: "2025-03-04",
		LessonIDs: []string{lesson.ID}, CreatedAt: time.Now().UTC(),
	}))

	stale.Color = "#ff0000"
	assert.ErrorIs(t, lessons.Update(ctx, &stale), ErrLessonBilled)
	assert.ErrorIs(t, lessons.UpdateStatus(ctx, lesson.ID, model.LessonStatusScheduled), ErrLessonBilled)
	assert.ErrorIs(t, lessons.Delete(ctx, lesson.ID), ErrLessonBilled)

	got, err := lessons.GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsBilled)
	require.NotNil(t, got.InvoiceID)
	assert.Equal(t, "inv-1", *got.InvoiceID)
	assert.Equal(t, model.LessonStatusDelivered, got.Status)
	assert.Empty(t, got.Color)
}

func TestLessonRepository_UpdateKeepsBillingFields(t *testing.T) {
	ctx := context.Background()
	repo := NewLessonRepository(docstore.NewMemoryStore())

	lesson := newLesson("2025-03-03", model.LessonStatusScheduled)
	require.NoError(t, repo.Create(ctx, lesson))

	// устаревшая копия со счётом не может отметить занятие выставленным
	inv := "inv-x"
	lesson.IsBilled = true
	lesson.InvoiceID = &inv
	require.NoError(t, repo.Update(ctx, lesson))

	got, err := repo.GetByID(ctx, lesson.ID)
	require.NoError(t, err)
	assert.False(t, got.IsBilled)
	assert.Nil(t, got.InvoiceID)
}

func TestInvoiceRepository_RequiresResolvedAttendanceAtCommit(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	lessons := NewLessonRepository(store)
	invoices := NewInvoiceRepository(store)

	a := newLesson("2025-03-03", model.LessonStatusDelivered)
	b := newLesson("2025-03-10", model.LessonStatusDelivered)
	require.NoError(t, lessons.Create(ctx, a))
	require.NoError(t, lessons.Create(ctx, b))
	require.NoError(t, lessons.UpdateStatus(ctx, b.ID, model.LessonStatusScheduled))

	err := invoices.CreateWithLessons(ctx, &model.Invoice{
		ID: "inv-1", TeacherID: "t1", StudentID: "s1", Date: "2025-03-11",
		LessonIDs: []string{a.ID, b.ID}, CreatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, docstore.ErrConflict)

	for _, id := range []string{a.ID, b.ID} {
		l, err := lessons.GetByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, l.IsBilled)
	}
	assert.Equal(t, 0, store.Len(InvoicesCollection))
}
