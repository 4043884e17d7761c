package sqlstore

import (
	"context"
	"testing"

	"devflow/internal/models"
)

func mustNotification(t *testing.T, s *Store, userID, title string) models.Notification {
	t.Helper()
	n, err := s.CreateNotification(context.Background(), models.Notification{
		UserID: userID, Type: models.NotificationTaskUpdated, Title: title, Message: title,
	})
	if err != nil {
		t.Fatalf("create notification: %v", err)
	}
	return n
}

func TestNotificationsScopedToOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")

	first := mustNotification(t, s, alice.ID, "first")
	mustNotification(t, s, alice.ID, "second")
	bobs := mustNotification(t, s, bob.ID, "bob")

	list, total, err := s.ListNotifications(ctx, alice.ID, nil, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || list[0].Title != "second" {
		t.Fatalf("total=%d first=%q", total, list[0].Title)
	}

	if changed, _ := s.MarkNotificationRead(ctx, alice.ID, bobs.ID); changed {
		t.Fatal("alice must not mark bob's notification")
	}
	if changed, _ := s.MarkNotificationRead(ctx, alice.ID, first.ID); !changed {
		t.Fatal("expected first mark to change the row")
	}
	if changed, _ := s.MarkNotificationRead(ctx, alice.ID, first.ID); changed {
		t.Fatal("expected second mark to be a no-op")
	}

	unread := false
	_, total, _ = s.ListNotifications(ctx, alice.ID, &unread, 0, 0)
	if total != 1 {
		t.Fatalf("unread total = %d, want 1", total)
	}

	if changed, err := s.MarkAllNotificationsRead(ctx, alice.ID); err != nil || !changed {
		t.Fatalf("mark all = %v, %v", changed, err)
	}
	if n, _ := s.CountUnread(ctx, alice.ID); n != 0 {
		t.Fatalf("alice unread = %d", n)
	}
	if n, _ := s.CountUnread(ctx, bob.ID); n != 1 {
		t.Fatalf("bob unread = %d, want 1", n)
	}

	if deleted, _ := s.DeleteNotification(ctx, alice.ID, bobs.ID); deleted {
		t.Fatal("alice must not delete bob's notification")
	}
	if deleted, _ := s.DeleteNotification(ctx, bob.ID, bobs.ID); !deleted {
		t.Fatal("expected bob to delete his notification")
	}
}

func TestCommentsSoftDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	f := mustHierarchy(t, s)
	task := mustTask(t, s, f, "a", nil)

	first, err := s.CreateComment(ctx, models.Comment{TaskID: task.ID, UserID: f.user.ID, Content: "first"})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if _, err := s.CreateComment(ctx, models.Comment{TaskID: task.ID, UserID: f.user.ID, Content: "second"}); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	edited, err := s.UpdateCommentContent(ctx, first.ID, "first (edited)")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !edited.IsEdited || edited.UserName != f.user.Name {
		t.Fatalf("edited = %+v", edited)
	}

	if err := s.SoftDeleteComment(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := s.ListComments(ctx, task.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Content != "second" {
		t.Fatalf("comments = %+v", list)
	}
	if _, err := s.UpdateCommentContent(ctx, first.ID, "again"); err == nil {
		t.Fatal("expected deleted comment to be immutable")
	}
}
