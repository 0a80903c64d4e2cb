package repository

import (
	"context"
	"testing"
	"time"

	"quad/internal/messagecrypt"
	"quad/internal/models"
	"quad/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionRepository_Network(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewConnectionRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")
	c := testutil.CreateUser(t, db, "c")
	d := testutil.CreateUser(t, db, "d")

	testutil.Connect(t, db, a.ID, b.ID, models.ConnectionStatusAccepted)
	testutil.Connect(t, db, c.ID, a.ID, models.ConnectionStatusAccepted)
	testutil.Connect(t, db, b.ID, d.ID, models.ConnectionStatusAccepted)
	pending := testutil.Connect(t, db, d.ID, a.ID, models.ConnectionStatusPending)

	t.Run("ConnectedUsers", func(t *testing.T) {
		users, err := repo.ConnectedUsers(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "b", users[0].Username)
		assert.Equal(t, "c", users[1].Username)
	})

	t.Run("ConnectedIDsFor", func(t *testing.T) {
		byUser, err := repo.ConnectedIDsFor(ctx, []uint{a.ID, b.ID})
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{b.ID, c.ID}, byUser[a.ID])
		assert.ElementsMatch(t, []uint{a.ID, d.ID}, byUser[b.ID])
	})

	t.Run("RelatedIDs includes pending", func(t *testing.T) {
		ids, err := repo.RelatedIDs(ctx, a.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, []uint{b.ID, c.ID, d.ID}, ids)
	})

	t.Run("SecondDegreeIDs", func(t *testing.T) {
		ids, err := repo.SecondDegreeIDs(ctx, c.ID, 10)
		require.NoError(t, err)
		assert.Equal(t, []uint{b.ID}, ids)
	})

	t.Run("Pending and Sent", func(t *testing.T) {
		in, err := repo.Pending(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, in, 1)
		assert.Equal(t, pending.ID, in[0].ID)
		assert.Equal(t, "d", in[0].Requester.Username)

		out, err := repo.Sent(ctx, d.ID)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "a", out[0].Addressee.Username)
	})

	t.Run("Between is direction agnostic", func(t *testing.T) {
		conn, err := repo.Between(ctx, a.ID, d.ID)
		require.NoError(t, err)
		require.NotNil(t, conn)
		assert.Equal(t, pending.ID, conn.ID)

		none, err := repo.Between(ctx, c.ID, d.ID)
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

func TestConnectionRepository_Create_OnePerPair(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewConnectionRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db, "a")
	b := testutil.CreateUser(t, db, "b")

	first := &models.Connection{RequesterID: a.ID, AddresseeID: b.ID, Status: models.ConnectionStatusPending}
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, models.ConnectionPairKey(a.ID, b.ID), first.PairKey)

	reverse := &models.Connection{RequesterID: b.ID, AddresseeID: a.ID, Status: models.ConnectionStatusPending}
	err := repo.Create(ctx, reverse)
	assert.Equal(t, models.CodeConflict, appErrCode(t, err))

	var count int64
	require.NoError(t, db.Model(&models.Connection{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.Delete(ctx, first.ID))
	again := &models.Connection{RequesterID: b.ID, AddresseeID: a.ID, Status: models.ConnectionStatusPending}
	require.NoError(t, repo.Create(ctx, again))
}

func TestChatRepository_MessagesAndUnread(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	conv := &models.Conversation{CreatedBy: alice.ID}
	require.NoError(t, repo.CreateConversation(ctx, conv, []uint{alice.ID, bob.ID}))
	require.Len(t, conv.Participants, 2)

	for _, text := range []string{"hey bob", "lunch?"} {
		msg := &models.Message{ConversationID: conv.ID, SenderID: alice.ID, Content: text}
		require.NoError(t, repo.CreateMessage(ctx, msg))
		assert.Equal(t, text, msg.Content)
	}

	var raw []string
	require.NoError(t, db.Raw("SELECT content FROM messages ORDER BY id").Scan(&raw).Error)
	require.Len(t, raw, 2)
	for _, r := range raw {
		assert.True(t, messagecrypt.IsSealed(r), "content must be encrypted at rest")
	}

	msgs, err := repo.ListMessages(ctx, conv.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hey bob", msgs[0].Content)
	assert.Equal(t, "lunch?", msgs[1].Content)
	assert.Equal(t, "alice", msgs[0].Sender.Username)

	latest, err := repo.LatestMessages(ctx, []uint{conv.ID})
	require.NoError(t, err)
	require.Contains(t, latest, conv.ID)
	assert.Equal(t, "lunch?", latest[conv.ID].Content)

	convs, err := repo.ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].UnreadCount)

	require.NoError(t, repo.MarkRead(ctx, conv.ID, bob.ID))
	p, err := repo.GetParticipant(ctx, conv.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.UnreadCount)
	assert.NotNil(t, p.LastReadAt)

	convs, err = repo.ListForUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, convs[0].UnreadCount, "senders never count their own messages")
}

func TestChatRepository_FindDirect(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	none, err := repo.FindDirect(ctx, "1:2")
	require.NoError(t, err)
	assert.Nil(t, none)

	key := "1:2"
	conv := &models.Conversation{CreatedBy: 1, DirectKey: &key}
	require.NoError(t, repo.CreateConversation(ctx, conv, []uint{1, 2}))

	found, err := repo.FindDirect(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, conv.ID, found.ID)

	dup := &models.Conversation{CreatedBy: 2, DirectKey: &key}
	err = repo.CreateConversation(ctx, dup, []uint{1, 2})
	assert.Equal(t, models.CodeConflict, appErrCode(t, err))
}

func TestChatRepository_GetParticipant_IgnoresDeletedConversations(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	conv := &models.Conversation{CreatedBy: 1}
	require.NoError(t, repo.CreateConversation(ctx, conv, []uint{1, 2}))

	p, err := repo.GetParticipant(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, p)

	// Soft delete alone leaves the participant rows in place.
	require.NoError(t, db.Delete(&models.Conversation{}, conv.ID).Error)
	p, err = repo.GetParticipant(ctx, conv.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, p)

	other := &models.Conversation{CreatedBy: 1}
	require.NoError(t, repo.CreateConversation(ctx, other, []uint{1, 2}))
	require.NoError(t, repo.DeleteConversation(ctx, other.ID))
	var left int64
	require.NoError(t, db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", other.ID).Count(&left).Error)
	assert.Zero(t, left)
}

func TestBookRepository_BorrowAndReturn(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewBookRepository(db)
	ctx := context.Background()

	owner := testutil.CreateUser(t, db, "owner")
	reader := testutil.CreateUser(t, db, "reader")

	book := &models.Book{OwnerID: owner.ID, Title: "Linear Algebra Done Right", Author: "Axler", Available: true, CourseCode: "MATH221"}
	require.NoError(t, repo.Create(ctx, book))

	loan := &models.BookLoan{BookID: book.ID, BorrowerID: reader.ID, DueAt: time.Now().Add(models.LoanPeriod)}
	require.NoError(t, repo.Borrow(ctx, loan))

	again := &models.BookLoan{BookID: book.ID, BorrowerID: reader.ID, DueAt: time.Now()}
	assert.Equal(t, models.CodeConflict, appErrCode(t, repo.Borrow(ctx, again)))

	open, err := repo.OpenLoan(ctx, book.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, loan.ID, open.ID)

	available := false
	out, total, err := repo.Search(ctx, BookFilter{Available: &available})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, out, 1)

	require.NoError(t, repo.Return(ctx, open))
	reloaded, err := repo.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Available)

	loans, err := repo.LoansByBorrower(ctx, reader.ID, false)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.False(t, loans[0].Open())
	assert.Equal(t, "Linear Algebra Done Right", loans[0].Book.Title)
}

func TestBookRepository_Search(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewBookRepository(db)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")

	for _, b := range []models.Book{
		{Title: "Calculus", Author: "Spivak", CourseCode: "MATH101", ISBN: "9780914098911"},
		{Title: "Algorithms", Author: "Sedgewick", CourseCode: "CS201"},
		{Title: "Concrete Mathematics", Author: "Knuth", CourseCode: "CS201"},
	} {
		b.OwnerID = owner.ID
		b.Available = true
		require.NoError(t, repo.Create(ctx, &b))
	}

	byAuthor, total, err := repo.Search(ctx, BookFilter{Query: "knuth"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Concrete Mathematics", byAuthor[0].Title)

	byCourse, _, err := repo.Search(ctx, BookFilter{Course: "cs201"})
	require.NoError(t, err)
	require.Len(t, byCourse, 2)
	assert.Equal(t, "Algorithms", byCourse[0].Title)

	byISBN, _, err := repo.Search(ctx, BookFilter{Query: "978-0914098911"})
	require.NoError(t, err)
	require.Len(t, byISBN, 1)
	assert.Equal(t, "Calculus", byISBN[0].Title)
}

func TestForumAndPostRepositories(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	forums := NewForumRepository(db)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")

	require.NoError(t, forums.Upsert(ctx, &models.Forum{Slug: "housing", Name: "Housing", Position: 2}))
	require.NoError(t, forums.Upsert(ctx, &models.Forum{Slug: "courses", Name: "Courses", Position: 1}))
	require.NoError(t, forums.Upsert(ctx, &models.Forum{Slug: "courses", Name: "Courses & Classes", Position: 1}))

	courses, err := forums.GetBySlug(ctx, "courses")
	require.NoError(t, err)
	assert.Equal(t, "Courses & Classes", courses.Name)

	old := &models.Post{ForumID: courses.ID, UserID: author.ID, Title: "old", Body: "x", CreatedAt: time.Now().Add(-2 * time.Hour)}
	pinned := &models.Post{ForumID: courses.ID, UserID: author.ID, Title: "rules", Body: "x", IsPinned: true, CreatedAt: time.Now().Add(-3 * time.Hour)}
	fresh := &models.Post{ForumID: courses.ID, UserID: author.ID, Title: "new", Body: "x"}
	for _, p := range []*models.Post{old, pinned, fresh} {
		require.NoError(t, posts.Create(ctx, p))
	}
	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: old.ID, UserID: author.ID, Body: "first"}))

	list, total, err := posts.ListByForum(ctx, courses.ID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"rules", "new", "old"}, []string{list[0].Title, list[1].Title, list[2].Title})
	assert.Equal(t, 1, list[2].CommentsCount)

	all, err := forums.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "courses", all[0].Slug)
	assert.Equal(t, 3, all[0].PostCount)
}

func TestNotificationRepository(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "u")
	other := testutil.CreateUser(t, db, "other")

	n1 := &models.Notification{RecipientID: u.ID, ActorID: &other.ID, Type: models.NotificationNetworkRequest, TargetType: "connection", TargetID: 9, Message: "other wants to connect"}
	n2 := &models.Notification{RecipientID: u.ID, Type: models.NotificationSystem, Message: "welcome"}
	require.NoError(t, repo.Create(ctx, n1))
	require.NoError(t, repo.Create(ctx, n2))

	count, err := repo.UnreadCount(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	assert.Equal(t, models.CodeNotFound, appErrCode(t, repo.MarkRead(ctx, n1.ID, other.ID)))

	require.NoError(t, repo.MarkReadByTarget(ctx, u.ID, models.NotificationNetworkRequest, "connection", 9))
	unread, err := repo.ListByRecipient(ctx, u.ID, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, n2.ID, unread[0].ID)

	marked, err := repo.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)

	assert.Equal(t, models.CodeNotFound, appErrCode(t, repo.Delete(ctx, n2.ID, other.ID)))
	require.NoError(t, repo.Delete(ctx, n2.ID, u.ID))

	require.NoError(t, repo.DeleteByTarget(ctx, models.NotificationNetworkRequest, "connection", 9))
	rest, err := repo.ListByRecipient(ctx, u.ID, false, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, rest)
}
