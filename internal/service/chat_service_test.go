package service

import (
	"context"
	"strings"
	"testing"

	"quad/internal/messagecrypt"
	"quad/internal/models"
	"quad/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, "3:9", DirectKey(9, 3))
	assert.Equal(t, DirectKey(3, 9), DirectKey(9, 3))
}

func TestChatService_CreateConversationValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	cy := testutil.CreateUser(t, f.db, "cy")

	tests := []struct {
		name string
		in   CreateConversationInput
		code string
	}{
		{"no participants", CreateConversationInput{UserID: ada.ID}, models.CodeValidation},
		{"only self", CreateConversationInput{UserID: ada.ID, ParticipantIDs: []uint{ada.ID}}, models.CodeValidation},
		{"group without name", CreateConversationInput{UserID: ada.ID, IsGroup: true, ParticipantIDs: []uint{bob.ID, cy.ID}}, models.CodeValidation},
		{"dm with two others", CreateConversationInput{UserID: ada.ID, ParticipantIDs: []uint{bob.ID, cy.ID}}, models.CodeValidation},
		{"unknown participant", CreateConversationInput{UserID: ada.ID, ParticipantIDs: []uint{404}}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.chat.CreateConversation(ctx, tt.in)
			requireCode(t, err, tt.code)
		})
	}
}

func TestChatService_DirectConversationIsDeduplicated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")

	first, err := f.chat.CreateConversation(ctx, CreateConversationInput{UserID: ada.ID, ParticipantIDs: []uint{bob.ID}})
	require.NoError(t, err)
	require.Len(t, first.Participants, 2)

	second, err := f.chat.CreateConversation(ctx, CreateConversationInput{UserID: bob.ID, ParticipantIDs: []uint{ada.ID, ada.ID}})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	t.Run("leaving a DM lets the pair start over", func(t *testing.T) {
		require.NoError(t, f.chat.LeaveConversation(ctx, first.ID, ada.ID))
		fresh, err := f.chat.CreateConversation(ctx, CreateConversationInput{UserID: ada.ID, ParticipantIDs: []uint{bob.ID}})
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, fresh.ID)
	})
}

func TestChatService_LeftDirectConversationIsClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")

	conv, err := f.chat.CreateConversation(ctx, CreateConversationInput{UserID: ada.ID, ParticipantIDs: []uint{bob.ID}})
	require.NoError(t, err)
	_, err = f.chat.SendMessage(ctx, SendMessageInput{UserID: ada.ID, ConversationID: conv.ID, Content: "before I go"})
	require.NoError(t, err)

	require.NoError(t, f.chat.LeaveConversation(ctx, conv.ID, ada.ID))

	var members int64
	require.NoError(t, f.db.Model(&models.ConversationParticipant{}).
		Where("conversation_id = ?", conv.ID).Count(&members).Error)
	assert.Zero(t, members)

	_, err = f.chat.GetMessages(ctx, conv.ID, bob.ID, 10, 0)
	requireCode(t, err, models.CodeNotFound)
	_, err = f.chat.SendMessage(ctx, SendMessageInput{UserID: bob.ID, ConversationID: conv.ID, Content: "still there?"})
	requireCode(t, err, models.CodeNotFound)
	requireCode(t, f.chat.MarkRead(ctx, conv.ID, bob.ID), models.CodeNotFound)

	convs, err := f.chat.ListConversations(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestChatService_MessagingFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	cy := testutil.CreateUser(t, f.db, "cy")
	eve := testutil.CreateUser(t, f.db, "eve")

	conv, err := f.chat.CreateConversation(ctx, CreateConversationInput{
		UserID:         ada.ID,
		Name:           "Study group",
		IsGroup:        true,
		ParticipantIDs: []uint{bob.ID, cy.ID},
	})
	require.NoError(t, err)

	msg, err := f.chat.SendMessage(ctx, SendMessageInput{UserID: ada.ID, ConversationID: conv.ID, Content: "  see you at the library  "})
	require.NoError(t, err)
	assert.Equal(t, "see you at the library", msg.Content)
	assert.Equal(t, "ada", msg.Sender.Username)

	t.Run("content is encrypted at rest", func(t *testing.T) {
		var raw string
		require.NoError(t, f.db.Raw("SELECT content FROM messages WHERE id = ?", msg.ID).Scan(&raw).Error)
		assert.True(t, messagecrypt.IsSealed(raw))
		assert.NotContains(t, raw, "library")
	})

	t.Run("validation and membership", func(t *testing.T) {
		_, err := f.chat.SendMessage(ctx, SendMessageInput{UserID: ada.ID, ConversationID: conv.ID, Content: "   "})
		requireCode(t, err, models.CodeValidation)
		_, err = f.chat.SendMessage(ctx, SendMessageInput{UserID: ada.ID, ConversationID: conv.ID, Content: strings.Repeat("x", maxMessageLen+1)})
		requireCode(t, err, models.CodeValidation)
		_, err = f.chat.SendMessage(ctx, SendMessageInput{UserID: eve.ID, ConversationID: conv.ID, Content: "hi"})
		requireCode(t, err, models.CodeForbidden)
		_, err = f.chat.GetMessages(ctx, conv.ID, eve.ID, 10, 0)
		requireCode(t, err, models.CodeForbidden)
		_, err = f.chat.GetMessages(ctx, 9999, ada.ID, 10, 0)
		requireCode(t, err, models.CodeNotFound)
	})

	t.Run("others are notified", func(t *testing.T) {
		for _, u := range []*models.User{bob, cy} {
			assert.Contains(t, f.pub.typesFor(u.ID), EventMessageReceived)
			n, err := f.notifications.UnreadCount(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n)
		}
		assert.NotContains(t, f.pub.typesFor(ada.ID), EventMessageReceived)
	})

	_, err = f.chat.SendMessage(ctx, SendMessageInput{UserID: bob.ID, ConversationID: conv.ID, Content: "on my way"})
	require.NoError(t, err)

	t.Run("messages come back in order as plaintext", func(t *testing.T) {
		msgs, err := f.chat.GetMessages(ctx, conv.ID, cy.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "see you at the library", msgs[0].Content)
		assert.Equal(t, "on my way", msgs[1].Content)
	})

	t.Run("list carries unread counts and last message", func(t *testing.T) {
		convs, err := f.chat.ListConversations(ctx, cy.ID)
		require.NoError(t, err)
		require.Len(t, convs, 1)
		assert.Equal(t, 2, convs[0].UnreadCount)
		require.NotNil(t, convs[0].LastMessage)
		assert.Equal(t, "on my way", convs[0].LastMessage.Content)
	})

	t.Run("mark read clears unread state", func(t *testing.T) {
		require.NoError(t, f.chat.MarkRead(ctx, conv.ID, cy.ID))
		convs, err := f.chat.ListConversations(ctx, cy.ID)
		require.NoError(t, err)
		assert.Zero(t, convs[0].UnreadCount)
		n, err := f.notifications.UnreadCount(ctx, cy.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("group survives until the last member leaves", func(t *testing.T) {
		require.NoError(t, f.chat.LeaveConversation(ctx, conv.ID, cy.ID))
		_, err := f.chat.GetConversation(ctx, cy.ID, conv.ID)
		requireCode(t, err, models.CodeForbidden)

		require.NoError(t, f.chat.LeaveConversation(ctx, conv.ID, ada.ID))
		require.NoError(t, f.chat.LeaveConversation(ctx, conv.ID, bob.ID))
		_, err = f.chat.GetConversation(ctx, bob.ID, conv.ID)
		requireCode(t, err, models.CodeNotFound)
	})
}
