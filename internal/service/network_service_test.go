package service

import (
	"context"
	"testing"

	"quad/internal/cache"
	"quad/internal/models"
	"quad/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkService_SendRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")

	_, err := f.network.SendRequest(ctx, ada.ID, ada.ID)
	requireCode(t, err, models.CodeValidation)

	_, err = f.network.SendRequest(ctx, ada.ID, 999)
	requireCode(t, err, models.CodeNotFound)
}

func TestNetworkService_RequestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")

	req, err := f.network.SendRequest(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusPending, req.Status)
	assert.Equal(t, "ada", req.Requester.Username)

	t.Run("duplicates conflict both ways", func(t *testing.T) {
		_, err := f.network.SendRequest(ctx, ada.ID, bob.ID)
		requireCode(t, err, models.CodeConflict)
		_, err = f.network.SendRequest(ctx, bob.ID, ada.ID)
		requireCode(t, err, models.CodeConflict)
	})

	t.Run("addressee is notified", func(t *testing.T) {
		list, err := f.notifications.List(ctx, bob.ID, true, 10, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, models.NotificationNetworkRequest, list[0].Type)
		assert.Equal(t, req.ID, list[0].TargetID)
		assert.Contains(t, f.pub.typesFor(bob.ID), EventNetworkRequest)
		assert.Contains(t, f.pub.typesFor(ada.ID), EventNetworkRequestSent)
	})

	t.Run("status from each side", func(t *testing.T) {
		status, _, err := f.network.Status(ctx, ada.ID, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, NetworkStatusPendingSent, status)
		status, _, err = f.network.Status(ctx, bob.ID, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, NetworkStatusPendingReceived, status)
	})

	t.Run("only the addressee accepts", func(t *testing.T) {
		_, err := f.network.Accept(ctx, ada.ID, req.ID)
		requireCode(t, err, models.CodeForbidden)
	})

	accepted, err := f.network.Accept(ctx, bob.ID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusAccepted, accepted.Status)

	t.Run("accept resolves the request notification", func(t *testing.T) {
		n, err := f.notifications.UnreadCount(ctx, bob.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		list, err := f.notifications.List(ctx, ada.ID, false, 10, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, models.NotificationNetworkAccepted, list[0].Type)
	})

	t.Run("accepting twice conflicts", func(t *testing.T) {
		_, err := f.network.Accept(ctx, bob.ID, req.ID)
		requireCode(t, err, models.CodeConflict)
	})

	ids, err := f.network.IDs(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, ids)

	require.NoError(t, f.network.Remove(ctx, bob.ID, ada.ID))
	status, _, err := f.network.Status(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, NetworkStatusNone, status)

	err = f.network.Remove(ctx, bob.ID, ada.ID)
	requireCode(t, err, models.CodeNotFound)
}

func TestNetworkService_RejectAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	eve := testutil.CreateUser(t, f.db, "eve")

	req, err := f.network.SendRequest(ctx, ada.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.network.Reject(ctx, eve.ID, req.ID)
	requireCode(t, err, models.CodeForbidden)

	_, err = f.network.Reject(ctx, bob.ID, req.ID)
	require.NoError(t, err)

	n, err := f.notifications.UnreadCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "pending notification is retracted")

	// The requester may cancel a fresh request.
	again, err := f.network.SendRequest(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.network.Reject(ctx, ada.ID, again.ID)
	require.NoError(t, err)

	sent, err := f.network.Sent(ctx, ada.ID)
	require.NoError(t, err)
	assert.Empty(t, sent)
}

func TestNetworkService_BlockedEdgeConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")
	testutil.Connect(t, f.db, bob.ID, ada.ID, models.ConnectionStatusBlocked)

	_, err := f.network.SendRequest(ctx, ada.ID, bob.ID)
	requireCode(t, err, models.CodeConflict)

	status, _, err := f.network.Status(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, NetworkStatusBlocked, status)
}

func TestNetworkService_InvalidatesRecommendations(t *testing.T) {
	mr := useMiniredis(t)
	f := newFixture(t)
	ctx := context.Background()
	ada := testutil.CreateUser(t, f.db, "ada")
	bob := testutil.CreateUser(t, f.db, "bob")

	require.NoError(t, mr.Set(cache.RecommendationKey(ada.ID), "[]"))
	require.NoError(t, mr.Set(cache.RecommendationKey(bob.ID), "[]"))

	_, err := f.network.SendRequest(ctx, ada.ID, bob.ID)
	require.NoError(t, err)

	assert.False(t, mr.Exists(cache.RecommendationKey(ada.ID)))
	assert.False(t, mr.Exists(cache.RecommendationKey(bob.ID)))
}
