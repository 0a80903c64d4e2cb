package messagecrypt

import (
	"testing"

	"quad/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupCryptDB(t *testing.T) (*gorm.DB, *Cipher) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	c := newTestCipher(t, "plugin-test-key")
	require.NoError(t, db.Use(NewPlugin(c, nil)))
	require.NoError(t, db.AutoMigrate(&models.Message{}))
	return db, c
}

func storedContent(t *testing.T, db *gorm.DB, id uint) string {
	t.Helper()
	var raw string
	require.NoError(t, db.Raw("SELECT content FROM messages WHERE id = ?", id).Scan(&raw).Error)
	return raw
}

func TestPlugin_CreateStoresCiphertext(t *testing.T) {
	db, _ := setupCryptDB(t)

	msg := models.Message{ConversationID: 1, SenderID: 1, Content: "meet at the quad"}
	require.NoError(t, db.Create(&msg).Error)

	assert.Equal(t, "meet at the quad", msg.Content, "caller keeps plaintext after create")

	raw := storedContent(t, db, msg.ID)
	assert.True(t, IsSealed(raw))
	assert.NotContains(t, raw, "quad")
}

func TestPlugin_QueryReturnsPlaintext(t *testing.T) {
	db, _ := setupCryptDB(t)

	batch := []models.Message{
		{ConversationID: 1, SenderID: 1, Content: "first"},
		{ConversationID: 1, SenderID: 2, Content: "second"},
	}
	require.NoError(t, db.Create(&batch).Error)

	var one models.Message
	require.NoError(t, db.First(&one, batch[0].ID).Error)
	assert.Equal(t, "first", one.Content)

	var all []models.Message
	require.NoError(t, db.Where("conversation_id = ?", 1).Order("id asc").Find(&all).Error)
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].Content)
	assert.Equal(t, "second", all[1].Content)

	var ptrs []*models.Message
	require.NoError(t, db.Order("id asc").Find(&ptrs).Error)
	require.Len(t, ptrs, 2)
	assert.Equal(t, "second", ptrs[1].Content)
}

func TestPlugin_UpdatesAreSealed(t *testing.T) {
	db, _ := setupCryptDB(t)

	msg := models.Message{ConversationID: 1, SenderID: 1, Content: "draft"}
	require.NoError(t, db.Create(&msg).Error)

	msg.Content = "edited via save"
	require.NoError(t, db.Save(&msg).Error)
	assert.Equal(t, "edited via save", msg.Content)
	assert.True(t, IsSealed(storedContent(t, db, msg.ID)))

	require.NoError(t, db.Model(&msg).Update("content", "edited via column").Error)
	raw := storedContent(t, db, msg.ID)
	assert.True(t, IsSealed(raw))
	assert.NotContains(t, raw, "column")
	assert.Equal(t, "edited via column", msg.Content)

	var reloaded models.Message
	require.NoError(t, db.First(&reloaded, msg.ID).Error)
	assert.Equal(t, "edited via column", reloaded.Content)

	patch := models.Message{Content: "edited via struct"}
	require.NoError(t, db.Model(&msg).Updates(patch).Error)
	raw = storedContent(t, db, msg.ID)
	assert.True(t, IsSealed(raw))
	assert.NotContains(t, raw, "struct")
	assert.Equal(t, "edited via struct", patch.Content)

	reloaded = models.Message{}
	require.NoError(t, db.First(&reloaded, msg.ID).Error)
	assert.Equal(t, "edited via struct", reloaded.Content)
}

func TestPlugin_LegacyPlaintextPassesThrough(t *testing.T) {
	db, _ := setupCryptDB(t)

	require.NoError(t, db.Exec(
		"INSERT INTO messages (conversation_id, sender_id, content, is_read) VALUES (1, 1, 'legacy row', false)",
	).Error)

	var msg models.Message
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, "legacy row", msg.Content)
}

func TestPlugin_UndecryptableRowDoesNotFailQuery(t *testing.T) {
	db, _ := setupCryptDB(t)

	good := models.Message{ConversationID: 1, SenderID: 1, Content: "fine"}
	require.NoError(t, db.Create(&good).Error)

	other := newTestCipher(t, "rotated-away key")
	foreign, err := other.Encrypt("lost")
	require.NoError(t, err)
	require.NoError(t, db.Exec(
		"INSERT INTO messages (conversation_id, sender_id, content, is_read) VALUES (1, 1, ?, false)", foreign,
	).Error)

	var all []models.Message
	require.NoError(t, db.Order("id asc").Find(&all).Error)
	require.Len(t, all, 2)
	assert.Equal(t, "fine", all[0].Content)
	assert.Equal(t, UndecryptableMessage, all[1].Content)
}

func TestPlugin_IgnoresOtherModels(t *testing.T) {
	db, _ := setupCryptDB(t)
	require.NoError(t, db.AutoMigrate(&models.Resource{}))

	res := models.Resource{Category: "study", Title: "Notes", URL: "https://example.edu", AuthorID: 1}
	require.NoError(t, db.Create(&res).Error)

	var title string
	require.NoError(t, db.Raw("SELECT title FROM resources WHERE id = ?", res.ID).Scan(&title).Error)
	assert.Equal(t, "Notes", title)
}
