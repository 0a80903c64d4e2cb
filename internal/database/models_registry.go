package database

import "quad/internal/models"

// PersistentModels lists every table AutoMigrate manages, parents before children.
func PersistentModels() []any {
	return []any{
		// accounts and the network
		&models.User{},
		&models.Connection{},
		&models.Notification{},
		// forums
		&models.Forum{},
		&models.Post{},
		&models.Comment{},
		// messaging
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		// library and resources
		&models.Book{},
		&models.BookLoan{},
		&models.Resource{},
	}
}
