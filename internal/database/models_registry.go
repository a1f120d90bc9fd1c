package database

import "agora/internal/models"

// PersistentModels returns the schema-managed GORM models owned by the forum.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Topic{},
		&models.Reply{},
		&models.Vote{},
	}
}

// ExternalModels are owned by other services. They are only auto-migrated in
// development so the forum can run standalone.
func ExternalModels() []interface{} {
	return []interface{}{
		&models.AuthorProfile{},
	}
}
