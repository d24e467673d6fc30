package models

import "github.com/google/uuid"

// ensureID fills a zero primary key before insert so rows get ids on every
// driver, including sqlite which has no gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
