package utils

import (
	"github.com/google/uuid"
)

// GenerateUUID returns a time-ordered UUID (v7) so ids sort roughly by creation.
func GenerateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
