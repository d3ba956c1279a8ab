package uuidutil

import "github.com/google/uuid"

func New() string {
	return uuid.New().String()
}

func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Ensure returns id unchanged unless it is empty.
func Ensure(id string) string {
	if id == "" {
		return New()
	}
	return id
}
