package utils

import (
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const nanoIdAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func GenerateNanoIdWithPrefix(prefix string, size int) string {
	id, err := gonanoid.Generate(nanoIdAlphabet, size)
	if err != nil {
		panic(err)
	}
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

func GenerateUUID() string {
	return uuid.New().String()
}

func Now() time.Time {
	return time.Now().UTC()
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
