package internal

import "github.com/google/uuid"

// GenId generates a unique identifier as a string.
// It is also used as the ping payload, so it must fit in a control frame.
func GenId() string {
	return uuid.NewString()
}
