package session

import (
	"fmt"
	"math/rand/v2"
)

var (
	adjectives = []string{
		"Swift", "Clever", "Bright", "Cool", "Epic", "Wise", "Bold", "Quick",
		"Sharp", "Smart", "Fast", "Wild", "Brave", "Calm", "Pure", "Free",
	}
	nouns = []string{
		"Eagle", "Wolf", "Tiger", "Falcon", "Lion", "Shark", "Fox", "Bear",
		"Hawk", "Deer", "Owl", "Lynx", "Raven", "Viper", "Phoenix", "Dragon",
	}
)

// UsernameFunc produces a candidate username.
type UsernameFunc func() string

// RandomUsername returns a name such as "SwiftEagle-42". Candidates are not unique.
func RandomUsername() string {
	return fmt.Sprintf("%s%s-%d",
		adjectives[rand.IntN(len(adjectives))],
		nouns[rand.IntN(len(nouns))],
		rand.IntN(999)+1)
}
