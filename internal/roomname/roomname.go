// Package roomname creates memorable room names and pulls room names back out
// of shared room links.
package roomname

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
)

var (
	ErrEmpty  = errors.New("room name cannot be empty")
	ErrNoRoom = errors.New("link does not contain a room name")
)

// Generate returns a random name of the form adjective-animal-thing-NN,
// e.g. "cozy-otter-teapot-42".
func Generate() (string, error) {
	parts := make([]string, 0, 4)
	for _, list := range [][]string{adjectives, animals, things} {
		i, err := randomIndex(len(list))
		if err != nil {
			return "", err
		}
		parts = append(parts, list[i])
	}

	n, err := randomIndex(100)
	if err != nil {
		return "", err
	}
	parts = append(parts, fmt.Sprintf("%02d", n))

	return strings.Join(parts, "-"), nil
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generate room name: %w", err)
	}
	return int(n.Int64()), nil
}

// Parse accepts either a bare room name or a room link such as
// https://host/room/<name> and returns the room name.
func Parse(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmpty
	}

	if strings.Contains(input, "://") || strings.Contains(input, "/") {
		return fromLink(input)
	}
	return input, nil
}

func fromLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse room link: %w", err)
	}

	parts := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, part := range parts {
		if part == "room" && i+1 < len(parts) && parts[i+1] != "" {
			name, err := url.PathUnescape(parts[i+1])
			if err != nil {
				return "", fmt.Errorf("parse room link: %w", err)
			}
			return name, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoRoom, link)
}
