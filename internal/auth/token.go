package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	adminTokenPrefix = "vk_"
	adminTokenBytes  = 32
)

// GenerateAdminToken returns a new random admin bearer token.
func GenerateAdminToken() (string, error) {
	b := make([]byte, adminTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating admin token: %w", err)
	}
	return adminTokenPrefix + hex.EncodeToString(b), nil
}

// LooksGenerated reports whether token has the shape GenerateAdminToken
// produces.
func LooksGenerated(token string) bool {
	rest, ok := strings.CutPrefix(token, adminTokenPrefix)
	if !ok || len(rest) != adminTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil
}
