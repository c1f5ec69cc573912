package application

import (
	"fmt"
	"strings"
)

var (
	inviteThemeWords = map[string][]string{
		"forest": {"roble", "pino", "cedro", "sauce", "nogal"},
		"field":  {"pradera", "valle", "colina", "sierra", "monte"},
		"garden": {"brote", "flor", "hoja", "raiz", "semilla"},
	}
	inviteSecondWords = []string{"rio", "viento", "amanecer", "rocio", "luz"}
)

const inviteNumberMax = 99

// normalizeInviteTheme lowercases theme and falls back to forest for
// anything without a word list.
func normalizeInviteTheme(theme string) string {
	theme = strings.ToLower(strings.TrimSpace(theme))
	if _, ok := inviteThemeWords[theme]; !ok {
		return DefaultInviteTheme
	}
	return theme
}

// generateInviteCode builds a word-word-N code. intn must return a value in [0, n).
func generateInviteCode(theme string, intn func(n int) int) string {
	words := inviteThemeWords[normalizeInviteTheme(theme)]
	first := words[intn(len(words))]
	second := inviteSecondWords[intn(len(inviteSecondWords))]
	number := intn(inviteNumberMax) + 1
	return fmt.Sprintf("%s-%s-%d", first, second, number)
}
