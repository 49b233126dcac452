package validation

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

const minPasswordLength = 8

// Классы символов, обязательные для пароля аккаунта.
var passwordRules = []struct {
	match   func(rune) bool
	message string
}{
	{unicode.IsUpper, "пароль должен содержать хотя бы одну заглавную букву"},
	{unicode.IsLower, "пароль должен содержать хотя бы одну строчную букву"},
	{unicode.IsNumber, "пароль должен содержать хотя бы одну цифру"},
}

// ValidatePassword проверяет пароль при регистрации: минимум 8 символов,
// заглавная и строчная буквы, цифра. Длина считается в рунах, а не байтах.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", minPasswordLength)
	}

	for _, rule := range passwordRules {
		found := false
		for _, r := range password {
			if rule.match(r) {
				found = true
				break
			}
		}
		if !found {
			return errors.New(rule.message)
		}
	}
	return nil
}
