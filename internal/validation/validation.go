// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

const utoridLength = 8

// IsValidUTORid проверяет идентификатор пользователя: ровно восемь
// латинских букв или цифр.
func IsValidUTORid(utorid string) bool {
	if len(utorid) != utoridLength {
		return false
	}
	for _, ch := range utorid {
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) {
			return false
		}
		if ch > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// IsValidEmail проверяет адрес электронной почты университетского домена.
func IsValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return false
	}
	local, domain := email[:at], email[at+1:]
	if local == "" || strings.ContainsAny(local, " \t") {
		return false
	}
	return domain == "mail.utoronto.ca" || domain == "utoronto.ca"
}

// IsValidName проверяет отображаемое имя пользователя.
func IsValidName(name string) bool {
	n := len(strings.TrimSpace(name))
	return n >= 1 && n <= 50
}
