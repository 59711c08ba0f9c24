package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

type FieldError struct {
	Path string `json:"path"`
	Msg  string `json:"msg"`
}

// ValidationError carries every failed field of a form.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Path+": "+f.Msg)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(path, msg string) {
	e.Fields = append(e.Fields, FieldError{Path: path, Msg: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

var (
	usernameChars = regexp.MustCompile(`^[a-z0-9._]+$`)
	phonePattern  = regexp.MustCompile(`^\+?[\d\s\-()]{10,}$`)
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func usernameProblem(username string) string {
	switch {
	case username == "":
		return "username is required"
	case len(username) < 3:
		return "username must be at least 3 characters"
	case len(username) > 20:
		return "username cannot exceed 20 characters"
	case !usernameChars.MatchString(username):
		return "username can only contain lowercase letters, numbers, dots, and underscores"
	case strings.Contains(username, ".."):
		return "username cannot contain consecutive periods"
	}
	return ""
}

func emailProblem(email string) string {
	if email == "" {
		return "email is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || strings.ToLower(addr.Address) != email {
		return "please enter a valid email address"
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.Contains(email[at+1:], ".") {
		return "please enter a valid email address"
	}
	return ""
}

func passwordProblem(password string) string {
	if password == "" {
		return "password is required"
	}
	if len(password) < 8 {
		return "password must be at least 8 characters"
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return "password must contain uppercase, lowercase, and number"
	}
	return ""
}

// BioProblem is shared with the settings form.
func BioProblem(bio string) string {
	n := len([]rune(strings.TrimSpace(bio)))
	switch {
	case n == 0:
		return "bio is required for operative verification"
	case n < 10:
		return "bio must be at least 10 characters"
	case n > 120:
		return "bio cannot exceed 120 characters"
	}
	return ""
}

// PhoneProblem accepts an empty phone.
func PhoneProblem(phone string) string {
	if phone != "" && !phonePattern.MatchString(phone) {
		return "please enter a valid phone number"
	}
	return ""
}

func validateRegistration(in RegisterInput) error {
	ve := &ValidationError{}
	if msg := usernameProblem(in.Username); msg != "" {
		ve.add("username", msg)
	}
	if msg := emailProblem(in.Email); msg != "" {
		ve.add("email", msg)
	}
	if msg := passwordProblem(in.Password); msg != "" {
		ve.add("password", msg)
	}
	if msg := BioProblem(in.Bio); msg != "" {
		ve.add("bio", msg)
	}
	if msg := PhoneProblem(in.Phone); msg != "" {
		ve.add("phone", msg)
	}
	return ve.orNil()
}

func validateCode(code string) error {
	if len(code) != 6 {
		return ErrInvalidCodeFormat
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			return ErrInvalidCodeFormat
		}
	}
	return nil
}
