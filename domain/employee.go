package domain

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const maxNameLen = 150

// Position is the closed set of job positions an employee can hold.
type Position string

const (
	PositionCategory1 Position = "category_1"
	PositionCategory2 Position = "category_2"
	PositionCategory3 Position = "category_3"
	PositionManager   Position = "manager"
)

var positionAliases = map[string]Position{
	"category 1": PositionCategory1,
	"category 2": PositionCategory2,
	"category 3": PositionCategory3,
}

// ParsePosition accepts canonical values and the legacy "category N" spelling.
func ParsePosition(s string) (Position, error) {
	p := Position(strings.TrimSpace(s))
	if alias, ok := positionAliases[string(p)]; ok {
		return alias, nil
	}
	if !p.Valid() {
		return "", invalid("position", "unknown position "+strconv.Quote(s))
	}
	return p, nil
}

func (p Position) Valid() bool {
	switch p {
	case PositionCategory1, PositionCategory2, PositionCategory3, PositionManager:
		return true
	}
	return false
}

func (p *Position) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return invalid("position", "must be a string")
	}
	parsed, err := ParsePosition(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Employee is a person who can execute tasks.
type Employee struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Position       Position `json:"position"`
	Email          string   `json:"email"`
	PhoneNumber    string   `json:"phoneNumber,omitempty"`
	VacationStatus bool     `json:"vacationStatus"`
}

// Validate checks the invariants of a complete employee record.
func (e Employee) Validate() error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return invalid("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return invalid("name", "must be at most 150 characters")
	}
	if !e.Position.Valid() {
		return invalid("position", "unknown position "+strconv.Quote(string(e.Position)))
	}
	if err := validateEmail(e.Email); err != nil {
		return err
	}
	if e.PhoneNumber != "" && !phonePattern.MatchString(e.PhoneNumber) {
		return invalid("phoneNumber", "must be in E.164 format, e.g. +74951234567")
	}
	return nil
}

var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "must not be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "must be a valid address")
	}
	return nil
}

// NormalizeEmail returns the form used for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewEmployee carries the fields accepted when creating an employee.
type NewEmployee struct {
	Name           string   `json:"name"`
	Position       Position `json:"position"`
	Email          string   `json:"email"`
	PhoneNumber    string   `json:"phoneNumber,omitempty"`
	VacationStatus bool     `json:"vacationStatus"`
}

// Employee builds the record that would be stored under id.
func (n NewEmployee) Employee(id string) Employee {
	return Employee{
		ID:             id,
		Name:           strings.TrimSpace(n.Name),
		Position:       n.Position,
		Email:          strings.TrimSpace(n.Email),
		PhoneNumber:    n.PhoneNumber,
		VacationStatus: n.VacationStatus,
	}
}

// EmployeeUpdate carries a partial update. Nil fields are left untouched.
type EmployeeUpdate struct {
	Name           *string   `json:"name,omitempty"`
	Position       *Position `json:"position,omitempty"`
	Email          *string   `json:"email,omitempty"`
	PhoneNumber    *string   `json:"phoneNumber,omitempty"`
	VacationStatus *bool     `json:"vacationStatus,omitempty"`
}

func (u EmployeeUpdate) Empty() bool {
	return u.Name == nil && u.Position == nil && u.Email == nil && u.PhoneNumber == nil && u.VacationStatus == nil
}

// Apply returns a copy of e with the update applied.
func (u EmployeeUpdate) Apply(e Employee) Employee {
	if u.Name != nil {
		e.Name = strings.TrimSpace(*u.Name)
	}
	if u.Position != nil {
		e.Position = *u.Position
	}
	if u.Email != nil {
		e.Email = strings.TrimSpace(*u.Email)
	}
	if u.PhoneNumber != nil {
		e.PhoneNumber = *u.PhoneNumber
	}
	if u.VacationStatus != nil {
		e.VacationStatus = *u.VacationStatus
	}
	return e
}

// Ptr returns a pointer to v. Handy for optional filter and update fields.
func Ptr[T any](v T) *T { return &v }
