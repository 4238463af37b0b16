package model

import (
	"fmt"
	"strings"
)

// Role selects which of the two models stored in a checkpoint to load.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// InvalidIdentifierError reports a malformed checkpoint identifier or an
// unknown role.
type InvalidIdentifierError struct {
	Identifier string
	Reason     string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid checkpoint identifier '%s': %s", e.Identifier, e.Reason)
}

// Identifier is a parsed checkpoint reference of the form
// <path>:<role>[.init], where role is teacher or student. The .init suffix
// (also accepted with trailing parentheses, .init()) requests a
// deterministic re-initialization of the loaded model.
type Identifier struct {
	Path string
	Role Role
	Init bool
}

// ParseIdentifier splits a checkpoint identifier into its components.
func ParseIdentifier(id string) (*Identifier, error) {
	idx := strings.LastIndex(id, ":")
	if idx <= 0 || idx == len(id)-1 {
		return nil, &InvalidIdentifierError{Identifier: id, Reason: "expected <path>:<role>"}
	}

	path, name := id[:idx], id[idx+1:]

	init := false
	if strings.HasSuffix(name, ".init()") {
		init = true
		name = strings.TrimSuffix(name, ".init()")
	} else if strings.HasSuffix(name, ".init") {
		init = true
		name = strings.TrimSuffix(name, ".init")
	}

	role := Role(name)
	if role != RoleTeacher && role != RoleStudent {
		return nil, &InvalidIdentifierError{
			Identifier: id,
			Reason:     fmt.Sprintf("unknown name '%s', should be either 'teacher' or 'student'", name),
		}
	}

	return &Identifier{Path: path, Role: role, Init: init}, nil
}
