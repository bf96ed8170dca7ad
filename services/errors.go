package services

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindUnauthorized
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	}
	return "internal"
}

// Error is a failure with a client-safe message. Err, when set, is the
// underlying cause and is never shown to clients.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Msg: "Invalid credentials"}
	ErrNotApproved        = &Error{Kind: KindForbidden, Msg: "Account not approved yet"}
	ErrUserNotFound       = &Error{Kind: KindNotFound, Msg: "User not found"}
	ErrEmailTaken         = &Error{Kind: KindConflict, Msg: "Email already in use"}

	ErrDeviceNotFound     = &Error{Kind: KindNotFound, Msg: "Device not registered. Contact admin."}
	ErrDeviceUserNotFound = &Error{Kind: KindNotFound, Msg: "User linked to device not found"}
	ErrDeviceNotActivated = &Error{Kind: KindNotFound, Msg: "Device has not completed first login"}
	ErrDeviceTaken        = &Error{Kind: KindConflict, Msg: "Device already registered"}
	ErrDeviceLimit        = &Error{Kind: KindForbidden, Msg: "User already has a registered device"}

	ErrReportNotFound     = &Error{Kind: KindNotFound, Msg: "Report not found"}
	ErrProjectNumberTaken = &Error{Kind: KindConflict, Msg: "Project number already exists"}
	ErrNoImages           = &Error{Kind: KindNotFound, Msg: "No images found for this report"}
)

func validation(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func internal(err error) *Error {
	return &Error{Kind: KindInternal, Msg: "Server error", Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ParseID parses a hex object id coming from a request.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, validation("Invalid id")
	}
	return id, nil
}
