package chat

import "errors"

// Kind classifies a failure so the boundary can map it without knowing every error.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindInternal     Kind = "internal"
)

// Error is a caller input or state failure with a stable message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Msg
}

var (
	ErrBlankName            = &Error{Kind: KindValidation, Msg: "name can not be blank"}
	ErrDuplicateAccount     = &Error{Kind: KindConflict, Msg: "can not register same user twice"}
	ErrUnknownAccount       = &Error{Kind: KindNotFound, Msg: "user not registered"}
	ErrInvalidCredentials   = &Error{Kind: KindUnauthorized, Msg: "invalid credentials"}
	ErrSelfFollow           = &Error{Kind: KindValidation, Msg: "can not follow self"}
	ErrDuplicateFollow      = &Error{Kind: KindConflict, Msg: "can not follow same publisher twice"}
	ErrInappropriateContent = &Error{Kind: KindValidation, Msg: "message contains inappropriate words"}
)

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
