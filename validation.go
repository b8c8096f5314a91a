package msgbox

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rbaliyan/msgbox/store"
)

// MessageLimits holds message validation limits.
type MessageLimits struct {
	MaxBodySize int
}

// DefaultLimits returns the default message limits.
func DefaultLimits() MessageLimits {
	return MessageLimits{MaxBodySize: DefaultMaxBodySize}
}

// CreateRequest is the caller input of a typed factory.
// The message type is chosen by which factory is called.
type CreateRequest struct {
	// SenderID is optional. CreateAlert ignores it.
	SenderID UserID
	// RecipientID is required.
	RecipientID UserID
	// Body is required and must not be blank.
	Body string
}

// ValidateMessageData checks data against limits. Every failing field yields
// a *ValidationError; failures are combined with errors.Join.
func ValidateMessageData(data store.MessageData, limits MessageLimits) error {
	var errs []error

	if !data.RecipientID.Valid() {
		errs = append(errs, &ValidationError{Field: "recipient", Message: "is required"})
	}
	if data.SenderID < 0 {
		errs = append(errs, &ValidationError{Field: "sender", Message: "must be a positive id"})
	}
	if !data.Type.IsValid() {
		errs = append(errs, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown type %q", data.Type)})
	}
	if err := ValidateBody(data.Body, limits); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateBody checks a message body. It is valid when it has non-space
// content, is UTF-8, and fits MaxBodySize.
func ValidateBody(body string, limits MessageLimits) error {
	switch {
	case strings.TrimSpace(body) == "":
		return &ValidationError{Field: "body", Message: "can't be blank"}
	case limits.MaxBodySize > 0 && len(body) > limits.MaxBodySize:
		return errors.Join(
			&ValidationError{Field: "body", Message: fmt.Sprintf("size %d exceeds max %d bytes", len(body), limits.MaxBodySize)},
			ErrBodyTooLarge,
		)
	case !utf8.ValidString(body):
		return &ValidationError{Field: "body", Message: "contains invalid UTF-8"}
	case strings.ContainsRune(body, '\x00'):
		return &ValidationError{Field: "body", Message: "contains null bytes"}
	}
	return nil
}

// ValidationFields returns the names of the invalid fields carried by err.
func ValidationFields(err error) []string {
	var fields []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ve, ok := e.(*ValidationError); ok {
			fields = append(fields, ve.Field)
			return
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		walk(errors.Unwrap(e))
	}
	walk(err)
	return fields
}
