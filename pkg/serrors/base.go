package serrors

import (
	"errors"

	"github.com/iota-uz/go-i18n/v2/i18n"
)

// Base is a coded error that can be rendered to API clients. Code is the
// stable machine-readable identifier, Message the developer-facing text and
// MessageID the i18n key for the localized variant.
type Base struct {
	Code      string
	Message   string
	MessageID string
}

func NewError(code, message, messageID string) *Base {
	return &Base{
		Code:      code,
		Message:   message,
		MessageID: messageID,
	}
}

func (e *Base) Error() string {
	return e.Message
}

// Localize returns the user-facing message, falling back to Message when no
// localizer or translation is available.
func (e *Base) Localize(l *i18n.Localizer) string {
	if l == nil || e.MessageID == "" {
		return e.Message
	}
	msg, err := l.Localize(&i18n.LocalizeConfig{MessageID: e.MessageID})
	if err != nil {
		return e.Message
	}
	return msg
}

// AsBase unwraps err down to a *Base if one is present.
func AsBase(err error) (*Base, bool) {
	var base *Base
	if errors.As(err, &base) {
		return base, true
	}
	return nil, false
}
