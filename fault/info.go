package fault

import (
	"context"
	"errors"
)

// Action is a labeled recovery step offered next to an error, such as
// "Retry" or "Sign in again".
type Action struct {
	Label string                          `json:"label"`
	Run   func(ctx context.Context) error `json:"-"`
}

// Info is the normalized error record rendered by error screens and stored
// on lifecycle error states.
type Info struct {
	Kind    Kind     `json:"kind"`
	Message string   `json:"message"`
	Detail  string   `json:"detail,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Error implements error so an Info can travel through error returns.
func (i *Info) Error() string {
	if i == nil {
		return ""
	}
	if i.Detail != "" {
		return i.Message + ": " + i.Detail
	}
	return i.Message
}

// Is matches the sentinel of the record's kind.
func (i *Info) Is(target error) bool {
	if i == nil {
		return false
	}
	s := Sentinel(i.Kind)
	return s != nil && s == target
}

// HasAction reports whether a recovery action with label exists.
func (i *Info) HasAction(label string) bool {
	if i == nil {
		return false
	}
	for _, a := range i.Actions {
		if a.Label == label {
			return true
		}
	}
	return false
}

var defaultMessages = map[Kind]string{
	KindUnknown:        "Something went wrong. Please try again.",
	KindNetwork:        "Unable to reach the server. Check your connection and try again.",
	KindTimeout:        "The server took too long to respond. Please try again.",
	KindOffline:        "You appear to be offline. Reconnect and try again.",
	KindUnauthorized:   "You are not allowed to do that. Please sign in again.",
	KindSessionExpired: "Your session has expired. Please sign in again.",
	KindValidation:     "Some of the details you entered are invalid.",
	KindConflict:       "This change conflicts with existing data.",
	KindNotFound:       "The requested item could not be found.",
	KindStoreInit:      "We couldn't load your data.",
	KindStoreUpdate:    "We couldn't save your changes.",
}

// Message returns the human-readable message for err. Validation errors that
// carry their own user-facing text keep it.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var info *Info
	if errors.As(err, &info) && info.Message != "" {
		return info.Message
	}
	var uf userFacing
	if errors.As(err, &uf) {
		if msg := uf.UserMessage(); msg != "" {
			return msg
		}
	}
	return defaultMessages[KindOf(err)]
}

// userFacing is implemented by errors that already carry text suitable for
// end users (validation.Error does).
type userFacing interface {
	UserMessage() string
}

// Normalize converts err into an Info. A nil err yields nil.
func Normalize(err error, actions ...Action) *Info {
	if err == nil {
		return nil
	}
	var existing *Info
	if errors.As(err, &existing) {
		out := *existing
		out.Actions = append(append([]Action(nil), existing.Actions...), actions...)
		return &out
	}
	return &Info{
		Kind:    KindOf(err),
		Message: Message(err),
		Detail:  err.Error(),
		Actions: append([]Action(nil), actions...),
	}
}
