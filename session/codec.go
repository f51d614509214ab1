package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	schemaVersionCurrent = 2
	schemaVersionV1      = 1
)

// ErrInvalidEncoding is returned for payloads that are not a session.
var ErrInvalidEncoding = errors.New("invalid session encoding")

type envelope struct {
	Version int             `json:"v"`
	Session json.RawMessage `json:"session"`
}

// Encode serializes s as a versioned JSON envelope.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: schemaVersionCurrent, Session: body})
}

// Decode parses an envelope produced by Encode, or a bare v1 session object.
func Decode(data []byte) (*Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	body := []byte(env.Session)
	switch env.Version {
	case schemaVersionCurrent:
	case 0:
		// v1 payloads predate the envelope.
		body = data
	case schemaVersionV1:
		if len(body) == 0 {
			body = data
		}
	default:
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidEncoding, env.Version)
	}

	var s Session
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if s.ID == "" || s.User.ID == "" {
		return nil, fmt.Errorf("%w: missing session or user id", ErrInvalidEncoding)
	}
	return &s, nil
}

// EncodeUser serializes u as JSON.
func EncodeUser(u *User) ([]byte, error) {
	if u == nil {
		return nil, errors.New("nil user")
	}
	return json.Marshal(u)
}

// DecodeUser parses a user encoded by EncodeUser.
func DecodeUser(data []byte) (*User, error) {
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidEncoding)
	}
	return &u, nil
}
