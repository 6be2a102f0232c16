package storage

import (
	"context"

	"github.com/gofiber/fiber/v2/middleware/session"
)

const sessionKeyPrefix = "store:"

// SessionStore is the session-scoped key-value area. It lives in the fiber
// session, whose cookie ends with the browser session. The caller saves the
// session once the request is done.
type SessionStore struct {
	sess *session.Session
}

func NewSessionStore(sess *session.Session) *SessionStore {
	return &SessionStore{sess: sess}
}

func (s *SessionStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.sess.Get(sessionKeyPrefix + key).(string)
	return v, ok, nil
}

func (s *SessionStore) Set(_ context.Context, key, value string) error {
	s.sess.Set(sessionKeyPrefix+key, value)
	return nil
}
