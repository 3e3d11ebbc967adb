package client

import (
	"encoding/json"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"

	"github.com/edlabhq/exameval/core/user"
)

// Session is the locally persisted authentication state.
type Session struct {
	User  user.User `json:"user"`
	Token string    `json:"token"`
}

func (s Session) Authenticated() bool { return s.Token != "" }

// SessionStore persists a Session as a JSON file.
type SessionStore struct {
	Path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{Path: path}
}

// Restore loads the saved session. A missing or corrupt file yields an empty
// session rather than an error; stale state must never block the client.
func (st *SessionStore) Restore() Session {
	data, err := ioutil.ReadFile(st.Path)
	if err != nil {
		return Session{}
	}
	var sess Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return Session{}
	}
	return sess
}

func (st *SessionStore) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	if err = ioutil.WriteFile(st.Path, data, 0600); err != nil {
		return errors.Wrap(err, "writing session file")
	}
	return nil
}

func (st *SessionStore) Clear() error {
	if err := os.Remove(st.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}
