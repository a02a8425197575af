package store

import (
	"context"

	"github.com/evetabi/plinko/internal/domain"
)

// LookupSession resolves an opaque session token against the session store.
// The record is written by the platform's auth service; this side only reads.
// Returns domain.ErrInvalidSession when the token resolves to nothing.
func (c *Client) LookupSession(ctx context.Context, token string) (*domain.Session, error) {
	var sess domain.Session
	found, err := c.GetJSON(ctx, SessionKey(token), &sess)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrInvalidSession
	}
	sess.SessionToken = token
	return &sess, nil
}
