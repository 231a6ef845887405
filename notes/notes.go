// Package notes is the thin client for the notes CRUD endpoints. It adds no
// business logic beyond the client-side length limits; the session client
// underneath handles credentials and renewal.
package notes

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-stickies/session"
	"github.com/pkg/errors"
)

const (
	notesPath       = "/notes"
	updateOrderPath = "/notes/updateOrder"
)

// Note is one sticky note. Order is its position on the board.
type Note struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

// Client performs notes operations through an authenticated session client.
type Client struct {
	api              *session.Client
	titleMaxLength   int
	contentMaxLength int
}

// New creates a notes client enforcing the given length limits before any
// request is dispatched.
func New(api *session.Client, titleMaxLength, contentMaxLength int) (*Client, error) {
	if api == nil {
		return nil, errors.New("[notes.New] session client is required")
	}
	if titleMaxLength <= 0 || contentMaxLength <= 0 {
		return nil, errors.New("[notes.New] length limits must be positive")
	}
	return &Client{
		api:              api,
		titleMaxLength:   titleMaxLength,
		contentMaxLength: contentMaxLength,
	}, nil
}

// List fetches every note for the authenticated user.
func (c *Client) List(ctx context.Context) ([]Note, error) {
	var all []Note
	if err := c.api.Get(ctx, notesPath, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// Create adds a note and returns it with its server-assigned ID.
func (c *Client) Create(ctx context.Context, note Note) (Note, error) {
	if err := c.validateLengths(note); err != nil {
		return Note{}, err
	}
	var created Note
	if err := c.api.Post(ctx, notesPath, note, &created); err != nil {
		return Note{}, err
	}
	return created, nil
}

// Update replaces a note's title and content.
func (c *Client) Update(ctx context.Context, note Note) (Note, error) {
	if note.ID == "" {
		return Note{}, errors.New("[Client.Update] note ID is required")
	}
	if err := c.validateLengths(note); err != nil {
		return Note{}, err
	}
	var updated Note
	if err := c.api.Patch(ctx, notesPath, note, &updated); err != nil {
		return Note{}, err
	}
	return updated, nil
}

// UpdateOrder persists the board positions after a drag reorder.
func (c *Client) UpdateOrder(ctx context.Context, ordered []Note) error {
	return c.api.Patch(ctx, updateOrderPath, ordered, nil)
}

// Remove deletes a note by ID.
func (c *Client) Remove(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("[Client.Remove] note ID is required")
	}
	return c.api.Delete(ctx, notesPath+"/"+id, nil)
}

func (c *Client) validateLengths(note Note) error {
	if len(note.Title) > c.titleMaxLength {
		return fmt.Errorf("title exceeds %d characters", c.titleMaxLength)
	}
	if len(note.Content) > c.contentMaxLength {
		return fmt.Errorf("content exceeds %d characters", c.contentMaxLength)
	}
	return nil
}
