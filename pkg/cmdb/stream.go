package cmdb

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// EntityStream is a single-pass cursor over the live entities of a schema.
// It reads one page at a time in ascending id order and ends after the
// first empty page. Because each page starts after the last id seen, rows
// soft-deleted or inserted between pages are neither skipped nor repeated.
//
//	s := cmdb.StreamEntities(ctx, store, schemaID, 100)
//	for s.Next() {
//		e := s.Entity()
//	}
//	if err := s.Err(); err != nil { ... }
//
// A caller may stop calling Next at any point; no resources stay open
// between pages.
type EntityStream struct {
	ctx      context.Context
	store    types.Store
	schemaID string
	page     types.Page

	buf     []*types.Entity
	cur     *types.Entity
	err     error
	done    bool
	fetches int
}

// StreamEntities returns a stream over the live entities of schemaID. A
// pageSize of zero or less means types.DefaultPageSize.
func StreamEntities(ctx context.Context, store types.Store, schemaID string, pageSize int) *EntityStream {
	if pageSize <= 0 {
		pageSize = types.DefaultPageSize
	}
	return &EntityStream{
		ctx:      ctx,
		store:    store,
		schemaID: schemaID,
		page:     types.Page{Limit: pageSize},
	}
}

// Next advances to the next entity, fetching a page when the current one is
// used up. It returns false at the end of the stream or on error.
func (s *EntityStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	if len(s.buf) == 0 {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return false
		}
		s.fetches++
		page, err := s.store.ListEntities(s.ctx, s.schemaID, s.page)
		if err != nil {
			s.err = fmt.Errorf("fetching entities of schema %s: %w", s.schemaID, err)
			return false
		}
		if len(page) == 0 {
			s.done = true
			s.cur = nil
			return false
		}
		s.buf = page
		s.page = s.page.Next(page[len(page)-1].EntityID)
	}
	s.cur, s.buf = s.buf[0], s.buf[1:]
	return true
}

// Entity returns the entity Next advanced to.
func (s *EntityStream) Entity() *types.Entity {
	return s.cur
}

// Err returns the error that stopped the stream, if any.
func (s *EntityStream) Err() error {
	return s.err
}

// Fetches returns the number of pages requested so far.
func (s *EntityStream) Fetches() int {
	return s.fetches
}
