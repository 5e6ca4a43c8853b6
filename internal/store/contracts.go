package store

import "github.com/starford/notemesh/internal/search"

var (
	_ search.NoteStore  = (*Store)(nil)
	_ search.ShareStore = (*Store)(nil)
	_ search.UserStore  = (*Store)(nil)
)
