package service

import (
	"github.com/sinaptika/tryout-backend/internal/model"
	"github.com/sinaptika/tryout-backend/internal/sessionstore"
)

// Stores maps identity kinds to their session store. Picking the adapter
// instance is the only place the engine is allowed to look at the kind.
type Stores map[model.IdentityKind]sessionstore.Store

// For returns the store serving the identity's kind.
func (s Stores) For(id model.Identity) sessionstore.Store {
	return s[id.Kind]
}
