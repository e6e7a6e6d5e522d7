package resource

import (
	"context"
	"time"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/session"
)

// GetSessionStore returns the tenant's session store, guarded by the strict
// policy when the tenant asks for it. A debug model gets a new store on
// every call that owns its database handle; the caller closes it.
func (f *Factory) GetSessionStore(m *appcontext.Model) (session.Store, error) {
	v, err := f.get(m, KindSession, func() (any, error) {
		var store session.Store
		switch m.Session.Handler {
		case session.HandlerDB:
			h, err := f.GetDatabase(m, RoleSession)
			if err != nil {
				return nil, err
			}
			db := session.NewDBStore(h.DB(), h.Driver())
			if m.Debug {
				// Debug models get a fresh handle nothing else holds.
				db.Owning(h)
			}
			if err := db.EnsureSchema(context.Background()); err != nil {
				_ = db.Close()
				return nil, errors.NewResource(KindSession, errors.CodeSessionStoreFailed, "unable to prepare session table").
					WithInnerError(err)
			}
			store = db
		default:
			fs, err := session.NewFileStore(m.Session.Directory, m.Session.Filename)
			if err != nil {
				return nil, errors.NewResource(KindSession, errors.CodeSessionStoreFailed, "unable to open session directory").
					WithInnerError(err)
			}
			store = fs
		}

		if m.Session.Security == session.SecurityStrict {
			store = session.NewGuard(store, time.Duration(m.Session.Timeout)*time.Second)
		}
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(session.Store), nil
}
