package resource

import (
	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/dbo"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/session"
)

// Role selects the credentials a database handle connects with.
type Role string

const (
	RoleQuery   Role = "queryDB"
	RoleUpdate  Role = "updateDB"
	RoleSession Role = "sessionDB"
)

type credentials struct {
	ext      string
	dsn      dbo.DSN
	user     string
	password string
}

func roleCredentials(m *appcontext.Model, role Role) (credentials, error) {
	db := m.Database
	switch role {
	case RoleQuery:
		return credentials{ext: db.Ext, dsn: db.DSN(), user: db.QueryUser, password: db.QueryPassword}, nil
	case RoleUpdate:
		return credentials{ext: db.Ext, dsn: db.DSN(), user: db.UpdateUser, password: db.UpdatePassword}, nil
	case RoleSession:
		s := m.Session
		if s.Handler != session.HandlerDB {
			return credentials{}, errors.NewResource(string(role), errors.CodeUnknownRole,
				"tenant "+m.AppName+" has no session database")
		}
		return credentials{ext: s.Ext, dsn: s.DSN(), user: s.User, password: s.Password}, nil
	default:
		return credentials{}, errors.NewResource(string(role), errors.CodeUnknownRole,
			"unknown database role "+string(role))
	}
}

// DatabaseUnit returns the unit that opens databases of ext and driver.
func DatabaseUnit(ext, driver string) string {
	if ext == dbo.ExtNative {
		return dbo.NativeUnit(driver)
	}
	return dbo.UnitPortable
}

// GetDatabase returns the handle of role, connected with the role's
// credentials. The call blocks while the database is dialled.
func (f *Factory) GetDatabase(m *appcontext.Model, role Role) (dbo.Handle, error) {
	cred, err := roleCredentials(m, role)
	if err != nil {
		return nil, err
	}

	v, err := f.get(m, string(role), func() (any, error) {
		unit := DatabaseUnit(cred.ext, cred.dsn.Driver)
		open, err := classloader.Lookup[dbo.Constructor](f.resolver, unit)
		if err != nil {
			return nil, errors.NewResource(string(role), errors.CodeUnresolvedSymbol, "no database unit "+unit).
				WithInnerError(err)
		}
		h, err := open(cred.dsn, cred.user, cred.password)
		if err != nil {
			return nil, errors.NewResource(string(role), errors.CodeConnectFailed, "unable to connect to "+cred.dsn.String()).
				WithDetail("user", cred.user).
				WithInnerError(err)
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(dbo.Handle), nil
}
