package resource

import (
	"net/http"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/errors"
)

// Controller serves the requests of one page.
type Controller interface {
	http.Handler
}

// ControllerConstructor builds a controller for one request.
type ControllerConstructor func(m *appcontext.Model, f *Factory) (Controller, error)

// ControllerSymbol returns the symbol of page's controller in the tenant.
func ControllerSymbol(appName, page string) string {
	return appName + "_Controller_" + page
}

// GetController builds a new controller for page. Controllers are never
// cached.
func (f *Factory) GetController(m *appcontext.Model, page string) (Controller, error) {
	symbol := ControllerSymbol(m.AppName, page)
	ctor, err := classloader.Lookup[ControllerConstructor](f.resolver, symbol)
	if err != nil {
		return nil, errors.NewResource("controller", errors.CodeUnknownController, "unknown controller "+symbol).
			WithDetail("symbol", symbol).
			WithInnerError(err)
	}
	return ctor(m, f)
}
