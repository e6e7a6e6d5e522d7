package resource

import (
	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/classloader"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/template"
)

// GetTemplate returns a template adaptor. The native kind yields a fresh
// adaptor bound to unit on every call; family kinds share one adaptor per
// tenant.
func (f *Factory) GetTemplate(m *appcontext.Model, unit string) (template.Adaptor, error) {
	if m.Template == nil {
		return nil, errors.NewResource(KindTemplate, errors.CodeMissingTemplate,
			"tenant "+m.AppName+" has no template section")
	}
	cfg := *m.Template

	if cfg.Kind == template.KindNative {
		a, err := f.buildTemplate(template.UnitNative, cfg.Dirs, unit, m.Debug)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	family, ok := template.Families[cfg.Kind]
	if !ok {
		return nil, errors.NewResource(KindTemplate, errors.CodeUnknownTemplate,
			"unknown template kind "+cfg.Kind)
	}
	v, err := f.get(m, KindTemplate, func() (any, error) {
		return f.buildTemplate(template.FamilyUnit(family), cfg.Dirs, "", m.Debug)
	})
	if err != nil {
		return nil, err
	}
	return v.(template.Adaptor), nil
}

func (f *Factory) buildTemplate(symbol string, dirs template.Dirs, unit string, debug bool) (template.Adaptor, error) {
	ctor, err := classloader.Lookup[template.Constructor](f.resolver, symbol)
	if err != nil {
		return nil, errors.NewResource(KindTemplate, errors.CodeUnresolvedSymbol, "no template unit "+symbol).
			WithInnerError(err)
	}
	a, err := ctor(dirs, unit)
	if err != nil {
		return nil, errors.NewResource(KindTemplate, errors.CodeUnknownTemplate, "unable to build "+symbol).
			WithInnerError(err)
	}
	a.SetDebug(debug)
	return a, nil
}
