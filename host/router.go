package host

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/logging"
)

// Router mounts every controller of the tenant at its URL path. Each request
// re-reads the tenant so a reload takes effect without rebuilding the
// router, and builds a new controller instance.
func (h *Host) Router(name string) (chi.Router, error) {
	t, err := h.Tenant(name)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(
		TraceIDMiddleware(),
		logging.RecoveryMiddleware(h.logger),
		logging.HTTPMiddleware(h.logger, name),
		MetricsMiddleware(h.metrics, name),
		ClientIPMiddleware(),
	)
	for _, c := range t.Model().ControllerList() {
		r.Handle(c.URLPath, h.controllerHandler(name, c.URLPath))
	}
	return r, nil
}

// MetricsPath is where Handler serves the host collector.
const MetricsPath = "/metrics"

// Handler mounts the router of every configured tenant under /<tenant> and
// the collector at MetricsPath. Tenants that fail to load are left out and
// their errors are joined into the returned error.
func (h *Host) Handler() (http.Handler, error) {
	r := chi.NewRouter()
	r.Method(http.MethodGet, MetricsPath, h.MetricsHandler())

	var errs []error
	for _, name := range h.cfg.Tenants {
		if "/"+name == MetricsPath {
			errs = append(errs, errors.NewConfiguration(errors.CodeInvalidConfigFile,
				"tenant "+name+" collides with "+MetricsPath))
			continue
		}
		tr, err := h.Router(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.Mount("/"+name, tr)
	}
	return r, stderrors.Join(errs...)
}

func (h *Host) controllerHandler(tenant, urlPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := h.Tenant(tenant)
		if err != nil {
			writeError(w, err)
			return
		}
		m := t.Model()
		c, ok := m.Controller(urlPath)
		if !ok {
			writeError(w, errors.NewNotFound("controller", urlPath))
			return
		}
		if !acceptable(r.Header.Get("Accept"), c.MimeTypes) {
			writeError(w, errors.NewValidation("no acceptable representation of "+urlPath).
				WithCode(errors.CodeNotAcceptable).
				WithDetail("allowed", c.MimeTypes).
				WithHTTPStatus(http.StatusNotAcceptable))
			return
		}

		ctrl, err := h.factory.GetController(m, c.Name)
		if err != nil {
			logging.FromContext(r.Context()).Error("controller construction failed",
				zap.String("controller", c.Name),
				zap.String("trace_id", GetTraceID(r.Context())),
				zap.Error(err))
			writeError(w, err)
			return
		}
		ctrl.ServeHTTP(w, r.WithContext(withController(r.Context(), c)))
	}
}

// ControllerFromContext returns the configuration of the controller serving
// the request.
func ControllerFromContext(r *http.Request) (appcontext.Controller, bool) {
	c, ok := r.Context().Value(controllerKey{}).(appcontext.Controller)
	return c, ok
}

type controllerKey struct{}

func withController(ctx context.Context, c appcontext.Controller) context.Context {
	return context.WithValue(ctx, controllerKey{}, c)
}
