package utils

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/leeforge/tenantkit/json"
)

// PrintJson prints the json string of the given value.
func PrintJson(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// PrintRoutes prints all the registered routes in a given chi.Router.
func PrintRoutes(w io.Writer, r chi.Routes) error {
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		_, err := fmt.Fprintf(w, "%-6s %s\n", method, strings.Replace(route, "/*/", "/", -1))
		return err
	}
	return chi.Walk(r, walkFunc)
}
