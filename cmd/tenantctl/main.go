// Command tenantctl loads the tenants of a tenantkit host and reports on
// their configuration.
package main

import (
	"fmt"
	"os"

	"github.com/leeforge/tenantkit/errors"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errors.NewErrorFormatter(false, true).Format(err))
		os.Exit(1)
	}
}
