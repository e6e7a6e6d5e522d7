package testing

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leeforge/tenantkit/appcontext"
)

// Fixture is a temporary host layout: a root directory on the search path
// holding conf/context.schema.json and one conf/<tenant>/context.xml per
// tenant written through it.
type Fixture struct {
	t    *testing.T
	Root string
}

// NewFixture creates the layout under t.TempDir and installs the schema.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	root := t.TempDir()
	if _, err := appcontext.WriteSchema(root); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	return &Fixture{t: t, Root: root}
}

// Path returns root/rel.
func (f *Fixture) Path(rel ...string) string {
	return filepath.Join(append([]string{f.Root}, rel...)...)
}

// RemoveSchema deletes the installed schema.
func (f *Fixture) RemoveSchema() {
	f.t.Helper()
	if err := os.Remove(f.Path("conf", "context.schema.json")); err != nil {
		f.t.Fatalf("remove schema: %v", err)
	}
}

// WriteRaw stores content as the context document of tenant.
func (f *Fixture) WriteRaw(tenant, content string) string {
	f.t.Helper()
	path := f.Path("conf", tenant, appcontext.DocumentName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		f.t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Write renders doc as the context document of its tenant.
func (f *Fixture) Write(doc *TenantDoc) string {
	f.t.Helper()
	return f.WriteRaw(doc.Name, doc.XML())
}

// Touch sets the modification time of path.
func (f *Fixture) Touch(path string, at time.Time) {
	f.t.Helper()
	if err := os.Chtimes(path, at, at); err != nil {
		f.t.Fatalf("touch %s: %v", path, err)
	}
}

// TenantDoc builds a context document. NewTenantDoc returns a minimal valid
// debug document; setters adjust it.
type TenantDoc struct {
	Name           string
	RuntimeVersion string
	Debug          bool
	WebRoot        string
	AppRoot        string
	Includes       []string

	DBExt, DBDriver, DBHost, DBSchema string
	QueryUser, QueryPassword          string
	UpdateUser, UpdatePassword        string

	SessionHandler, SessionSecurity, SessionTimeout string
	SessionDirectory                                string
	SessionUser, SessionPassword                    string

	LogFile, LogDB, LogWindow string

	TemplateKind string
	HasTemplate  bool

	Controllers []ControllerDoc
}

// ControllerDoc is one controller element.
type ControllerDoc struct {
	Name      string
	Path      string
	MimeTypes []string
	Filters   []string
}

// NewTenantDoc returns a debug document for name using a sqlite database
// under appRoot.
func NewTenantDoc(name, appRoot string) *TenantDoc {
	return &TenantDoc{
		Name:           name,
		RuntimeVersion: "1.0",
		Debug:          true,
		WebRoot:        "http://localhost/" + name,
		AppRoot:        appRoot,
		DBExt:          "pdo",
		DBDriver:       "sqlite",
		DBHost:         "localhost",
		DBSchema:       filepath.Join(appRoot, name+".db"),
		QueryUser:      "query",
		QueryPassword:  "query-pw",
		UpdateUser:     "update",
		UpdatePassword: "update-pw",
	}
}

// Production clears the debug flag.
func (d *TenantDoc) Production() *TenantDoc {
	d.Debug = false
	return d
}

// WithDatabase sets the database element.
func (d *TenantDoc) WithDatabase(ext, driver, host, schema string) *TenantDoc {
	d.DBExt, d.DBDriver, d.DBHost, d.DBSchema = ext, driver, host, schema
	return d
}

// WithSession sets the session attributes. Empty values are omitted.
func (d *TenantDoc) WithSession(handler, security, timeout string) *TenantDoc {
	d.SessionHandler, d.SessionSecurity, d.SessionTimeout = handler, security, timeout
	return d
}

// WithSessionUser sets the session_user credentials.
func (d *TenantDoc) WithSessionUser(user, password string) *TenantDoc {
	d.SessionUser, d.SessionPassword = user, password
	return d
}

// WithLogging sets the sink file names and window title. Empty values
// leave the sink out.
func (d *TenantDoc) WithLogging(file, db, window string) *TenantDoc {
	d.LogFile, d.LogDB, d.LogWindow = file, db, window
	return d
}

// WithTemplate adds a template element of kind with tpl/, cache/, conf/
// and compile/ directories.
func (d *TenantDoc) WithTemplate(kind string) *TenantDoc {
	d.HasTemplate, d.TemplateKind = true, kind
	return d
}

// WithController adds a controller element.
func (d *TenantDoc) WithController(name, path string, mimeTypes ...string) *TenantDoc {
	d.Controllers = append(d.Controllers, ControllerDoc{Name: name, Path: path, MimeTypes: mimeTypes})
	return d
}

// XML renders the document.
func (d *TenantDoc) XML() string {
	var b strings.Builder
	w := func(format string, args ...any) { fmt.Fprintf(&b, format, args...) }
	attr := func(name, value string) string {
		if value == "" {
			return ""
		}
		return fmt.Sprintf(` %s="%s"`, name, esc(value))
	}

	w("<?xml version=\"1.0\"?>\n<application%s version=\"1.0\">\n", attr("name", d.Name))
	if d.RuntimeVersion != "" {
		w("  <runtime_version>%s</runtime_version>\n", esc(d.RuntimeVersion))
	}
	w("  <debug>%t</debug>\n", d.Debug)
	w("  <web_root>%s</web_root>\n  <app_root>%s</app_root>\n", esc(d.WebRoot), esc(d.AppRoot))
	if len(d.Includes) > 0 {
		w("  <includes>\n")
		for _, inc := range d.Includes {
			w("    <include>%s</include>\n", esc(inc))
		}
		w("  </includes>\n")
	}

	w("  <database%s%s>\n", attr("ext", d.DBExt), attr("driver", d.DBDriver))
	w("    <host>%s</host>\n    <schema>%s</schema>\n", esc(d.DBHost), esc(d.DBSchema))
	w("    <query_user><username>%s</username><password>%s</password></query_user>\n", esc(d.QueryUser), esc(d.QueryPassword))
	w("    <update_user><username>%s</username><password>%s</password></update_user>\n", esc(d.UpdateUser), esc(d.UpdatePassword))
	w("  </database>\n")

	w("  <session%s%s%s>\n", attr("handler", d.SessionHandler), attr("security", d.SessionSecurity), attr("timeout", d.SessionTimeout))
	if d.SessionDirectory != "" {
		w("    <directory>%s</directory>\n", esc(d.SessionDirectory))
	}
	if d.SessionUser != "" {
		w("    <session_user><username>%s</username><password>%s</password></session_user>\n", esc(d.SessionUser), esc(d.SessionPassword))
	}
	w("  </session>\n")

	if d.LogFile != "" || d.LogDB != "" || d.LogWindow != "" {
		w("  <logging>\n")
		if d.LogFile != "" {
			w("    <log_file><filename>%s</filename><append>true</append><mode>0640</mode></log_file>\n", esc(d.LogFile))
		}
		if d.LogDB != "" {
			w("    <log_db><filename>%s</filename><persistent>true</persistent></log_db>\n", esc(d.LogDB))
		}
		if d.LogWindow != "" {
			w("    <log_win><title>%s</title><colors>cyan green yellow red</colors></log_win>\n", esc(d.LogWindow))
		}
		w("  </logging>\n")
	}

	if d.HasTemplate {
		w("  <template%s>\n", attr("type", d.TemplateKind))
		w("    <templates>tpl</templates>\n    <cache>cache</cache>\n    <config>conf</config>\n    <templates_c>compile</templates_c>\n")
		w("  </template>\n")
	}

	w("  <controllers>\n")
	for _, c := range d.Controllers {
		w("    <controller%s%s>\n", attr("name", c.Name), attr("path", c.Path))
		for _, mt := range c.MimeTypes {
			w("      <mime_type>%s</mime_type>\n", esc(mt))
		}
		for _, flt := range c.Filters {
			w("      <filter>%s</filter>\n", esc(flt))
		}
		w("    </controller>\n")
	}
	w("  </controllers>\n</application>\n")
	return b.String()
}

func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
