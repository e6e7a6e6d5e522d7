package appcontext

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/leeforge/tenantkit/dbo"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/logging"
	"github.com/leeforge/tenantkit/session"
	"github.com/leeforge/tenantkit/template"
	"github.com/leeforge/tenantkit/utils"
)

const (
	defaultSessionDir = "/tmp/"
	sessionPrefix     = "sess_"
	debugIdent        = "[DEBUG] "
)

// Model is the typed configuration of one tenant. A Model is never
// modified after Load returns it; a reload replaces it.
type Model struct {
	RuntimeVersion string                `json:"runtimeVersion" validate:"required"`
	AppName        string                `json:"appName" validate:"required,alphanum"`
	AppVersion     string                `json:"appVersion"`
	Debug          bool                  `json:"debug"`
	WebRoot        string                `json:"webRoot" validate:"required"`
	AppRoot        string                `json:"appRoot" validate:"required,endswith=/"`
	Includes       []string              `json:"includes,omitempty"`
	SearchPath     []string              `json:"searchPath"`
	Database       Database              `json:"database"`
	Session        Session               `json:"session"`
	Logger         Logger                `json:"logger"`
	Template       *Template             `json:"template,omitempty"`
	Controllers    map[string]Controller `json:"controllers" validate:"dive"`
}

// Database holds the main database and its two role credentials.
type Database struct {
	Ext            string `json:"ext" validate:"oneof=pdo native"`
	Driver         string `json:"driver" validate:"required"`
	Host           string `json:"host"`
	Schema         string `json:"schema" validate:"required"`
	QueryUser      string `json:"queryUser" validate:"required"`
	QueryPassword  string `json:"queryPassword"`
	UpdateUser     string `json:"updateUser" validate:"required"`
	UpdatePassword string `json:"updatePassword"`
}

// DSN returns the connection identity of the main database.
func (d Database) DSN() dbo.DSN {
	return dbo.DSN{Driver: d.Driver, Host: d.Host, Schema: d.Schema}
}

// Session configures the session store. File stores use Directory and
// Filename; db stores use the connection fields, which repeat the main
// database's ext, driver, host and schema.
type Session struct {
	Handler   string `json:"handler" validate:"oneof=file db"`
	Security  string `json:"security" validate:"oneof=permissive strict"`
	Timeout   int    `json:"timeout" validate:"gte=0"`
	Directory string `json:"directory,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Ext       string `json:"ext,omitempty"`
	Driver    string `json:"driver,omitempty"`
	Host      string `json:"host,omitempty"`
	Schema    string `json:"schema,omitempty"`
	User      string `json:"user,omitempty"`
	Password  string `json:"password,omitempty"`
}

// DSN returns the connection identity of the session database.
func (s Session) DSN() dbo.DSN {
	return dbo.DSN{Driver: s.Driver, Host: s.Host, Schema: s.Schema}
}

// Logger is the set of sinks plus the prefix every entry carries.
type Logger struct {
	logging.SinkSet
	Ident string `json:"ident"`
}

// Template selects an adaptor kind and its directories, all under AppRoot.
type Template struct {
	Kind string `json:"kind" validate:"required"`
	template.Dirs
}

// Controller is one mounted page.
type Controller struct {
	Name      string   `json:"name" validate:"required"`
	URLPath   string   `json:"urlPath" validate:"required,startswith=/"`
	MimeTypes []string `json:"mimeTypes,omitempty"`
	Filters   []string `json:"filters,omitempty"`
}

// ControllerKey returns the key a controller mounted at urlPath is stored under.
func ControllerKey(urlPath string) string {
	sum := sha256.Sum256([]byte(urlPath))
	return hex.EncodeToString(sum[:])
}

// Controller looks a controller up by URL path.
func (m *Model) Controller(urlPath string) (Controller, bool) {
	c, ok := m.Controllers[ControllerKey(urlPath)]
	return c, ok
}

// ControllerList returns the controllers ordered by URL path.
func (m *Model) ControllerList() []Controller {
	out := make([]Controller, 0, len(m.Controllers))
	for _, c := range m.Controllers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Controller) int { return strings.Compare(a.URLPath, b.URLPath) })
	return out
}

var validate = validator.New()

// builder turns a schema-valid document into a Model, applying every
// cross-field rule.
type builder struct {
	env  *Environment
	base []string
	file string
	log  *zap.Logger
}

func (b *builder) build(doc *document) (*Model, error) {
	m := &Model{
		AppName:    strings.TrimSpace(doc.Name),
		AppVersion: strings.TrimSpace(doc.Version),
		WebRoot:    text(doc.WebRoot),
		AppRoot:    utils.WithTrailingSlash(text(doc.AppRoot)),
	}

	if err := b.runtimeVersion(m, text(doc.RuntimeVersion)); err != nil {
		return nil, err
	}
	debug, err := parseBool(text(doc.Debug))
	if err != nil {
		return nil, b.invalid("debug: " + err.Error())
	}
	m.Debug = debug

	if doc.Includes != nil {
		for _, inc := range doc.Includes.Include {
			if inc = strings.TrimSpace(inc); inc != "" {
				m.Includes = append(m.Includes, inc)
			}
		}
	}
	m.SearchPath = searchPath(b.base, m.AppRoot, m.Includes)

	steps := []func(*Model, *document) error{
		b.database,
		b.session,
		b.logger,
		b.template,
		b.controllers,
	}
	for _, step := range steps {
		if err := step(m, doc); err != nil {
			return nil, err
		}
	}

	if err := validate.Struct(m); err != nil {
		return nil, b.invalid(err.Error()).WithInnerError(err)
	}
	return m, nil
}

func (b *builder) runtimeVersion(m *Model, required string) error {
	want, err := semver.NewVersion(required)
	if err != nil {
		return errors.NewConfiguration(errors.CodeInvalidRuntimeVersion,
			"runtime version "+strconv.Quote(required)+" is not a version").
			WithDetail("file", b.file)
	}
	m.RuntimeVersion = want.String()

	have, err := semver.NewVersion(b.env.RuntimeVersion)
	if err != nil {
		// Development toolchains report versions such as "devel go1.26-abc".
		b.log.Warn("runtime version is not comparable, skipping the version check",
			zap.String("runtime", b.env.RuntimeVersion),
			zap.String("required", want.String()),
			zap.String("file", b.file))
		return nil
	}
	if have.LessThan(want) {
		return errors.NewConfiguration(errors.CodeInvalidRuntimeVersion,
			"runtime "+have.String()+" is older than the required "+want.String()).
			WithDetail("file", b.file)
	}
	return nil
}

func (b *builder) database(m *Model, doc *document) error {
	d := doc.Database
	m.Database = Database{
		Ext:    strings.TrimSpace(d.Ext),
		Driver: strings.TrimSpace(d.Driver),
		Host:   text(d.Host),
		Schema: text(d.Schema),
	}
	if d.QueryUser != nil {
		m.Database.QueryUser, m.Database.QueryPassword = d.QueryUser.Username, d.QueryUser.Password
	}
	if d.UpdateUser != nil {
		m.Database.UpdateUser, m.Database.UpdatePassword = d.UpdateUser.Username, d.UpdateUser.Password
	}

	if !b.env.Extensions(m.Database.Ext, m.Database.Driver) {
		return errors.NewConfiguration(errors.CodeInvalidDatabaseHandler,
			"database handler "+m.Database.Ext+"/"+m.Database.Driver+" is not available").
			WithDetail("file", b.file)
	}
	return nil
}

func (b *builder) session(m *Model, doc *document) error {
	s := Session{Handler: session.HandlerFile, Security: session.SecurityPermissive}
	ds := doc.Session
	if ds == nil {
		ds = &docSession{}
	}
	if h := strings.TrimSpace(ds.Handler); h != "" {
		s.Handler = h
	}
	if sec := strings.TrimSpace(ds.Security); sec != "" {
		s.Security = sec
	}
	if t := strings.TrimSpace(ds.Timeout); t != "" {
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			return errors.NewConfiguration(errors.CodeInvalidSessionTimeout,
				"session timeout "+strconv.Quote(t)+" must be a non-negative number of seconds").
				WithDetail("file", b.file)
		}
		s.Timeout = n
	}

	switch s.Handler {
	case session.HandlerDB:
		s.Ext, s.Driver = m.Database.Ext, m.Database.Driver
		s.Host, s.Schema = m.Database.Host, m.Database.Schema
		if ds.SessionUser == nil {
			return errors.NewConfiguration(errors.CodeInvalidSessionHandler,
				"a db session handler needs session_user credentials").
				WithDetail("file", b.file)
		}
		s.User, s.Password = ds.SessionUser.Username, ds.SessionUser.Password
	case session.HandlerFile:
		s.Directory = strings.TrimSpace(ds.Directory)
		if s.Directory == "" {
			s.Directory = defaultSessionDir
		}
		s.Filename = sessionPrefix + m.AppName
	default:
		return errors.NewConfiguration(errors.CodeInvalidSessionHandler,
			"session handler "+strconv.Quote(s.Handler)+" is not valid").
			WithDetail("file", b.file)
	}

	switch s.Security {
	case session.SecurityPermissive:
	case session.SecurityStrict:
		if s.Handler != session.HandlerDB {
			return errors.NewConfiguration(errors.CodeInvalidSessionHandler,
				"strict session security requires the db handler").
				WithDetail("file", b.file)
		}
		if s.Timeout == 0 {
			return errors.NewConfiguration(errors.CodeInvalidSessionTimeout,
				"strict session security requires a timeout greater than 0").
				WithDetail("file", b.file)
		}
	default:
		return errors.NewConfiguration(errors.CodeInvalidSessionSecurity,
			"session security "+strconv.Quote(s.Security)+" is not valid").
			WithDetail("file", b.file)
	}

	m.Session = s
	return nil
}

func (b *builder) logger(m *Model, doc *document) error {
	if m.Debug {
		m.Logger.Ident = debugIdent
	}
	if doc.Logging == nil {
		return nil
	}
	root := m.AppRoot + m.AppName + "/"

	if f := doc.Logging.File; f != nil {
		cfg := &logging.FileSinkConfig{}
		if err := defaults.Set(cfg); err != nil {
			return err
		}
		cfg.Filename = root + strings.TrimSpace(f.Filename)
		if f.Append != nil {
			v, err := parseBool(*f.Append)
			if err != nil {
				return b.invalid("log_file append: " + err.Error())
			}
			cfg.Append = v
		}
		if f.Mode != nil {
			mode, err := strconv.ParseUint(strings.TrimSpace(*f.Mode), 8, 32)
			if err != nil {
				return b.invalid("log_file mode: " + err.Error())
			}
			cfg.Mode = os.FileMode(mode)
		}
		if f.LineFormat != nil {
			cfg.LineFormat = *f.LineFormat
		}
		if f.TimeFormat != nil {
			cfg.TimeFormat = *f.TimeFormat
		}
		m.Logger.File = cfg
	}

	if d := doc.Logging.DB; d != nil {
		cfg := &logging.SQLiteSinkConfig{}
		if err := defaults.Set(cfg); err != nil {
			return err
		}
		cfg.Filename = root + strings.TrimSpace(d.Filename)
		if d.Append != nil {
			v, err := parseBool(*d.Append)
			if err != nil {
				return b.invalid("log_db append: " + err.Error())
			}
			cfg.Append = v
		}
		if d.Persistent != nil {
			v, err := parseBool(*d.Persistent)
			if err != nil {
				return b.invalid("log_db persistent: " + err.Error())
			}
			cfg.Persistent = v
		}
		m.Logger.SQLite = cfg
	}

	if w := doc.Logging.Window; w != nil {
		cfg := &logging.WindowSinkConfig{Title: strings.TrimSpace(w.Title)}
		if w.Colors != nil {
			cfg.Colors = strings.Fields(*w.Colors)
		}
		m.Logger.Window = cfg
	}
	return nil
}

func (b *builder) template(m *Model, doc *document) error {
	t := doc.Template
	if t == nil {
		return nil
	}
	tpl := &Template{Kind: strings.TrimSpace(t.Type)}
	if tpl.Kind == "" {
		tpl.Kind = template.KindNative
	}
	tpl.Templates = m.AppRoot + text(t.Templates)
	tpl.Cache = m.AppRoot + text(t.Cache)
	if t.Config != nil {
		tpl.Config = m.AppRoot + text(t.Config)
	}
	if t.TemplatesC != nil {
		tpl.Compile = m.AppRoot + text(t.TemplatesC)
	}
	m.Template = tpl
	return nil
}

func (b *builder) controllers(m *Model, doc *document) error {
	m.Controllers = make(map[string]Controller)
	if doc.Controllers == nil {
		return nil
	}
	for _, dc := range doc.Controllers.Controller {
		c := Controller{
			Name:    strings.TrimSpace(dc.Name),
			URLPath: strings.TrimSpace(dc.Path),
			Filters: trimAll(dc.Filters),
		}
		for _, mt := range trimAll(dc.MimeTypes) {
			if !slices.Contains(c.MimeTypes, mt) {
				c.MimeTypes = append(c.MimeTypes, mt)
			}
		}
		m.Controllers[ControllerKey(c.URLPath)] = c
	}
	return nil
}

func (b *builder) invalid(msg string) *errors.AppError {
	return errors.NewConfiguration(errors.CodeInvalidConfigFile, "invalid context file: "+msg).
		WithDetail("file", b.file)
}

// searchPath returns base, then appRoot, then includes, without duplicates.
func searchPath(base []string, appRoot string, includes []string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(dir string) {
		key := filepath.Clean(dir)
		if _, ok := seen[key]; ok || dir == "" {
			return
		}
		seen[key] = struct{}{}
		out = append(out, dir)
	}
	for _, d := range base {
		add(d)
	}
	add(appRoot)
	for _, d := range includes {
		add(d)
	}
	return out
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(s))
}
