package appcontext

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/leeforge/tenantkit/json"
)

// document mirrors context.xml. Every leaf is kept as text so the schema
// sees exactly what the author wrote; buildModel does the typing. Elements
// the struct does not name are ignored.
type document struct {
	XMLName        xml.Name        `xml:"application" json:"-"`
	Name           string          `xml:"name,attr" json:"name,omitempty"`
	Version        string          `xml:"version,attr" json:"version,omitempty"`
	RuntimeVersion *string         `xml:"runtime_version" json:"runtime_version,omitempty"`
	Debug          *string         `xml:"debug" json:"debug,omitempty"`
	WebRoot        *string         `xml:"web_root" json:"web_root,omitempty"`
	AppRoot        *string         `xml:"app_root" json:"app_root,omitempty"`
	Includes       *docIncludes    `xml:"includes" json:"includes,omitempty"`
	Database       *docDatabase    `xml:"database" json:"database,omitempty"`
	Session        *docSession     `xml:"session" json:"session,omitempty"`
	Logging        *docLogging     `xml:"logging" json:"logging,omitempty"`
	Template       *docTemplate    `xml:"template" json:"template,omitempty"`
	Controllers    *docControllers `xml:"controllers" json:"controllers,omitempty"`
}

type docIncludes struct {
	Include []string `xml:"include" json:"include,omitempty"`
}

type docCredentials struct {
	Username string `xml:"username" json:"username"`
	Password string `xml:"password" json:"password"`
}

type docDatabase struct {
	Ext        string          `xml:"ext,attr" json:"ext,omitempty"`
	Driver     string          `xml:"driver,attr" json:"driver,omitempty"`
	Host       *string         `xml:"host" json:"host,omitempty"`
	Schema     *string         `xml:"schema" json:"schema,omitempty"`
	QueryUser  *docCredentials `xml:"query_user" json:"query_user,omitempty"`
	UpdateUser *docCredentials `xml:"update_user" json:"update_user,omitempty"`
}

type docSession struct {
	Handler     string          `xml:"handler,attr" json:"handler,omitempty"`
	Security    string          `xml:"security,attr" json:"security,omitempty"`
	Timeout     string          `xml:"timeout,attr" json:"timeout,omitempty"`
	Directory   string          `xml:"directory" json:"directory,omitempty"`
	SessionUser *docCredentials `xml:"session_user" json:"session_user,omitempty"`
}

type docLogging struct {
	File   *docLogFile   `xml:"log_file" json:"log_file,omitempty"`
	DB     *docLogDB     `xml:"log_db" json:"log_db,omitempty"`
	Window *docLogWindow `xml:"log_win" json:"log_win,omitempty"`
}

type docLogFile struct {
	Filename   string  `xml:"filename" json:"filename"`
	Append     *string `xml:"append" json:"append,omitempty"`
	Mode       *string `xml:"mode" json:"mode,omitempty"`
	LineFormat *string `xml:"lineFormat" json:"lineFormat,omitempty"`
	TimeFormat *string `xml:"timeFormat" json:"timeFormat,omitempty"`
}

type docLogDB struct {
	Filename   string  `xml:"filename" json:"filename"`
	Append     *string `xml:"append" json:"append,omitempty"`
	Persistent *string `xml:"persistent" json:"persistent,omitempty"`
}

type docLogWindow struct {
	Title  string  `xml:"title" json:"title"`
	Colors *string `xml:"colors" json:"colors,omitempty"`
}

type docTemplate struct {
	Type       string  `xml:"type,attr" json:"type,omitempty"`
	Templates  *string `xml:"templates" json:"templates,omitempty"`
	Cache      *string `xml:"cache" json:"cache,omitempty"`
	Config     *string `xml:"config" json:"config,omitempty"`
	TemplatesC *string `xml:"templates_c" json:"templates_c,omitempty"`
}

type docControllers struct {
	Controller []docController `xml:"controller" json:"controller,omitempty"`
}

type docController struct {
	Name      string   `xml:"name,attr" json:"name,omitempty"`
	Path      string   `xml:"path,attr" json:"path,omitempty"`
	MimeTypes []string `xml:"mime_type" json:"mime_type,omitempty"`
	Filters   []string `xml:"filter" json:"filter,omitempty"`
}

func decodeDocument(data []byte) (*document, error) {
	var doc document
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// instance renders the document as the JSON value the schema validates.
func (d *document) instance() (any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}

func compileSchema(path string, data []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", path, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(path, doc); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", path, err)
	}
	return compiler.Compile(path)
}
