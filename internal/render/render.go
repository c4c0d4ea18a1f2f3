package render

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
	"github.com/valyala/bytebufferpool"
)

//go:embed templates/mail/*.html
var embedFS embed.FS
var engine *html.Engine
var globalVars map[string]interface{}

var ErrNotInitialized = errors.New("render engine not initialized")

// NewEngine loads templates from templateDir, or from the embedded set when
// templateDir is empty.
func NewEngine(templateDir string) *html.Engine {
	if templateDir != "" {
		return html.NewFileSystem(http.Dir(templateDir), ".html")
	}
	renderFS, _ := fs.Sub(embedFS, "templates")
	return html.NewFileSystem(http.FS(renderFS), ".html")
}

func Initialize(htmlEngine *html.Engine, gVars map[string]interface{}) error {
	if err := htmlEngine.Load(); err != nil {
		return err
	}
	engine = htmlEngine
	globalVars = gVars
	return nil
}

// RenderHTML renders the named template ("mail/role-elevated") with vars
// layered over the global variables.
func RenderHTML(templateName string, vars map[string]interface{}) (string, error) {
	if engine == nil {
		return "", ErrNotInitialized
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	mergedVars := make(map[string]interface{}, len(globalVars)+len(vars))
	for k, v := range globalVars {
		mergedVars[k] = v
	}
	for k, v := range vars {
		mergedVars[k] = v
	}

	if err := engine.Render(buf, templateName, mergedVars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
