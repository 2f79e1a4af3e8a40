//go:build swagger

package httpapi

import (
	_ "embed"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

//go:embed swagger.json
var swaggerDoc string

type embeddedDoc struct{}

func (embeddedDoc) ReadDoc() string { return swaggerDoc }

func init() {
	swag.Register(swag.Name, embeddedDoc{})
}

// MountSwagger serves the API docs under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

// SwaggerEnabled reports whether /swagger/* is served.
func SwaggerEnabled() bool { return true }
