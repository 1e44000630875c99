// Package swagger serves the OpenAPI document and a ReDoc viewer for it.
package swagger

import (
	"context"
	_ "embed"
	"net/http"
)

// OpenAPI is the embedded OpenAPI 3 document for the coverage API.
//
//go:embed openapi.yaml
var OpenAPI []byte

// Register mounts GET /api-docs (ReDoc) and GET /openapi.yaml on mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("swagger: nil mux")
	}
	mux.HandleFunc("GET /api-docs", static("text/html; charset=utf-8", []byte(redocPage)))
	mux.HandleFunc("GET /openapi.yaml", static("application/yaml; charset=utf-8", OpenAPI))
}

func static(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}
}

// The viewer bundle comes from the ReDoc CDN.
const redocPage = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8">
    <title>Coverage Gap API Docs</title>
    <style>body{margin:0;padding:0}</style>
  </head>
  <body>
    <redoc id="redoc-container" spec-url="/openapi.yaml"></redoc>
    <script src="https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"></script>
  </body>
</html>`
