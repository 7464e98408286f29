package ginserver

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const apiDocPath = "/swagger/doc.json"

//go:embed swagger/openapi.json
var openAPIDocument []byte

//go:embed swagger/index.html
var swaggerPage string

// apiDocs serves the rental API's OpenAPI document and a Swagger UI page for
// it. The document is embedded, so its ETag is fixed for the process.
type apiDocs struct {
	document []byte
	page     []byte
	etag     string
}

func newAPIDocs(document []byte, page string) apiDocs {
	sum := sha256.Sum256(document)
	return apiDocs{
		document: document,
		page:     []byte(strings.ReplaceAll(page, "{{SPEC_URL}}", apiDocPath)),
		etag:     `"` + hex.EncodeToString(sum[:8]) + `"`,
	}
}

func (d apiDocs) register(router gin.IRoutes) {
	router.GET(apiDocPath, d.serveDocument)
	router.GET("/swagger", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", d.page)
	})
}

func (d apiDocs) serveDocument(c *gin.Context) {
	c.Header("ETag", d.etag)
	c.Header("Cache-Control", "no-cache")
	if c.GetHeader("If-None-Match") == d.etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json", d.document)
}
