package main

// General API documentation for swaggo. Regenerate internal/httpapi/swagger.json
// with `swag init -g cmd/imaged/docs.go -o internal/httpapi --outputTypes json`.
//
// @title           imaged API
// @version         1.0
// @description     HTTP API for indexing image-generation models and serving one loaded model at a time.
//
// @contact.name   imaged maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
