// Package docs provides generated OpenAPI documentation.
//
// Vitae API
//
//	@title			Vitae API
//	@version		1.0
//	@description	Resume extraction pipeline API for documents, extraction runs, review and datasets.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/vitaehq/vitae
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/vitae/serve.go -o ./swagger --parseDependency --parseInternal
