// Package docs provides generated OpenAPI documentation.
//
// Pulse API
//
//	@title			Pulse API
//	@version		1.0
//	@description	Player-feedback intelligence pipeline API for submitting, polling, and exporting analysis tasks.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/sailsonlabs/pulse
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/pulse/serve.go -o ./swagger --parseDependency --parseInternal
