// Package docs provides generated OpenAPI documentation.
//
// meaning API
//
//	@title			meaning API
//	@version		1.0
//	@description	PDF text extraction for the reader, plus per-user highlights and notes.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/meaningapp/meaning
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:5050
//	@BasePath	/
//
//	@schemes	http
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package docs

//go:generate swag init -g doc.go -d ./,../internal/server/endpoints -o ./swagger --parseDependency --parseInternal --outputTypes go
