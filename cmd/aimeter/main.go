// Package main is the entry point for aimeter.
//
//	@title						GlowDesk AI Meter
//	@version					1.0
//	@description				AI usage metering and spending-limit service for GlowDesk.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication (format: "Bearer am_{prefix}_{secret}")
package main

func main() {
	Execute()
}
