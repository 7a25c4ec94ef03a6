// Package main is the entry point for utapi.
//
//	@title			utapi
//	@version		1.0
//	@description	S3-compatible utilization tracking service.
//
//	@license.name	Apache-2.0
//
//	@host			localhost:8100
//	@BasePath		/
package main

func main() {
	Execute()
}
