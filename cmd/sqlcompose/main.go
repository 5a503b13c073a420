// Package main provides the sqlcompose CLI.
//
// The CLI renders and runs searches against models declared in a YAML
// manifest:
//   - render: Print the data and count statements of a search
//   - search: Run a search and print the page as JSON
//   - models: List declared models and their search parameters
//   - doctor: Check the manifest, the models and the database
//   - config show: Print the effective configuration
//
// Usage:
//
//	sqlcompose [flags] <command>
package main

func main() {
	Execute()
}
