// mockserver - rule-based HTTP/HTTPS mock server
package main

import "github.com/commerce-it/mockserver/pkg/cli"

func main() {
	cli.Execute()
}
