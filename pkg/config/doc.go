// Package config loads mock server configuration files.
//
// A configuration file is YAML (.yaml, .yml) or JSON (any other extension):
//
//	host: 127.0.0.1
//	httpPort: 8080
//	httpsPort: 8443
//	adminPort: 9090
//	tls:
//	  certFile: certs/server.crt
//	  keyFile: certs/server.key
//	log:
//	  level: debug
//	  format: json
//	shutdownTimeout: 5s
//	defaultResponse:
//	  status: 404
//	rules:
//	  - name: products
//	    request: {method: GET, path: /products}
//	    response: {status: 200, json: {ok: true}}
//	ruleFiles:
//	  - rules/**/*.yaml
//
// Rule files hold a single rule, a list of rules, or a mapping with a
// rules key. Relative paths resolve against the directory of the file
// that names them.
package config
