// Package config loads portim configuration from YAML files.
//
// Configuration files support ${VAR_NAME} environment variable expansion in
// any value, so secrets stay out of checked-in files:
//
//	auth:
//	  jwt_secret: ${PORTIM_JWT_SECRET}
//	encryption:
//	  passphrase: ${PORTIM_ENCRYPTION_KEY}
//
// Load applies defaults for omitted fields and validates eagerly: a server
// without a JWT secret or encryption passphrase refuses to start.
package config
