// Package httpapi exposes the staff credential lifecycle over HTTP.
//
// Login and refresh answer with the credential pair:
//
//	{"access":{"token":"...","expires_in":900},"refresh":{"token":"...","expires_in":604800}}
//
// Rejections use the middleware error body and status table, plus
// request_malformed (400) for bodies that cannot be read.
package httpapi
