// Package directory provides staffauth.UserDirectory implementations.
//
// [Memory] keeps members in process with argon2id password hashes. It seeds
// the reference server and tests; production deployments plug in their own
// directory behind the same interface.
package directory
