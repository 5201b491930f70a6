// Package password hashes staff passwords with argon2id.
//
// Hashes use the PHC string format with unpadded base64:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsRehash] reports hashes produced with weaker parameters so a
// directory can re-hash on the next successful login. Plaintext passwords
// are used byte for byte with no Unicode normalization.
package password
