// Package password verifies stored password hashes and produces new ones.
//
// # Formats
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Accounts imported from the previous portal carry bcrypt hashes, including
// the PHP-style "$2y$" prefix. [Hasher] dispatches on the prefix and reports
// through [Hasher.NeedsRehash] when a successful login should store a fresh
// Argon2id hash.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other portalauth package.
//   - Log plaintext passwords.
package password
