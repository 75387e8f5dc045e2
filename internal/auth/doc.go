// Package auth provides dashboard accounts for HomyTech Core.
//
// Passwords are hashed with Argon2id in PHC string format. Login issues a
// short-lived HS256 JWT carrying the user id as subject plus email and name
// claims; requests are authenticated by signature alone, with no database
// lookup. Accounts live in the SQLite users table and are keyed by UUID.
package auth
