// Package password enforces credential policy and handles one-way
// hashing. Validation and hashing are deliberately separate: policy is
// checked on registration and password change, while hashing/verifying
// runs on every login with tunable argon2id costs.
package password
