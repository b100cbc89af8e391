// Package users implements the account and authentication core of a small
// user-management service: credential issuance and verification, JWT
// sessions, the bootstrap-admin rule, and the role-gating middleware
// consumed by route handlers.
package users
