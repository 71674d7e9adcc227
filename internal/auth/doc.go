// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

// Package auth provides authentication and authorization primitives for Shopkeep.
//
// # Domain Types
//
// Domain types (User, OneTimeCode) should be created using their constructors:
//   - NewUser - creates a User with validated identity fields and the admin rule applied
//   - NewOneTimeCode - creates a OneTimeCode for an email with a fresh six digit code
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - registration and login
//   - PasswordResetService - one-time code issue, verification and password reset
//   - Authenticator - bearer credential extraction and token verification
//
// Services are created with New*Service constructors that validate dependencies.
//
// # Authorization
//
// Authorization is a two stage pipeline. Authenticator.Authenticate turns a raw
// header value into an Identity, and Authorize evaluates a Policy against that
// Identity and the target user id. Transports compose the two.
package auth
