// Package auth implements the single shared API key guard.
//
// The deployment model is one key for the whole store: callers present it
// as a bearer credential, the middleware compares it in constant time and
// rejects mismatches with 401 before any handler runs. Deployments that
// trust their network can switch the requirement off and run open.
package auth
