// Package server hosts the Fiber admin API used to trigger and inspect save
// passes. All routes live under the /-/ prefix; every response carries an
// X-Request-ID header. Keep exports narrow and accept explicit dependencies.
package server
