// Package githubapi is the secondary branch source: repository URL
// parsing plus a small client for the GitHub branches endpoint. It is
// independent of the primary Cursor API and uses its own optional token.
package githubapi
