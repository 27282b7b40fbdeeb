// Package requirements reads Python requirements files shipped with apps.
//
// The deploy flow uses a Manifest to decide which backing services an app
// needs (by package name prefix) and to warn about pins older than the
// configured minimum versions.
package requirements
