// Package platform wraps the platform command-line client used to check for
// and create apps and their backing services.
//
// Every call receives the platform URL, username and API key through the
// client's environment; the API key is registered as a sensitive value so it
// never reaches the logs.
package platform
