// Package deploy implements the single-application deploy workflow: it gates
// the request, ensures the platform app and its backing services exist, and
// synchronizes the application source into the app's git repository.
package deploy
