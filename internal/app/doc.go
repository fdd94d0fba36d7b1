// Package app provides the application service layer.
//
// ResourceLoader drives the model lifecycle (cache check, download, load, fallback) and Predictor
// turns review text into outcomes. VerifyStorage checks a remote artifact store ahead of a deploy.
// Depends on domain interfaces, not concrete adapters.
package app
