// Package stt adapts speech-recognition backends to one bidirectional
// streaming contract: a configuration request, then audio requests, in;
// recognition responses out. Backend failures surface as *BackendError.
package stt
