// Package audio holds the small amount of PCM handling the relay needs: a
// signal level metric for inbound frames and WAV framing for backends and
// tools that want a container around raw LINEAR16 audio.
package audio
