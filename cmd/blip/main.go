/*
Package main is the blip viewer CLI.

It keeps the viewer's anonymous identity and generated fallback name in a local Pebble store,
checks and claims display names, runs the moderation filter before sending, and watches the
live chat with the history backfilled.
*/
package main

func main() {
	Execute()
}
