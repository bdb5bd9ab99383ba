// Package progress reports the state of a wallpaper change to a waiting peer.
//
// The peer (usually "wallp change") listens on a unix socket and hands its
// path to the daemon. The daemon dials it and sends CHANGING, then either
// READY followed by the staged path, or ERROR. Every frame is a 4-byte
// big-endian length followed by the UTF-8 payload, and the receiver answers
// each frame with a single ack byte. Send blocks until that ack arrives, so a
// report is never lost silently while the peer is alive.
//
// Waits are bounded: a peer that stops acknowledging within the write timeout
// is dropped, the sender detaches, and the job carries on without reporting.
package progress
