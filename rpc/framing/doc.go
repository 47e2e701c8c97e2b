// Package framing implements the multipart wire format used by dMQ sockets.
//
// Every message is sent as one frame. The first byte carries the format version
// in its high nibble and the number of parts in its low nibble, followed by each
// part as a 4 byte big-endian length and the payload bytes:
//
//	+--------------+---------+---------+-----+---------+---------+
//	| ver<<4|argc  | len(p0) | p0 ...  | ... | len(pn) | pn ...  |
//	+--------------+---------+---------+-----+---------+---------+
//
// The Decoder consumes arbitrary chunks of a byte stream. Incomplete frames are
// kept between calls to Feed, so a message split across any number of reads is
// yielded exactly once when its last byte arrives.
package framing
