// Package protocol implements the Exoform wire protocol: a closed union of
// messages, a bincode-compatible payload codec and uint32 big-endian
// length-prefixed framing over a reliable ordered stream.
//
// Payload layout follows bincode 1.x defaults: little-endian fixed-width
// integers, u32 enum variant indices, u64 sequence and string lengths and a
// u8 tag in front of optional values.
package protocol
