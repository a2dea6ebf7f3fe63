// Package nbt implements the tag-based binary record format consumed by the
// external simulation client: big-endian typed leaves (byte, short, int,
// long, float, double, byte/int/long arrays, modified UTF-8 strings) nested in
// lists and named compounds. Records are framed with gzip for standalone
// files (player data) and left raw for region slots, which compress their
// own payloads.
//
// Compounds preserve insertion order on encode so that identical captures
// produce identical bytes; equality ignores order.
package nbt
