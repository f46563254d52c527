// Package pebblestore is the durable storage backend on cockroachdb/pebble.
// Events are stored under big-endian id keys so iteration order is id order;
// values carry a crc32c trailer verified on read. The fsync policy is chosen
// at open time: always, interval (WAL group-commit), or never.
package pebblestore
