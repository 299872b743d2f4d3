package flow

import "hash/crc32"

// crc32IEEE XORs an initialization vector into the CRC32 so different
// callers (e.g. distinct GroupBy classifiers) can get distinct bucket
// distributions from the same input, the same role `iv` plays in
// NetBricks' crc_hash_native driver symbol.
func crc32IEEE(data []byte, iv uint32) uint32 {
	return crc32.ChecksumIEEE(data) ^ iv
}
