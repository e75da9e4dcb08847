// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, a CRC8 calculation
package common

// CRC8Polynomial is P(x) = x^8 + x^5 + x^4 + 1. The x^8 term does not fit in a
// byte and is implied.
const CRC8Polynomial = 0x131

var crcTable [256]byte

func init() {
	for i := range crcTable {
		crc := byte(i)
		for range 8 {
			if (crc & 0x80) == 0 {
				crc <<= 1
			} else {
				crc = (byte)((crc << 1) ^ (CRC8Polynomial & 0xff))
			}
		}
		crcTable[i] = crc
	}
}

// CRC8 calculates the 8-bit CRC of the byte slice parameter and returns the
// calculated value. CRC bytes are used in sensors from TI and Sensirion.
func CRC8(bytes []byte) byte {
	var crc byte = 0xff
	for _, val := range bytes {
		crc = crcTable[crc^val]
	}
	return crc
}

// CheckCRC8 reports whether checksum is the CRC8 of bytes.
func CheckCRC8(bytes []byte, checksum byte) bool {
	return CRC8(bytes) == checksum
}
