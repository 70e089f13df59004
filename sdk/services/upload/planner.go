// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

// MaxParts is the multipart limit of S3 and compatible stores.
const MaxParts = 10000

// Plan splits fileSize bytes into parts of partSize bytes, numbered from 1.
// Every part is exactly partSize long except the last one.
func Plan(fileSize, partSize int64) ([]PartDescriptor, error) {
	if fileSize <= 0 {
		return nil, invalidInput("file size must be positive, got %d", fileSize)
	}
	if partSize <= 0 {
		return nil, invalidInput("part size must be positive, got %d", partSize)
	}

	count := (fileSize + partSize - 1) / partSize
	if count > MaxParts {
		return nil, invalidInput("%d parts exceed the limit of %d, use a larger part size", count, MaxParts)
	}

	parts := make([]PartDescriptor, 0, count)
	for i := int64(0); i < count; i++ {
		start := i * partSize
		parts = append(parts, PartDescriptor{
			Number: int32(i + 1),
			Start:  start,
			End:    min(start+partSize, fileSize),
		})
	}
	return parts, nil
}
