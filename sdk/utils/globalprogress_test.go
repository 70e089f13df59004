// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressPartsFunc(t *testing.T) {
	var out bytes.Buffer
	gp := NewProgress(&out, "Upload", 10)
	onPart := gp.PartsFunc(4)

	onPart(1, 3)
	assert.Equal(t, int64(4), gp.Done())
	onPart(2, 3)
	onPart(3, 3)
	assert.Equal(t, int64(10), gp.Done())

	gp.Finish()
	assert.Contains(t, out.String(), "Upload: 100.00% (10 B / 10 B)")
}

func TestProgressUnknownTotal(t *testing.T) {
	var out bytes.Buffer
	gp := NewProgress(&out, "Download", 0)
	gp.Add(2048)
	gp.Finish()
	assert.Contains(t, out.String(), "2.00 KB")
}

func TestHuman(t *testing.T) {
	assert.Equal(t, "512 B", human(512))
	assert.Equal(t, "1.50 MB", human(3*512*1024))
	assert.Equal(t, "2.00 GB", human(2<<30))
}
