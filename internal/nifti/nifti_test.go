package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeHeader(t *testing.T, order binary.ByteOrder, h Header) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, order, &h))
	require.Equal(t, headerSize, buf.Len())
	return buf.Bytes()
}

func sampleHeader() Header {
	h := Header{SizeOfHdr: headerSize}
	h.Dim = [8]int16{4, 96, 96, 60, 33, 0, 0, 0}
	h.PixDim = [8]float32{1, 2.5, 2.5, 2.5, 3.2, 0, 0, 0}
	h.Magic = [4]int8{'n', '+', '1', 0}
	return h
}

func TestReadHeaderLittleEndian(t *testing.T) {
	raw := encodeHeader(t, binary.LittleEndian, sampleHeader())

	h, err := ReadHeader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 4, h.NDim())
	assert.Equal(t, []int{96, 96, 60, 33}, h.Shape())
	assert.Equal(t, [3]float64{2.5, 2.5, 2.5}, h.VoxelSizes())
}

func TestReadHeaderBigEndian(t *testing.T) {
	raw := encodeHeader(t, binary.BigEndian, sampleHeader())

	h, err := ReadHeader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, []int{96, 96, 60, 33}, h.Shape())
}

func TestReadHeaderRejectsGarbage(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(make([]byte, headerSize)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a NIfTI-1 header")

	_, err = ReadHeader(bytes.NewReader([]byte("too short")))
	assert.Error(t, err)

	bad := sampleHeader()
	bad.Magic = [4]int8{'x', 'y', 'z', 0}
	_, err = ReadHeader(bytes.NewReader(encodeHeader(t, binary.LittleEndian, bad)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestReadHeaderFile(t *testing.T) {
	dir := t.TempDir()
	raw := encodeHeader(t, binary.LittleEndian, sampleHeader())

	plain := filepath.Join(dir, "image.nii")
	require.NoError(t, os.WriteFile(plain, raw, 0o644))

	h, err := ReadHeaderFile(plain)
	require.NoError(t, err)
	assert.Equal(t, []int{96, 96, 60, 33}, h.Shape())

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err = gz.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	zipped := filepath.Join(dir, "image.nii.gz")
	require.NoError(t, os.WriteFile(zipped, buf.Bytes(), 0o644))

	h, err = ReadHeaderFile(zipped)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{2.5, 2.5, 2.5}, h.VoxelSizes())

	_, err = ReadHeaderFile(filepath.Join(dir, "absent.nii"))
	assert.Error(t, err)
}
