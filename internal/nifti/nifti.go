// Package nifti reads NIfTI-1 headers. Only the header is decoded; voxel data
// stays with the external tools that produce and consume it.
package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

const headerSize = 348

// Header is the fixed 348-byte NIfTI-1 header.
//
// Field types follow the official nifti1.h definition
// (int -> int32, float -> float32, short -> int16, char -> int8).
type Header struct {
	SizeOfHdr          int32
	UnusedDataType     [10]int8
	UnusedDbName       [18]int8
	UnusedExtents      int32
	UnusedSessionError int16
	UnusedRegular      int8
	DimInfo            int8

	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	DataType      int16
	BitPix        int16
	SliceStart    int16
	PixDim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     int8
	XYZTUnits     int8
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	UnusedGlmax   int32
	UnusedGlmin   int32

	Descrip    [80]int8
	AuxFile    [24]int8
	QformCode  int16
	SformCode  int16
	QuaternB   float32
	QuaternC   float32
	QuaternD   float32
	QoffsetX   float32
	QoffsetY   float32
	QoffsetZ   float32
	SRowX      [4]float32
	SRowY      [4]float32
	SRowZ      [4]float32
	IntentName [16]int8
	Magic      [4]int8
}

// NDim returns the number of image dimensions.
func (h *Header) NDim() int {
	return int(h.Dim[0])
}

// Shape returns the image dimensions.
func (h *Header) Shape() []int {
	n := h.NDim()
	if n < 0 || n > 7 {
		return nil
	}
	shape := make([]int, n)
	for i := 0; i < n; i++ {
		shape[i] = int(h.Dim[i+1])
	}
	return shape
}

// VoxelSizes returns the spatial voxel dimensions in millimeters.
func (h *Header) VoxelSizes() [3]float64 {
	return [3]float64{
		float64(h.PixDim[1]),
		float64(h.PixDim[2]),
		float64(h.PixDim[3]),
	}
}

// ReadHeaderFile reads the header of a .nii or .nii.gz file.
func ReadHeaderFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open nifti %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("gunzip nifti %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}
	h, err := ReadHeader(r)
	if err != nil {
		return nil, fmt.Errorf("read nifti header %s: %w", path, err)
	}
	return h, nil
}

// ReadHeader decodes a NIfTI-1 header from the reader, detecting byte order
// from the sizeof_hdr field.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("header too short: %w", err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if binary.LittleEndian.Uint32(buf[:4]) != headerSize {
		if binary.BigEndian.Uint32(buf[:4]) != headerSize {
			return nil, fmt.Errorf("not a NIfTI-1 header: sizeof_hdr != %d", headerSize)
		}
		order = binary.BigEndian
	}

	var h Header
	if err := binary.Read(bytes.NewReader(buf), order, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if magic := string([]byte{byte(h.Magic[0]), byte(h.Magic[1]), byte(h.Magic[2])}); magic != "n+1" && magic != "ni1" {
		return nil, fmt.Errorf("unrecognized NIfTI magic %q", magic)
	}
	return &h, nil
}
