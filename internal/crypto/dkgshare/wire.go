package dkgshare

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/drand/kyber"
)

func writeUint32(buf *bytes.Buffer, v uint32) error {
	return binary.Write(buf, binary.BigEndian, v)
}

func writeUint64(buf *bytes.Buffer, v uint64) error {
	return binary.Write(buf, binary.BigEndian, v)
}

func writeBytes(buf *bytes.Buffer, b []byte) error {
	if err := writeUint32(buf, uint32(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

func writePoint(buf *bytes.Buffer, p kyber.Point) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	return writeBytes(buf, b)
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.BigEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readPoint(r *bytes.Reader, group kyber.Group) (kyber.Point, error) {
	b, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	p := group.Point()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return p, nil
}

// MarshalPoints encodes a slice of points as a length-prefixed sequence,
// the same wire idiom Dealing.Marshal uses for its commitments. It lets
// other packages (the checkpoint store, in particular) persist recovered
// public polynomial coefficients without reaching into kyber's encoding
// details themselves.
func MarshalPoints(points []kyber.Point) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint32(&buf, uint32(len(points))); err != nil {
		return nil, err
	}
	for _, p := range points {
		if err := writePoint(&buf, p); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalPoints decodes a sequence written by MarshalPoints.
func UnmarshalPoints(group kyber.Group, raw []byte) ([]kyber.Point, error) {
	r := bytes.NewReader(raw)
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]kyber.Point, n)
	for i := range out {
		p, err := readPoint(r, group)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func writeScalar(buf *bytes.Buffer, s kyber.Scalar) error {
	b, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	return writeBytes(buf, b)
}

func readScalar(r *bytes.Reader, group kyber.Group) (kyber.Scalar, error) {
	b, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	s := group.Scalar()
	if err := s.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalScalars encodes a slice of scalars the same way MarshalPoints
// encodes points.
func MarshalScalars(scalars []kyber.Scalar) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint32(&buf, uint32(len(scalars))); err != nil {
		return nil, err
	}
	for _, s := range scalars {
		if err := writeScalar(&buf, s); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalScalars decodes a sequence written by MarshalScalars.
func UnmarshalScalars(group kyber.Group, raw []byte) ([]kyber.Scalar, error) {
	r := bytes.NewReader(raw)
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]kyber.Scalar, n)
	for i := range out {
		s, err := readScalar(r, group)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
