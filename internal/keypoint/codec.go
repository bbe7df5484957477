package keypoint

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// wireRecord is the on-disk shape of a record. A hidden record is written
// in the reduced form carrying only is_visible.
type wireRecord struct {
	IsInterp  *bool `yaml:"is_interp,omitempty"`
	IsVisible *bool `yaml:"is_visible"`
	U         *int  `yaml:"u,omitempty"`
	V         *int  `yaml:"v,omitempty"`
}

func toWire(r Record) wireRecord {
	visible := r.Visible()
	if !visible {
		return wireRecord{IsVisible: &visible}
	}
	interp := r.IsInterp()
	u, v := r.U, r.V
	return wireRecord{IsInterp: &interp, IsVisible: &visible, U: &u, V: &v}
}

func fromWire(id int, w wireRecord) (Record, error) {
	if w.IsVisible == nil {
		return Record{}, fmt.Errorf("landmark %d: missing is_visible", id)
	}
	if !*w.IsVisible {
		return Hidden(), nil
	}
	if w.U == nil || w.V == nil {
		return Record{}, fmt.Errorf("landmark %d: visible record without coordinates", id)
	}
	if w.IsInterp != nil && *w.IsInterp {
		return Interpolated(*w.U, *w.V), nil
	}
	return Manual(*w.U, *w.V), nil
}

// EncodeRecords renders one view's records as YAML keyed by landmark ID.
func EncodeRecords(records map[int]Record) ([]byte, error) {
	wire := make(map[int]wireRecord, len(records))
	for id, r := range records {
		wire[id] = toWire(r)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(wire); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRecords parses one view's YAML records. An empty document decodes
// to an empty map.
func DecodeRecords(data []byte) (map[int]Record, error) {
	var wire map[int]wireRecord
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&wire); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	records := make(map[int]Record, len(wire))
	for id, w := range wire {
		if id < 0 {
			return nil, fmt.Errorf("negative landmark id %d", id)
		}
		r, err := fromWire(id, w)
		if err != nil {
			return nil, err
		}
		records[id] = r
	}
	return records, nil
}
